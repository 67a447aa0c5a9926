package blog

import (
	"github.com/hapogroup/newsletter/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideService(db *gorm.DB, logger *logging.Service) *Service {
	return NewService(db, logger.Named("blog"))
}

var Module = fx.Options(
	fx.Provide(ProvideService),
)
