package auth

import (
	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/services/logging"
	"go.uber.org/fx"
)

func ProvideAuthService(cfg *config.Config, jwtService *jwt.Service, logger *logging.Service) *Service {
	return NewService(&cfg.Admin, jwtService, logger.Named("auth"))
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
