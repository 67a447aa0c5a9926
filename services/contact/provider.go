package contact

import (
	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/mail"
	"go.uber.org/fx"
)

func ProvideContactService(mailService *mail.Service, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(mailService, cfg, logger.Named("contact"))
}

var Module = fx.Options(
	fx.Provide(ProvideContactService),
)
