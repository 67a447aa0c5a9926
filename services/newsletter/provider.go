package newsletter

import (
	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/mail"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func ProvideNotifier(mailService *mail.Service, cfg *config.Config, logger *logging.Service) Notifier {
	return NewMailNotifier(mailService, cfg, logger.Named("newsletter.notify"))
}

func ProvideService(store Store, notifier Notifier, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(store, UUIDTokenIssuer{}, notifier, &cfg.Newsletter, logger.Named("newsletter"))
}

var Module = fx.Options(
	fx.Provide(
		ProvideStore,
		ProvideNotifier,
		ProvideService,
	),
)
