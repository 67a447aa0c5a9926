package api

import (
	"context"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/middleware/ratelimit"
	"github.com/hapogroup/newsletter/openapi"
	"github.com/hapogroup/newsletter/server"
	"github.com/hapogroup/newsletter/services/auth"
	"github.com/hapogroup/newsletter/services/blog"
	"github.com/hapogroup/newsletter/services/contact"
	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/newsletter"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideHandlers(newsletterSvc *newsletter.Service, blogSvc *blog.Service, contactSvc *contact.Service, authSvc *auth.Service, cfg *config.Config, logger *logging.Service) *Handlers {
	return NewHandlers(newsletterSvc, blogSvc, contactSvc, authSvc, cfg, logger.Named("api"))
}

func registerRoutes(lc fx.Lifecycle, srv *server.Server, h *Handlers, jwtService *jwt.Service, limiter ratelimit.Store, doc *openapi.Document, cfg *config.Config, logger *logging.Service) {
	Register(srv, doc, Routes{
		Handlers: h,
		JWT:      jwtService,
		Limiter:  limiter,
		Config:   cfg,
		Logger:   logger.Named("ratelimit"),
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := doc.Validate(ctx); err != nil {
				logger.Warn("OpenAPI document failed validation", zap.Error(err))
			}
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(
		ProvideHandlers,
		NewDocument,
	),
	fx.Invoke(registerRoutes),
)
