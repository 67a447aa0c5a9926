package app

import (
	"fmt"

	"github.com/hapogroup/newsletter/api"
	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/database"
	"github.com/hapogroup/newsletter/middleware/ratelimit"
	"github.com/hapogroup/newsletter/server"
	"github.com/hapogroup/newsletter/services/auth"
	"github.com/hapogroup/newsletter/services/blog"
	"github.com/hapogroup/newsletter/services/contact"
	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/mail"
	"github.com/hapogroup/newsletter/services/newsletter"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type AppBuilder struct {
	config    *config.Config
	services  map[string]bool
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.services["database"] = true
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithMail() *AppBuilder {
	b.services["mail"] = true
	return b
}

func (b *AppBuilder) WithJWT() *AppBuilder {
	b.services["jwt"] = true
	return b
}

// WithAuth enables admin login. It implies JWT.
func (b *AppBuilder) WithAuth() *AppBuilder {
	b.services["auth"] = true
	return b
}

func (b *AppBuilder) WithRateLimit() *AppBuilder {
	b.services["ratelimit"] = true
	return b
}

func (b *AppBuilder) WithContact() *AppBuilder {
	b.services["contact"] = true
	return b
}

// WithBlog enables blog posts and categories.
func (b *AppBuilder) WithBlog() *AppBuilder {
	if b.services["blog"] {
		return b
	}
	b.services["blog"] = true
	return b.WithDatabase(&blog.Category{}, &blog.Post{})
}

// WithNewsletter enables the subscriber store and the full HTTP API along
// with everything it depends on.
func (b *AppBuilder) WithNewsletter() *AppBuilder {
	b.services["newsletter"] = true
	b.services["api"] = true
	b.WithDatabase(&newsletter.Subscriber{})
	return b.WithBlog()
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
	}

	options := b.buildFxOptions(logger)
	options = append(options, fx.Invoke(func(srv *server.Server) {
		app.server = srv
	}))
	if b.services["database"] {
		options = append(options, fx.Invoke(func(db *gorm.DB) {
			app.db = db
		}))
	}

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

// validate reports configuration errors and switches on the services that
// enabled ones depend on.
func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.services["api"] {
		for _, dep := range []string{"newsletter", "contact", "auth", "ratelimit"} {
			b.services[dep] = true
		}
		b.WithBlog()
	}

	if b.services["newsletter"] {
		b.services["database"] = true
		b.services["mail"] = true
	}

	if b.services["blog"] {
		b.services["database"] = true
	}

	if b.services["contact"] {
		b.services["mail"] = true
	}

	if b.services["auth"] {
		b.services["jwt"] = true
	}

	return nil
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config required for logger creation")
	}

	return logging.NewService(logging.Config{
		Level:      logging.LogLevel(b.config.Log.Level),
		Format:     b.config.Log.Format,
		OutputPath: b.config.Log.Output,
	})
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	options := []fx.Option{
		fx.Supply(b.config),
		fx.Supply(logger),
		fx.NopLogger,
		server.NewProvider(),
	}

	if b.services["database"] {
		options = append(options,
			fx.Supply(database.WithModels(b.models...)),
			database.Module,
		)
	}

	modules := []struct {
		name   string
		option fx.Option
	}{
		{"mail", mail.Module},
		{"jwt", jwt.Module},
		{"auth", auth.Module},
		{"ratelimit", ratelimit.Module},
		{"newsletter", newsletter.Module},
		{"blog", blog.Module},
		{"contact", contact.Module},
		{"api", api.Module},
	}
	for _, m := range modules {
		if b.services[m.name] {
			options = append(options, m.option)
		}
	}

	return append(options, b.fxOptions...)
}
