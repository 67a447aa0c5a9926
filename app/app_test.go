package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/blog"
	"github.com/hapogroup/newsletter/services/jwt"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/newsletter"
	"github.com/hapogroup/newsletter/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func createTestConfig(dbName string) *config.Config {
	cfg := testutils.GetTestConfig()
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: "0"}
	cfg.Log = config.LogConfig{Level: "error", Format: "json", Output: "stdout"}
	cfg.Database = config.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + dbName + "?mode=memory&cache=shared",
		AutoMigrate: true,
	}
	return cfg
}

func buildNewsletterApp(t *testing.T, dbName string, opts ...fx.Option) *App {
	t.Helper()

	app, err := NewApp().
		WithConfig(createTestConfig(dbName)).
		WithNewsletter().
		WithFxOptions(opts...).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop() })
	return app
}

func TestApp_Build(t *testing.T) {
	var jwtService *jwt.Service
	var newsletterSvc *newsletter.Service
	app := buildNewsletterApp(t, "app_build", fx.Populate(&jwtService, &newsletterSvc))

	require.NotNil(t, app.Server())
	require.NotNil(t, app.HTTPServer())
	require.NotNil(t, app.DB())
	assert.NotNil(t, app.Logger())
	assert.Equal(t, "127.0.0.1", app.Config().Server.Host)
	require.NotNil(t, jwtService)
	require.NotNil(t, newsletterSvc)

	assert.True(t, app.DB().Migrator().HasTable(&newsletter.Subscriber{}))
	assert.True(t, app.DB().Migrator().HasTable(&blog.Post{}))
	assert.True(t, app.DB().Migrator().HasTable(&blog.Category{}))
}

func TestApp_Routes(t *testing.T) {
	var jwtService *jwt.Service
	app := buildNewsletterApp(t, "app_routes", fx.Populate(&jwtService))

	rec := httptest.NewRecorder()
	app.Server().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	app.Server().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/posts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"posts":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	app.Server().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/newsletter-stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwtService.GenerateToken(testutils.AdminEmail)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/newsletter-stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	app.Server().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"active":0,"pending":0,"unsubscribed":0}`, rec.Body.String())
}

func TestApp_StartStop(t *testing.T) {
	app, err := NewApp().
		WithConfig(createTestConfig("app_start_stop")).
		WithNewsletter().
		Build()
	require.NoError(t, err)

	require.NoError(t, app.Start())
	assert.NoError(t, app.Stop())
}

func TestApp_ServerWithoutInjection(t *testing.T) {
	app := &App{logger: logging.FromZap(zap.NewNop())}

	assert.Nil(t, app.Server())
	assert.Nil(t, app.HTTPServer())
	assert.Nil(t, app.DB())
}
