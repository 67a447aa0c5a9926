package database

import (
	"testing"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func TestModule(t *testing.T) {
	var provided *gorm.DB

	app := fx.New(
		Module,
		fx.Provide(func() *config.Config {
			cfg := createTestConfig("sqlite", ":memory:", false)
			return &cfg
		}),
		fx.Provide(func() *logging.Service { return nil }),
		fx.Provide(func() *ModelsOption { return nil }),
		fx.NopLogger,
		fx.Invoke(func(db *gorm.DB) {
			provided = db
		}),
	)

	assert.NoError(t, app.Err())
	assert.NotNil(t, provided)
}

func TestProvideDatabaseFx_Error(t *testing.T) {
	cfg := createTestConfig("unsupported", "test", false)

	db, err := ProvideDatabaseFx(&cfg, nil, nil)

	assert.Error(t, err)
	assert.Nil(t, db)
}
