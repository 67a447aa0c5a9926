package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/server"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const stopTimeout = 30 * time.Second

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	db     *gorm.DB
	server *server.Server
}

func (a *App) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.fx.StartTimeout())
	defer cancel()
	return a.fx.Start(ctx)
}

// Run starts the application and blocks until SIGINT, SIGTERM or an
// internal shutdown request, then stops it gracefully.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		a.logger.Error("failed to start application", zap.Error(err))
		return err
	}

	sig := <-a.fx.Wait()
	a.logger.Info("received shutdown signal, stopping gracefully",
		zap.String("signal", fmt.Sprint(sig.Signal)),
		zap.Int("exit_code", sig.ExitCode))

	if err := a.Stop(); err != nil {
		return err
	}
	if sig.ExitCode != 0 {
		return fmt.Errorf("application exited with code %d", sig.ExitCode)
	}
	return nil
}

func (a *App) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}
	_ = a.logger.Sync()
	return nil
}

func (a *App) Server() *echo.Echo {
	if a.server == nil {
		a.logger.Warn("server not initialised through dependency injection")
		return nil
	}
	return a.server.Echo()
}

func (a *App) HTTPServer() *server.Server {
	return a.server
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}
