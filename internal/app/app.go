package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/swiftfix/backoffice/internal/config"
	"github.com/swiftfix/backoffice/internal/observability"
)

const shutdownTimeout = 15 * time.Second

// App bundles the running pieces of the service so the command layer
// can start and stop them as one unit.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime

	stopBackground func()
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, stopBackground func()) *App {
	return &App{
		Config:         cfg,
		Logger:         logger,
		Server:         server,
		Observability:  runtime,
		stopBackground: stopBackground,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests,
// stops background workers and flushes telemetry.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.shutdownBackground()
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.Server.Shutdown(shutdownCtx)
	a.shutdownBackground()
	if obsErr := a.shutdownObservability(shutdownCtx); obsErr != nil {
		err = errors.Join(err, obsErr)
	}
	return err
}

func (a *App) shutdownBackground() {
	if a.stopBackground != nil {
		a.stopBackground()
	}
}

func (a *App) shutdownObservability(ctx context.Context) error {
	if a.Observability == nil {
		return nil
	}
	return a.Observability.Shutdown(ctx)
}
