package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/Brownie44l1/ripeness-api/internal/app"
	"go.uber.org/zap"
)

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, a *app.App) error {
	srv, err := NewServer(a.Config())
	if err != nil {
		return err
	}
	srv.SetupRoutes(a)

	errc := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	cfg := a.Config()
	a.Logger.Info("server started",
		zap.String("addr", srv.Addr()),
		zap.String("model", cfg.Model.Path),
		zap.Strings("labels", a.Catalog.Keys()),
		zap.Bool("history", a.HistoryEnabled()),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("stopping server")
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errc
}
