package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"depositdapp/internal/idempotency"
	"depositdapp/internal/server"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Serve connects the session and runs the HTTP API until ctx is cancelled.
// A failed initial connect is logged; the API stays up and reports it.
func (a *App) Serve(ctx context.Context) error {
	srv := a.connectServer(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.Log.Info("server stopped")
	return nil
}

// connectServer builds the API, which subscribes its metrics to the session,
// and only then runs the initial connect so its events are observed.
func (a *App) connectServer(ctx context.Context) *server.Server {
	srv := server.NewServer(a.Config, a.Session, idempotency.NewMemoryStore(), a.Log.Named("http"))
	if a.Provider != nil {
		srv.SetRPCHealth(a.Provider.Ping)
	}

	if err := a.Session.Connect(ctx); err != nil {
		a.Log.Warn("initial connect failed", zap.Error(err))
	}
	return srv
}
