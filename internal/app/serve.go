package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/filestore"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/config"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/transport/middleware"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/transport/rest"
)

// NewHandler builds the serving API over the slim index at cfg.Index.Path.
// The returned stop function releases the rate limiter.
func NewHandler(cfg *config.Config, log *slog.Logger) (http.Handler, func()) {
	catalog := rest.NewCatalog(log, filestore.NewIndexFile(cfg.Index.Path))
	mux := rest.NewRouter(
		rest.NewRestaurantHandler(log, catalog, cfg.Server.MaxPageSize),
		rest.NewHealthHandler(BuildVersion(), map[string]rest.Pinger{"index": catalog}),
	)

	limiter := middleware.NewRateLimiter(time.Minute)
	stack := middleware.Standard(log, cfg.CORS, limiter, cfg.Server.RateLimit)
	return stack(mux), limiter.Stop
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down within
// the configured timeout.
func Serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	handler, stop := NewHandler(cfg, log)
	defer stop()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving restaurant index",
			slog.String("addr", srv.Addr),
			slog.String("index", cfg.Index.Path),
			slog.String("version", BuildVersion()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
