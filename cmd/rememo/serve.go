package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rememo/rememo/internal/api"
	"github.com/rememo/rememo/internal/platform/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rememo HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	log := logger.New("rememo")

	return withDeps(ctx, log, func(d *deps) error {
		if err := d.store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := d.admin.EnsureIndex(ctx, d.embedder.Dimension()); err != nil {
			return err
		}

		router := api.NewRouter(api.Deps{
			Store:     d.store,
			Ingestion: d.ingestion,
			Retrieval: d.retrieval,
			Topics:    d.topics,
			Insights:  d.insights,
			Chat:      d.chat,
			Probes: map[string]api.Probe{
				"store": func(ctx context.Context) error {
					_, err := d.store.ListSessions(ctx, 1)
					return err
				},
				"vectordb": func(ctx context.Context) error {
					_, err := d.index.Count(ctx)
					return err
				},
			},
			Logger: log,
		})

		server := &http.Server{
			Addr:         d.cfg.Server.Addr(),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", server.Addr).Msg("server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("server forced to shutdown")
				return err
			}
			log.Info().Msg("server exited")
			return nil
		case err := <-errCh:
			log.Error().Err(err).Msg("http server failed")
			return err
		}
	})
}
