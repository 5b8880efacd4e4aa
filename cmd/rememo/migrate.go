package main

import (
	"github.com/spf13/cobra"

	"github.com/rememo/rememo/internal/platform/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the relational schema and ensure the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.New("rememo-migrate")

			return withDeps(ctx, log, func(d *deps) error {
				if err := d.store.EnsureSchema(ctx); err != nil {
					return err
				}
				log.Info().Str("driver", d.cfg.Database.Driver).Msg("relational schema ready")

				if err := d.admin.EnsureIndex(ctx, d.embedder.Dimension()); err != nil {
					return err
				}
				log.Info().
					Str("backend", d.cfg.VectorDB.Backend).
					Int("dimension", d.embedder.Dimension()).
					Msg("vector index ready")
				return nil
			})
		},
	}
}
