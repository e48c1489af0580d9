package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"event-feature-lab/internal/storage/migrations"
	"event-feature-lab/internal/storage/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded Postgres and ClickHouse schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pgDSN, chDSN := a.cfg.Storage.PostgresDSN, a.cfg.Storage.ClickhouseDSN
			if pgDSN == "" && chDSN == "" {
				return errors.New("no database configured: set storage.postgres_dsn / storage.clickhouse_dsn")
			}

			if pgDSN != "" {
				pool, err := postgres.NewPool(ctx, pgDSN, 1)
				if err != nil {
					return err
				}
				defer pool.Close()
				applied, err := migrations.RunPostgresMigrations(ctx, pool)
				if err != nil {
					return err
				}
				a.logger.Info().Strs("files", applied).Msg("postgres migrations applied")
				fmt.Printf("Postgres: %d migrations applied\n", len(applied))
			}

			if chDSN != "" {
				conn, err := migrations.RunClickhouseMigrations(ctx, chDSN)
				if err != nil {
					return err
				}
				_ = conn.Close()
				a.logger.Info().Msg("clickhouse migrations applied")
				fmt.Println("ClickHouse: migrations applied")
			}
			return nil
		},
	}
}
