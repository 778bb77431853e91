package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/vtlabs/tallysync/migrations"
	"github.com/vtlabs/tallysync/modules/tally"
	"github.com/vtlabs/tallysync/modules/tally/services"
	"github.com/vtlabs/tallysync/pkg/application"
	"github.com/vtlabs/tallysync/pkg/composables"
	"github.com/vtlabs/tallysync/pkg/configuration"
	"github.com/vtlabs/tallysync/pkg/eventbus"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tallysync",
		Short:         "Synchronize flat Tally export tables into the normalized schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(syncCmd(), migrateCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending VT schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			defer conf.Unload()

			db, err := goose.OpenDBWithDriver("pgx", conf.Database.Opts)
			if err != nil {
				return err
			}
			defer db.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return goose.UpContext(cmd.Context(), db, ".")
		},
	}
}

func syncCmd() *cobra.Command {
	var (
		companyID  string
		divisionID string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full sync pass for one tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			defer conf.Unload()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Second*5)
			pool, err := pgxpool.New(ctx, conf.Database.Opts)
			cancel()
			if err != nil {
				return err
			}
			defer pool.Close()

			app := application.New(&application.ApplicationOptions{
				Pool:     pool,
				EventBus: eventbus.NewEventPublisher(conf.Logger()),
				Logger:   conf.Logger(),
			})
			if err := application.Load(app, tally.NewModule()); err != nil {
				return err
			}

			svc := app.Service(services.SyncService{}).(*services.SyncService)
			runCtx := composables.WithPool(cmd.Context(), pool)
			result, err := svc.SyncTenant(runCtx, companyID, divisionID)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "company id of the tenant")
	cmd.Flags().StringVar(&divisionID, "division", "", "division id of the tenant")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("division")
	return cmd
}
