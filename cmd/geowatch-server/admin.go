package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/db"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store/sqlite"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env, SkipMigrate: true})
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer conn.Close()

		if dryRun {
			pending, err := db.Pending(ctx, conn)
			if err != nil {
				return err
			}
			for _, name := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		applied, err := db.Migrate(ctx, conn)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load zones and assignments from a YAML seed file",
	Long: `Upserts zones by name and assignments by (employee, zone).  Running
the same file twice changes nothing.  Defaults to seed_path from config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		path := cfg.SeedPath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no seed file: pass one or set seed_path")
		}
		seed, err := service.LoadSeedFile(path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer conn.Close()
		writer := db.NewWorker(conn)
		defer writer.Close()

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		registry := service.NewZoneRegistry(sqlite.NewZoneStore(conn, writer), service.RegistryOptions{
			Location: loc,
			Logger:   logger,
		})
		report, err := registry.ApplySeed(ctx, seed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "zones: %d created, %d updated; assignments: %d created, %d updated\n",
			report.ZonesCreated, report.ZonesUpdated, report.AssignmentsCreated, report.AssignmentsUpdated)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
}
