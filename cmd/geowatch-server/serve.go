package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/config"
	"github.com/BrandonDHaskell/geowatch/internal/db"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/directory"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/notify"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store/sqlite"
	"github.com/BrandonDHaskell/geowatch/internal/grpcapi"
	"github.com/BrandonDHaskell/geowatch/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env, MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()
	writer := db.NewWorker(conn)
	defer writer.Close()

	zones := sqlite.NewZoneStore(conn, writer)
	samples := sqlite.NewSampleStore(conn, writer)
	alerts := sqlite.NewAlertStore(conn, writer)

	// Services
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	registry := service.NewZoneRegistry(zones, service.RegistryOptions{
		Refresh:  cfg.RegistryRefresh,
		Location: loc,
		Logger:   logger.Named("zones"),
	})

	dir, err := loadDirectory(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(notify.LogNotifier{Logger: logger.Named("notify")}, cfg.NotifyTimeout, logger)
	manager := service.NewAlertManager(alerts, service.AlertPolicy{
		DedupWindow:       cfg.DedupWindow,
		LowBatteryPercent: cfg.LowBatteryPercent,
		Recipients:        cfg.Recipients,
	}, dispatcher, nil, logger.Named("alerts"))

	ingestor := service.NewLocationIngestor(samples, registry,
		service.NewEmployeeRegistry(dir, logger.Named("directory")),
		manager,
		service.IngestorOptions{
			FutureSkew:       cfg.FutureSkew,
			IngestTimeout:    cfg.IngestTimeout,
			AlertTimeout:     cfg.AlertTimeout,
			BatchParallelism: cfg.BatchParallelism,
			Logger:           logger.Named("ingest"),
		})
	query := service.NewQueryService(samples, alerts, registry, nil)

	pruner := service.NewSamplePruner(samples, service.PrunerConfig{
		RetentionDays: cfg.SampleRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger.Named("pruner"))
	pruner.Start(ctx)
	defer pruner.Stop()

	// Transports
	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    logger.Named("http"),
		Addr:      cfg.HTTPAddr,
		Ingestor:  ingestor,
		Alerts:    manager,
		Query:     query,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		MaxBatch:  cfg.MaxBatch,
	})
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	var grpcStop func()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv := grpcapi.NewServer(grpcapi.NewService(grpcapi.Dependencies{
			Logger:   logger.Named("grpc"),
			Ingestor: ingestor,
			Alerts:   manager,
			Query:    query,
		}))
		grpcStop = grpcSrv.GracefulStop
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc server error", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcStop != nil {
		grpcStop()
	}
	pruner.Stop()
	// In-flight notifications finish before the store goes away.
	manager.Wait()
	return nil
}

// loadDirectory applies the zone seed, when configured, and picks the
// employee directory.
func loadDirectory(ctx context.Context, cfg config.Config, registry *service.ZoneRegistry, logger *zap.Logger) (directory.Directory, error) {
	if cfg.SeedPath == "" {
		return directory.AllowAll{}, nil
	}
	seed, err := service.LoadSeedFile(cfg.SeedPath)
	if err != nil {
		return nil, err
	}
	report, err := registry.ApplySeed(ctx, seed)
	if err != nil {
		return nil, fmt.Errorf("apply seed: %w", err)
	}
	logger.Info("seed applied",
		zap.String("path", cfg.SeedPath),
		zap.Int("zones_created", report.ZonesCreated),
		zap.Int("zones_updated", report.ZonesUpdated),
		zap.Int("assignments_created", report.AssignmentsCreated),
		zap.Int("assignments_updated", report.AssignmentsUpdated),
	)
	if cfg.DirectoryMode == "seed" {
		return seed.Directory(), nil
	}
	return directory.AllowAll{}, nil
}
