package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zipscope/zipscope/internal/backend"
	"github.com/zipscope/zipscope/internal/core/api"
	"github.com/zipscope/zipscope/internal/core/auth"
	"github.com/zipscope/zipscope/internal/core/config"
	"github.com/zipscope/zipscope/internal/core/db"
	"github.com/zipscope/zipscope/internal/core/server"
	"github.com/zipscope/zipscope/internal/provider"
	"github.com/zipscope/zipscope/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC selection service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9090, "metrics HTTP port (0 disables)")
}

// loadServerConfig reads configuration and applies command line overrides.
func loadServerConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.Server.MetricsPort, _ = cmd.Flags().GetInt("metrics-port")
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openHistory opens the task history store and checks that every migration
// has been applied. An empty URL disables history.
func openHistory(ctx context.Context, url string) (*task.Store, func(), error) {
	if url == "" {
		return nil, func() {}, nil
	}
	database, err := db.Open(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, st := range statuses {
		if !st.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'zipscope migrate' first", st.ID)
		}
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return task.NewStore(queries), func() { database.Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadServerConfig(cmd)
	if err != nil {
		return err
	}

	rdb, err := provider.OpenRedis(cfg.Location.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}
	source := provider.NewCachedSource(
		provider.NewClient(cfg.Location.APIURL, cfg.Location.FetchTimeout),
		cfg.Location.CacheTTL,
		rdb,
	)

	store, closeStore, err := openHistory(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer closeStore()

	tasks := task.NewService(
		backend.NewClient(cfg.Backend.APIURL, cfg.Backend.RequestTimeout),
		store,
		cfg.Location.Country,
	)

	service, err := api.NewSelectionService(cfg, source, tasks)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	grpcServer, err := server.NewGRPCServer(cfg, service, auth.NewResolver(config.BackendToken))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("zipscope_starting",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"metrics_port", cfg.Server.MetricsPort,
		"history", store != nil,
		"redis", rdb != nil,
	)
	if err := grpcServer.Run(ctx); err != nil {
		return err
	}
	slog.Info("zipscope_stopped")
	return nil
}
