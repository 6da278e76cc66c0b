package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assignment-tracker-service/internal/app"
	"assignment-tracker-service/internal/config"
	filegw "assignment-tracker-service/internal/infra/file"
	pggw "assignment-tracker-service/internal/infra/postgres"
	redisgw "assignment-tracker-service/internal/infra/redis"
	transport "assignment-tracker-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assignment tracker server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Authoritative store: postgres when configured, JSON file otherwise.
	var gateway app.Gateway
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		gateway = pggw.NewGateway(pool)
	} else {
		dataPath := cfg.Data.Path
		if dataPath == "" {
			dataPath = "data/assignments.json"
		}
		gateway = filegw.NewGateway(dataPath)
	}

	// Derived leaderboard cache: redis when configured, JSON file otherwise.
	var snapshots app.SnapshotWriter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		snapshots = redisgw.NewSnapshotWriter(client, config.Duration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		snapshotPath := cfg.Data.SnapshotPath
		if snapshotPath == "" {
			snapshotPath = "data/leaderboard.json"
		}
		snapshots = filegw.NewSnapshotWriter(snapshotPath)
	}

	backoff := config.Duration(cfg.Persist.RetryBackoff, 250*time.Millisecond)
	service := app.NewTrackerService(gateway, snapshots, backoff)
	if err := service.Load(ctx); err != nil {
		return err
	}
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assignment tracker on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
