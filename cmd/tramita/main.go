package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/tramita-io/tramita/internal/archive"
	"github.com/tramita-io/tramita/internal/config"
	"github.com/tramita-io/tramita/internal/handlers"
	"github.com/tramita-io/tramita/internal/logging"
	"github.com/tramita-io/tramita/internal/middleware"
	natsclient "github.com/tramita-io/tramita/internal/messaging/nats"
	tramitanats "github.com/tramita-io/tramita/internal/nats"
	"github.com/tramita-io/tramita/internal/repository"
	"github.com/tramita-io/tramita/internal/server"
	"github.com/tramita-io/tramita/internal/service"
	"github.com/tramita-io/tramita/internal/unread"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Configure structured logging
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	connString := cfg.Database.Postgres.DSN()

	// Run database migrations
	log.Println("Running database migrations...")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Initialize repository
	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	svc := service.NewService(repo, logger)

	// Optional Redis unread-counter cache
	if cfg.Redis.Enabled {
		cache, err := unread.NewCacheFromURL(context.Background(), cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.Close()
		svc = svc.WithUnreadCache(cache)
		log.Println("Unread counter cache enabled")
	}

	// Optional NATS event publishing
	if cfg.NATS.Enabled {
		client, err := natsclient.NewClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "tramita",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
			Timeout:       natsclient.DefaultConfig().Timeout,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer client.Close()
		svc = svc.WithEvents(tramitanats.NewPublisher(client))
		log.Println("NATS event publishing enabled")
	}

	// Optional OpenSearch archive index
	if cfg.Archive.Enabled {
		index, err := archive.NewOpenSearchIndex(archive.Config{
			URL:      cfg.Archive.URL,
			Username: cfg.Archive.Username,
			Password: cfg.Archive.Password,
			Insecure: cfg.Archive.Insecure,
			Index:    cfg.Archive.Index,
		})
		if err != nil {
			log.Fatalf("Failed to connect to OpenSearch: %v", err)
		}
		svc = svc.WithArchiveIndex(index)
		log.Println("Archive search index enabled")
	}

	// Initialize handlers
	handler := handlers.NewHandler(svc)

	// Setup HTTP router
	router := server.NewRouter(handler, middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Tramita service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}
