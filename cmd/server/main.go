package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xtrntr/farmduel/internal/api"
	"github.com/xtrntr/farmduel/internal/auth"
	"github.com/xtrntr/farmduel/internal/competition"
	"github.com/xtrntr/farmduel/internal/config"
	"github.com/xtrntr/farmduel/internal/db"
	"github.com/xtrntr/farmduel/internal/logging"
	"github.com/xtrntr/farmduel/internal/metrics"
	"github.com/xtrntr/farmduel/internal/rules"
	"github.com/xtrntr/farmduel/migrations"
)

// Main entry point: sets up rules, ledger, auth, metrics and the HTTP server
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the rules table
	gameRules := rules.Default()
	if cfg.Simulation.RulesPath != "" {
		if gameRules, err = rules.Load(cfg.Simulation.RulesPath); err != nil {
			logger.Error("failed to load rules", "path", cfg.Simulation.RulesPath, "error", err)
			os.Exit(1)
		}
	}

	// Initialize the trade ledger if a database is configured
	var ledger api.Ledger
	if cfg.Database.URL != "" {
		database, err := db.NewDB(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close(context.Background())

		scripts, err := migrations.Scripts()
		if err != nil {
			logger.Error("failed to read migrations", "error", err)
			os.Exit(1)
		}
		for _, script := range scripts {
			if err := database.Migrate(ctx, script); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
		ledger = database
	} else {
		logger.Info("no database configured, trade ledger disabled")
	}

	// Initialize auth service
	var authService *auth.AuthService
	if cfg.Auth.Enabled {
		authService = auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AdminPasswordHash, cfg.Auth.TokenTTL)
	}

	builder := &competition.Builder{
		Sim:    cfg.Simulation,
		Rules:  gameRules,
		Logger: logger,
	}

	// Set up HTTP router
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	if cfg.Metrics.Enabled {
		collector, err := metrics.NewCollector(prometheus.NewRegistry())
		if err != nil {
			logger.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		builder.Recorder = collector
		r.Handle(cfg.Metrics.Path, collector.Handler())
	}

	hub := api.NewHub(cfg.Server.AllowedOrigins, logger)
	handler := api.NewHandler(gameRules, builder.New, ledger, authService, hub, logger)
	handler.Routes(r)

	// Serve static files
	r.Handle("/*", http.FileServer(http.Dir(cfg.Server.StaticDir)))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down server", "error", err)
		}
	}()

	logger.Info("starting server", "addr", cfg.Server.Addr, "ledger", ledger != nil, "auth", authService != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
