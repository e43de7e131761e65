package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mathrealm/backend/internal/catalog"
	"github.com/mathrealm/backend/internal/config"
	"github.com/mathrealm/backend/internal/hub"
	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/storage"
	"github.com/mathrealm/backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	dsn := flag.String("dsn", "", "Override storage DSN")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dsn != "" {
		cfg.Storage.DSN = *dsn
	}
	logger.Initialize(cfg.Logging)

	if err := run(cfg); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defs, err := cat.Definitions()
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage ready", "driver", cfg.Storage.Driver)

	h := hub.New(store, defs, opts, hub.Config{
		SaveInterval: cfg.Session.SaveInterval,
		IdleTimeout:  cfg.Session.IdleTimeout,
	})
	broadcaster := ws.NewBroadcaster()
	h.OnCompleted(broadcaster.GoalCompleted)
	h.OnRealmUp(broadcaster.RealmUp)

	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()

	server := ws.NewServer(h, store, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	err = ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, mux)
	logger.Info("Shutting down...")
	stop()
	<-hubDone
	return err
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}
