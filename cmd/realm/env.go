package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mathrealm/backend/internal/catalog"
	"github.com/mathrealm/backend/internal/config"
	"github.com/mathrealm/backend/internal/logger"
	"github.com/mathrealm/backend/internal/progression"
	"github.com/mathrealm/backend/internal/save"
)

var errNoPlayer = errors.New("no player yet, run `realm new` first")

// env is everything a command needs to load and save the local player.
type env struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	defs    progression.Definitions
	opts    progression.Options
	manager *save.Manager
}

func openEnv(cfgPath string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger.Initialize(cfg.Logging)
	if cfg.Player.ID == "" {
		return nil, errNoPlayer
	}

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	defs, err := cat.Definitions()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:     cfg,
		catalog: cat,
		defs:    defs,
		opts:    opts,
		manager: newManager(cfg),
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func newManager(cfg *config.Config) *save.Manager {
	m := &save.Manager{
		Local:   save.NewLocalStore(cfg.Player.SaveDir),
		Timeout: cfg.Player.RemoteTimeout,
	}
	if cfg.Player.RemoteURL != "" {
		m.Remote = save.NewHTTPRemote(cfg.Player.RemoteURL, cfg.Player.Key, cfg.Server.AuthToken)
	}
	return m
}

func (e *env) load(ctx context.Context) (*progression.Session, save.Source, error) {
	return e.manager.LoadSession(ctx, e.cfg.Player.ID, e.defs, e.opts)
}

// persist saves s and reports where it went.
func (e *env) persist(ctx context.Context, w io.Writer, s *progression.Session) error {
	res := e.manager.SaveSession(ctx, e.cfg.Player.ID, s)
	switch {
	case !res.Success:
		return fmt.Errorf("save failed: %w", errors.Join(res.RemoteErr, res.LocalErr))
	case res.RemoteErr != nil:
		fmt.Fprintln(w, styleWarn.Render("! remote save failed, progress kept locally"))
	}
	return nil
}
