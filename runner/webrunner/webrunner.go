// Package webrunner wires the document store, the identity provider and the
// HTTP server together for the serve mode.
package webrunner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/docstore/sqlite"
	"github.com/gosom/store-provisioner/identity"
	"github.com/gosom/store-provisioner/identity/httpidp"
	idmemory "github.com/gosom/store-provisioner/identity/memory"
	"github.com/gosom/store-provisioner/importer"
	"github.com/gosom/store-provisioner/provision"
	"github.com/gosom/store-provisioner/runner"
	"github.com/gosom/store-provisioner/storesync"
	"github.com/gosom/store-provisioner/web"
)

const resyncInterval = time.Hour

type webrunner struct {
	srv    *web.Server
	repo   docstore.Store
	logger *zap.Logger
	cfg    *runner.Config
}

func New(cfg *runner.Config) (runner.Runner, error) {
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	const dbfname = "provision.db"

	repo, err := sqlite.New(filepath.Join(cfg.DataFolder, dbfname))
	if err != nil {
		return nil, err
	}

	repo.RegisterStoreHook(storesync.Hook(repo, logger))

	idp := newIdentityProvider(cfg)

	svc := provision.NewService(idp, repo, logger)
	imp := importer.New(repo, logger)

	srv := web.New(web.Config{
		Addr:              cfg.Addr,
		EnableBootstrap:   cfg.EnableBootstrap,
		InitialAdminEmail: cfg.InitialAdminEmail,
		DatasetPath:       cfg.DatasetPath,
	}, svc, imp, repo, idp, logger, runner.Telemetry())

	return &webrunner{
		srv:    srv,
		repo:   repo,
		logger: logger,
		cfg:    cfg,
	}, nil
}

func (w *webrunner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.srv.Start(ctx)
	})

	g.Go(func() error {
		return w.resyncLoop(ctx)
	})

	return g.Wait()
}

// resyncLoop is a safety net for search keys that drifted while the hook was
// not running (writes from other tooling, crashes between commit and hook).
func (w *webrunner) resyncLoop(ctx context.Context) error {
	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := storesync.ResyncAll(ctx, w.repo, w.logger); err != nil {
				w.logger.Warn("periodic search key resync failed", zap.Error(err))
			}
		}
	}
}

func (w *webrunner) Close(context.Context) error {
	_ = w.logger.Sync()

	return nil
}

func newIdentityProvider(cfg *runner.Config) identity.Provider {
	if cfg.IdentityURL != "" {
		return httpidp.NewClient(cfg.IdentityURL, cfg.IdentityAPIKey)
	}

	return idmemory.New()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
