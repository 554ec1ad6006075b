// Package web exposes the provisioning operations and the administrative
// bootstrap endpoints over HTTP.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/identity"
	"github.com/gosom/store-provisioner/importer"
	"github.com/gosom/store-provisioner/provision"
	"github.com/gosom/store-provisioner/tlmt"
	"github.com/gosom/store-provisioner/web/auth"
	"github.com/gosom/store-provisioner/web/middleware"
)

type Config struct {
	Addr string

	// EnableBootstrap exposes the unauthenticated bootstrap endpoints.
	// They are operational one-time tools and stay unrouted unless the
	// deployment opts in.
	EnableBootstrap bool

	// InitialAdminEmail is the fixed email granted the admin role by the
	// initial-admin bootstrap endpoint.
	InitialAdminEmail string

	// DatasetPath is the store dataset imported by the bootstrap import
	// endpoint when the request carries no body.
	DatasetPath string
}

type Server struct {
	cfg       Config
	svc       *provision.Service
	imp       *importer.Importer
	repo      docstore.Store
	logger    *zap.Logger
	telemetry tlmt.Telemetry
	srv       *http.Server
}

func New(cfg Config, svc *provision.Service, imp *importer.Importer, repo docstore.Store, idp identity.Provider, logger *zap.Logger, telemetry tlmt.Telemetry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:       cfg,
		svc:       svc,
		imp:       imp,
		repo:      repo,
		logger:    logger,
		telemetry: telemetry,
	}

	authmw := auth.NewMiddleware(idp, logger)

	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authmw.Authenticate)
	api.HandleFunc("/accounts/admin", s.createAdminAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/owner", s.createStoreOwnerAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/manager", s.createStoreManagerAccount).Methods(http.MethodPost)

	if cfg.EnableBootstrap {
		boot := router.PathPrefix("/bootstrap").Subrouter()
		boot.HandleFunc("/initial-admin", s.setInitialAdmin).Methods(http.MethodPost)
		boot.HandleFunc("/import-stores", s.importStores).Methods(http.MethodPost)
		boot.HandleFunc("/resync-search-keys", s.resyncSearchKeys).Methods(http.MethodPost)
	}

	handler := middleware.Chain(router,
		middleware.RequestLogger(logger),
		middleware.SecurityHeaders,
	)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", zap.String("addr", s.cfg.Addr))

	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
