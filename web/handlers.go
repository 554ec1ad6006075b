package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/models"
	"github.com/gosom/store-provisioner/provision"
	"github.com/gosom/store-provisioner/storesync"
	"github.com/gosom/store-provisioner/tlmt"
	"github.com/gosom/store-provisioner/web/auth"
)

type createAccountFn func(ctx context.Context, callerUID string, input provision.CreateAccountInput) (models.AccountUser, error)

func (s *Server) createAdminAccount(w http.ResponseWriter, r *http.Request) {
	s.createAccount(w, r, s.svc.CreateAdmin)
}

func (s *Server) createStoreOwnerAccount(w http.ResponseWriter, r *http.Request) {
	s.createAccount(w, r, s.svc.CreateStoreOwner)
}

func (s *Server) createStoreManagerAccount(w http.ResponseWriter, r *http.Request) {
	s.createAccount(w, r, s.svc.CreateStoreManager)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request, create createAccountFn) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSON(w, http.StatusUnprocessableEntity, models.APIError{Code: http.StatusUnprocessableEntity, Message: err.Error()})

		return
	}

	callerUID, _ := auth.GetUserID(r.Context())

	user, err := create(r.Context(), callerUID, provision.CreateAccountInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		StoreIDs:    req.StoreIDs,
	})
	if err != nil {
		s.renderProvisionError(w, err)

		return
	}

	s.sendEvent(r.Context(), "account_created", map[string]any{"role": string(user.Role)})

	renderJSON(w, http.StatusCreated, models.CreateAccountResponse{Success: true, User: user})
}

func (s *Server) setInitialAdmin(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.SetInitialAdmin(r.Context(), s.cfg.InitialAdminEmail); err != nil {
		s.logger.Error("initial admin bootstrap failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, models.BootstrapResponse{Success: false, Error: err.Error()})

		return
	}

	renderJSON(w, http.StatusOK, models.BootstrapResponse{Success: true, Message: "Admin role set successfully"})
}

func (s *Server) importStores(w http.ResponseWriter, r *http.Request) {
	dataset, err := s.readDataset(r)
	if err != nil {
		s.logger.Error("store import failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, models.BootstrapResponse{Success: false, Error: err.Error()})

		return
	}

	count, err := s.imp.Run(r.Context(), dataset.Stores)
	if err != nil {
		s.logger.Error("store import failed", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, models.BootstrapResponse{Success: false, Error: err.Error()})

		return
	}

	s.sendEvent(r.Context(), "stores_imported", map[string]any{"count": count})

	renderJSON(w, http.StatusOK, models.BootstrapResponse{
		Success: true,
		Message: fmt.Sprintf("%d stores imported successfully", count),
	})
}

func (s *Server) resyncSearchKeys(w http.ResponseWriter, r *http.Request) {
	count, err := storesync.ResyncAll(r.Context(), s.repo, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	s.sendEvent(r.Context(), "stores_resynced", map[string]any{"count": count})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Updated all stores"))
}

// readDataset takes the dataset from the request body when one is supplied,
// otherwise from the configured dataset file.
func (s *Server) readDataset(r *http.Request) (models.ImportFile, error) {
	var dataset models.ImportFile

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dataset); err != nil {
			return models.ImportFile{}, fmt.Errorf("invalid dataset body: %w", err)
		}

		return dataset, nil
	}

	if s.cfg.DatasetPath == "" {
		return models.ImportFile{}, fmt.Errorf("no dataset supplied and no dataset path configured")
	}

	raw, err := os.ReadFile(s.cfg.DatasetPath)
	if err != nil {
		return models.ImportFile{}, err
	}

	if err := json.Unmarshal(raw, &dataset); err != nil {
		return models.ImportFile{}, fmt.Errorf("invalid dataset file: %w", err)
	}

	return dataset, nil
}

func (s *Server) renderProvisionError(w http.ResponseWriter, err error) {
	status := kindToStatus(provision.KindOf(err))

	if status == http.StatusInternalServerError {
		s.logger.Error("provisioning failed", zap.Error(err))
	}

	renderJSON(w, status, models.APIError{Code: status, Message: err.Error()})
}

func (s *Server) sendEvent(ctx context.Context, name string, props map[string]any) {
	if s.telemetry == nil {
		return
	}

	_ = s.telemetry.Send(ctx, tlmt.NewEvent(name, props))
}

func kindToStatus(kind provision.Kind) int {
	switch kind {
	case provision.KindUnauthenticated:
		return http.StatusUnauthorized
	case provision.KindPermissionDenied:
		return http.StatusForbidden
	case provision.KindInvalidArgument:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
