// Package provision orchestrates account creation for the three authorization
// tiers. It owns the invariant that a user's role, its identity-provider
// claims, and the store documents it references stay consistent.
package provision

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcnijman/go-emailaddress"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/identity"
	"github.com/gosom/store-provisioner/models"
)

const actionCreateAdminAccount = "create_admin_account"

// CreateAccountInput holds the attributes for a new account.
type CreateAccountInput struct {
	Email       string `validate:"required"`
	Password    string `validate:"required,min=6"`
	DisplayName string `validate:"required"`

	// StoreIDs is required for owner and manager accounts. A nil list is
	// rejected; an empty non-nil list is a valid (storeless) delegation.
	StoreIDs []string
}

func (in *CreateAccountInput) validate(requireStores bool) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(in); err != nil {
		return wrapError(KindInvalidArgument, "invalid account attributes", err)
	}

	if _, err := emailaddress.Parse(in.Email); err != nil {
		return wrapError(KindInvalidArgument, "invalid email address", multierr.Append(err, errors.New(in.Email)))
	}

	if requireStores && in.StoreIDs == nil {
		return newError(KindInvalidArgument, "a valid list of store ids is required")
	}

	return nil
}

// Service implements the account provisioning operations.
type Service struct {
	idp    identity.Provider
	repo   docstore.Store
	logger *zap.Logger
}

func NewService(idp identity.Provider, repo docstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		idp:    idp,
		repo:   repo,
		logger: logger,
	}
}

// CreateAdmin creates an admin account. Only admins may call it. The user
// document and the audit log entry are persisted in one batch after the
// identity exists.
func (s *Service) CreateAdmin(ctx context.Context, callerUID string, input CreateAccountInput) (models.AccountUser, error) {
	caller, err := s.authenticateCaller(ctx, callerUID)
	if err != nil {
		return models.AccountUser{}, err
	}

	if err := Authorize(caller.Role, caller.OwnedStores, ActionCreateAdmin, nil); err != nil {
		return models.AccountUser{}, err
	}

	if err := input.validate(false); err != nil {
		return models.AccountUser{}, err
	}

	rec, err := s.createIdentity(ctx, input, map[string]any{"admin": true})
	if err != nil {
		return models.AccountUser{}, err
	}

	user := models.User{
		ID:            rec.UID,
		Email:         input.Email,
		DisplayName:   input.DisplayName,
		Role:          models.RoleAdmin,
		ManagedStores: []string{},
		OwnedStores:   []string{},
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     callerUID,
	}

	batch := s.repo.NewBatch()
	batch.SetUser(user)
	batch.AppendAdminLog(models.AdminLog{
		ID:        uuid.New().String(),
		Action:    actionCreateAdminAccount,
		TargetUID: rec.UID,
		CreatedBy: callerUID,
		Timestamp: user.CreatedAt,
		Details: map[string]any{
			"email":       input.Email,
			"displayName": input.DisplayName,
		},
	})

	if err := batch.Commit(ctx); err != nil {
		s.warnOrphanedIdentity(rec.UID, err)

		return models.AccountUser{}, wrapError(KindInternal, "failed to create admin account", err)
	}

	return accountUser(user), nil
}

// CreateStoreOwner creates a store owner account and points every target
// store's ownerId at the new user. The per-store updates are issued after the
// user document write and are not atomic with it; an individual failure is
// logged and the operation still reports success.
func (s *Service) CreateStoreOwner(ctx context.Context, callerUID string, input CreateAccountInput) (models.AccountUser, error) {
	caller, err := s.authenticateCaller(ctx, callerUID)
	if err != nil {
		return models.AccountUser{}, err
	}

	if err := Authorize(caller.Role, caller.OwnedStores, ActionCreateOwner, input.StoreIDs); err != nil {
		return models.AccountUser{}, err
	}

	if err := input.validate(true); err != nil {
		return models.AccountUser{}, err
	}

	rec, err := s.createIdentity(ctx, input, map[string]any{"storeOwner": true})
	if err != nil {
		return models.AccountUser{}, err
	}

	user := models.User{
		ID:            rec.UID,
		Email:         input.Email,
		DisplayName:   input.DisplayName,
		Role:          models.RoleOwner,
		ManagedStores: []string{},
		OwnedStores:   input.StoreIDs,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     callerUID,
	}

	if err := s.repo.SetUser(ctx, user); err != nil {
		s.warnOrphanedIdentity(rec.UID, err)

		return models.AccountUser{}, wrapError(KindInternal, "failed to create store owner account", err)
	}

	for _, storeID := range input.StoreIDs {
		if err := s.repo.SetStoreOwner(ctx, storeID, rec.UID); err != nil {
			s.logger.Warn("store owner reference not synchronized",
				zap.String("store_id", storeID),
				zap.String("owner_id", rec.UID),
				zap.Error(err))
		}
	}

	return accountUser(user), nil
}

// CreateStoreManager creates a manager account. Admins may target any store;
// owners only stores they own (the guard rejects the whole request before any
// side effect otherwise). The new user id is added to each store's managers
// set with a commutative union update.
func (s *Service) CreateStoreManager(ctx context.Context, callerUID string, input CreateAccountInput) (models.AccountUser, error) {
	caller, err := s.authenticateCaller(ctx, callerUID)
	if err != nil {
		return models.AccountUser{}, err
	}

	if err := Authorize(caller.Role, caller.OwnedStores, ActionCreateManager, input.StoreIDs); err != nil {
		return models.AccountUser{}, err
	}

	if err := input.validate(true); err != nil {
		return models.AccountUser{}, err
	}

	rec, err := s.createIdentity(ctx, input, map[string]any{"storeManager": true})
	if err != nil {
		return models.AccountUser{}, err
	}

	user := models.User{
		ID:            rec.UID,
		Email:         input.Email,
		DisplayName:   input.DisplayName,
		Role:          models.RoleManager,
		ManagedStores: input.StoreIDs,
		OwnedStores:   []string{},
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     callerUID,
	}

	if err := s.repo.SetUser(ctx, user); err != nil {
		s.warnOrphanedIdentity(rec.UID, err)

		return models.AccountUser{}, wrapError(KindInternal, "failed to create store manager account", err)
	}

	for _, storeID := range input.StoreIDs {
		if err := s.repo.AddStoreManager(ctx, storeID, rec.UID); err != nil {
			s.logger.Warn("store manager reference not synchronized",
				zap.String("store_id", storeID),
				zap.String("manager_id", rec.UID),
				zap.Error(err))
		}
	}

	return accountUser(user), nil
}

// SetInitialAdmin grants the admin role to an existing identity looked up by
// email. Trusted bootstrap path: no caller authorization check. The user
// document is merge-upserted so delegated-store fields of an existing
// document survive.
func (s *Service) SetInitialAdmin(ctx context.Context, email string) error {
	rec, err := s.idp.GetUserByEmail(ctx, email)
	if err != nil {
		return wrapError(KindInternal, "failed to look up identity", err)
	}

	if err := s.idp.SetCustomClaims(ctx, rec.UID, map[string]any{"admin": true}); err != nil {
		return wrapError(KindInternal, "failed to set admin claim", err)
	}

	user, err := s.repo.GetUser(ctx, rec.UID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			return wrapError(KindInternal, "failed to load user document", err)
		}

		user = models.User{ID: rec.UID}
	}

	user.Email = email
	user.Role = models.RoleAdmin
	user.CreatedAt = time.Now().UTC()

	if err := s.repo.SetUser(ctx, user); err != nil {
		return wrapError(KindInternal, "failed to persist user document", err)
	}

	return nil
}

// authenticateCaller resolves the caller's stored user document. An empty uid
// means the request carried no identity; a missing document means the caller
// has no role and is denied.
func (s *Service) authenticateCaller(ctx context.Context, callerUID string) (models.User, error) {
	if callerUID == "" {
		return models.User{}, newError(KindUnauthenticated, "authentication required")
	}

	caller, err := s.repo.GetUser(ctx, callerUID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return models.User{}, newError(KindPermissionDenied, "caller has no role")
		}

		return models.User{}, wrapError(KindInternal, "failed to load caller", err)
	}

	return caller, nil
}

// createIdentity creates the identity-provider record and attaches role
// claims. Identity creation strictly precedes any document write; if claim
// setting fails the already-created identity is left orphaned and the
// operation reports internal.
func (s *Service) createIdentity(ctx context.Context, input CreateAccountInput, claims map[string]any) (identity.Record, error) {
	rec, err := s.idp.CreateUser(ctx, identity.CreateUserParams{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		return identity.Record{}, wrapError(KindInternal, "failed to create identity", err)
	}

	if err := s.idp.SetCustomClaims(ctx, rec.UID, claims); err != nil {
		s.warnOrphanedIdentity(rec.UID, err)

		return identity.Record{}, wrapError(KindInternal, "failed to set role claims", err)
	}

	return rec, nil
}

func (s *Service) warnOrphanedIdentity(uid string, err error) {
	s.logger.Warn("identity created but provisioning did not complete; manual remediation needed",
		zap.String("uid", uid),
		zap.Error(err))
}

func accountUser(user models.User) models.AccountUser {
	ans := models.AccountUser{
		UID:         user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}

	switch user.Role {
	case models.RoleOwner:
		ans.OwnedStores = user.OwnedStores
	case models.RoleManager:
		ans.ManagedStores = user.ManagedStores
	}

	return ans
}
