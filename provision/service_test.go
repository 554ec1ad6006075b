package provision_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/docstore"
	dsmemory "github.com/gosom/store-provisioner/docstore/memory"
	"github.com/gosom/store-provisioner/identity"
	idmemory "github.com/gosom/store-provisioner/identity/memory"
	"github.com/gosom/store-provisioner/models"
	"github.com/gosom/store-provisioner/provision"
)

type fixture struct {
	svc  *provision.Service
	repo docstore.Store
	idp  identity.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := dsmemory.New()
	idp := idmemory.New()

	return &fixture{
		svc:  provision.NewService(idp, repo, zap.NewNop()),
		repo: repo,
		idp:  idp,
	}
}

func (f *fixture) seedUser(t *testing.T, user models.User) {
	t.Helper()

	require.NoError(t, f.repo.SetUser(context.Background(), user))
}

func (f *fixture) seedStore(t *testing.T, id string) {
	t.Helper()

	require.NoError(t, f.repo.SetStore(context.Background(), models.Store{
		ID:        id,
		Name:      "Store " + id,
		NameLower: "store " + id,
	}))
}

func validInput(storeIDs []string) provision.CreateAccountInput {
	return provision.CreateAccountInput{
		Email:       "new.user@example.com",
		Password:    "secret123",
		DisplayName: "New User",
		StoreIDs:    storeIDs,
	}
}

func Test_CreateAdmin_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAdmin(context.Background(), "", validInput(nil))

	require.Error(t, err)
	require.Equal(t, provision.KindUnauthenticated, provision.KindOf(err))
	require.Zero(t, idmemory.CreatedCount(f.idp))
}

func Test_CreateAdmin_NonAdminCaller(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "owner-1", Role: models.RoleOwner, OwnedStores: []string{"s1"}})

	_, err := f.svc.CreateAdmin(context.Background(), "owner-1", validInput(nil))

	require.Error(t, err)
	require.Equal(t, provision.KindPermissionDenied, provision.KindOf(err))

	// denial happens before any external call
	require.Zero(t, idmemory.CreatedCount(f.idp))
	require.Empty(t, dsmemory.AdminLogs(f.repo))
}

func Test_CreateAdmin_UnknownCaller(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAdmin(context.Background(), "ghost", validInput(nil))

	require.Error(t, err)
	require.Equal(t, provision.KindPermissionDenied, provision.KindOf(err))
}

func Test_CreateAdmin_Success(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})

	user, err := f.svc.CreateAdmin(context.Background(), "admin-1", validInput(nil))
	require.NoError(t, err)

	require.NotEmpty(t, user.UID)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.Equal(t, "new.user@example.com", user.Email)

	stored, err := f.repo.GetUser(context.Background(), user.UID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, stored.Role)
	require.Empty(t, stored.OwnedStores)
	require.Empty(t, stored.ManagedStores)
	require.Equal(t, "admin-1", stored.CreatedBy)
	require.False(t, stored.CreatedAt.IsZero())

	claims := idmemory.Claims(f.idp, user.UID)
	require.Equal(t, map[string]any{"admin": true}, claims)

	logs := dsmemory.AdminLogs(f.repo)
	require.Len(t, logs, 1)
	require.Equal(t, "create_admin_account", logs[0].Action)
	require.Equal(t, user.UID, logs[0].TargetUID)
	require.Equal(t, "admin-1", logs[0].CreatedBy)
}

func Test_CreateAdmin_IdentityFailure(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})
	idmemory.FailCreate(f.idp)

	_, err := f.svc.CreateAdmin(context.Background(), "admin-1", validInput(nil))

	require.Error(t, err)
	require.Equal(t, provision.KindInternal, provision.KindOf(err))
	require.Empty(t, dsmemory.AdminLogs(f.repo))
}

func Test_CreateAdmin_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})

	input := validInput(nil)
	input.Email = "not-an-email"

	_, err := f.svc.CreateAdmin(context.Background(), "admin-1", input)

	require.Error(t, err)
	require.Equal(t, provision.KindInvalidArgument, provision.KindOf(err))
	require.Zero(t, idmemory.CreatedCount(f.idp))
}

func Test_CreateStoreOwner_RequiresStoreIDs(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})

	_, err := f.svc.CreateStoreOwner(context.Background(), "admin-1", validInput(nil))

	require.Error(t, err)
	require.Equal(t, provision.KindInvalidArgument, provision.KindOf(err))
	require.Zero(t, idmemory.CreatedCount(f.idp))
}

func Test_CreateStoreOwner_NonAdminCaller(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "owner-1", Role: models.RoleOwner, OwnedStores: []string{"s1"}})

	_, err := f.svc.CreateStoreOwner(context.Background(), "owner-1", validInput([]string{"s1"}))

	require.Error(t, err)
	require.Equal(t, provision.KindPermissionDenied, provision.KindOf(err))
	require.Zero(t, idmemory.CreatedCount(f.idp))
}

func Test_CreateStoreOwner_Success(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})
	f.seedStore(t, "s1")
	f.seedStore(t, "s2")

	user, err := f.svc.CreateStoreOwner(context.Background(), "admin-1", validInput([]string{"s1", "s2"}))
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, user.Role)
	require.Equal(t, []string{"s1", "s2"}, user.OwnedStores)

	stored, err := f.repo.GetUser(context.Background(), user.UID)
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, stored.OwnedStores)
	require.Empty(t, stored.ManagedStores)

	for _, storeID := range []string{"s1", "s2"} {
		store, err := f.repo.GetStore(context.Background(), storeID)
		require.NoError(t, err)
		require.Equal(t, user.UID, store.OwnerID)
	}
}

func Test_CreateStoreOwner_MissingStoreStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})
	f.seedStore(t, "s1")

	// s9 does not exist: the cross-reference update fails, the operation
	// still reports success and the user document is intact
	user, err := f.svc.CreateStoreOwner(context.Background(), "admin-1", validInput([]string{"s1", "s9"}))
	require.NoError(t, err)

	stored, err := f.repo.GetUser(context.Background(), user.UID)
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s9"}, stored.OwnedStores)

	store, err := f.repo.GetStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, user.UID, store.OwnerID)
}

func Test_CreateStoreManager_OwnerScope(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "owner-1", Role: models.RoleOwner, OwnedStores: []string{"s1", "s2"}})
	f.seedStore(t, "s1")
	f.seedStore(t, "s2")
	f.seedStore(t, "s3")

	// targeting a store outside the owned set rejects the whole request
	_, err := f.svc.CreateStoreManager(context.Background(), "owner-1", validInput([]string{"s1", "s3"}))
	require.Error(t, err)
	require.Equal(t, provision.KindPermissionDenied, provision.KindOf(err))
	require.Zero(t, idmemory.CreatedCount(f.idp))

	store, err := f.repo.GetStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, store.Managers)

	// all targets owned: manager is created with exactly that delegation
	user, err := f.svc.CreateStoreManager(context.Background(), "owner-1", validInput([]string{"s1"}))
	require.NoError(t, err)
	require.Equal(t, models.RoleManager, user.Role)
	require.Equal(t, []string{"s1"}, user.ManagedStores)

	store, err = f.repo.GetStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, []string{user.UID}, store.Managers)
}

func Test_CreateStoreManager_AdminAnyStore(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})
	f.seedStore(t, "s3")

	user, err := f.svc.CreateStoreManager(context.Background(), "admin-1", validInput([]string{"s3"}))
	require.NoError(t, err)

	store, err := f.repo.GetStore(context.Background(), "s3")
	require.NoError(t, err)
	require.Equal(t, []string{user.UID}, store.Managers)

	claims := idmemory.Claims(f.idp, user.UID)
	require.Equal(t, map[string]any{"storeManager": true}, claims)
}

func Test_EndToEnd_OwnerThenManager(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, models.User{ID: "admin-1", Role: models.RoleAdmin})
	f.seedStore(t, "s1")
	f.seedStore(t, "s2")

	ownerInput := validInput([]string{"s1", "s2"})
	ownerInput.Email = "owner@example.com"

	owner, err := f.svc.CreateStoreOwner(context.Background(), "admin-1", ownerInput)
	require.NoError(t, err)

	for _, storeID := range []string{"s1", "s2"} {
		store, err := f.repo.GetStore(context.Background(), storeID)
		require.NoError(t, err)
		require.Equal(t, owner.UID, store.OwnerID)
	}

	managerInput := validInput([]string{"s1"})
	managerInput.Email = "manager@example.com"

	manager, err := f.svc.CreateStoreManager(context.Background(), owner.UID, managerInput)
	require.NoError(t, err)
	require.Equal(t, []string{"s1"}, manager.ManagedStores)

	store, err := f.repo.GetStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Contains(t, store.Managers, manager.UID)

	// s3 is not owned by the owner: rejected entirely, nothing touched
	badInput := validInput([]string{"s1", "s3"})
	badInput.Email = "manager2@example.com"

	_, err = f.svc.CreateStoreManager(context.Background(), owner.UID, badInput)
	require.Error(t, err)
	require.Equal(t, provision.KindPermissionDenied, provision.KindOf(err))

	store, err = f.repo.GetStore(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, []string{manager.UID}, store.Managers)
}

func Test_SetInitialAdmin(t *testing.T) {
	f := newFixture(t)

	idmemory.Seed(f.idp, identity.Record{UID: "boot-1", Email: "boot@example.com", DisplayName: "Boot"})

	// existing document: delegated-store fields survive the merge
	f.seedUser(t, models.User{
		ID:          "boot-1",
		Email:       "old@example.com",
		Role:        models.RoleOwner,
		OwnedStores: []string{"s1"},
	})

	require.NoError(t, f.svc.SetInitialAdmin(context.Background(), "boot@example.com"))

	user, err := f.repo.GetUser(context.Background(), "boot-1")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.Equal(t, "boot@example.com", user.Email)
	require.Equal(t, []string{"s1"}, user.OwnedStores)

	require.Equal(t, map[string]any{"admin": true}, idmemory.Claims(f.idp, "boot-1"))
}

func Test_SetInitialAdmin_NoDocument(t *testing.T) {
	f := newFixture(t)

	idmemory.Seed(f.idp, identity.Record{UID: "boot-2", Email: "fresh@example.com"})

	require.NoError(t, f.svc.SetInitialAdmin(context.Background(), "fresh@example.com"))

	user, err := f.repo.GetUser(context.Background(), "boot-2")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.Equal(t, "fresh@example.com", user.Email)
}

func Test_SetInitialAdmin_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SetInitialAdmin(context.Background(), "nobody@example.com")

	require.Error(t, err)
	require.Equal(t, provision.KindInternal, provision.KindOf(err))
}
