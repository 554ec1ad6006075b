// Package docstore defines the document-store abstraction the provisioning
// and import paths write through. Implementations must apply a Batch as a
// single atomic unit and fire registered store hooks after every committed
// store write.
package docstore

import (
	"context"
	"errors"

	"github.com/gosom/store-provisioner/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// StoreWriteHook is invoked after a store document write (create or update)
// has been committed. Hooks run synchronously in write order; a hook that
// writes back to the same store triggers itself again, so hooks must be
// idempotent.
type StoreWriteHook func(ctx context.Context, store models.Store)

// Batch queues document operations and commits them atomically. Operations
// become visible all at once; none are visible if Commit fails.
type Batch interface {
	SetUser(user models.User)
	SetStore(store models.Store)
	AppendAdminLog(entry models.AdminLog)
	UpdateStoreSearchKey(storeID, nameLower string)
	Commit(ctx context.Context) error
}

// Store is the transactional read/write surface over the three document
// collections (users, stores, adminLogs).
type Store interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	SetUser(ctx context.Context, user models.User) error

	GetStore(ctx context.Context, id string) (models.Store, error)
	SetStore(ctx context.Context, store models.Store) error
	ListStores(ctx context.Context) ([]models.Store, error)

	// SetStoreOwner overwrites the store's ownerId field.
	SetStoreOwner(ctx context.Context, storeID, ownerID string) error

	// AddStoreManager adds userID to the store's managers set. The update is
	// a commutative set union so concurrent calls cannot lose members.
	AddStoreManager(ctx context.Context, storeID, userID string) error

	// UpdateStoreSearchKey overwrites only the nameLower field.
	UpdateStoreSearchKey(ctx context.Context, storeID, nameLower string) error

	AppendAdminLog(ctx context.Context, entry models.AdminLog) error

	NewBatch() Batch

	// RegisterStoreHook registers a post-commit hook for store writes.
	RegisterStoreHook(hook StoreWriteHook)
}
