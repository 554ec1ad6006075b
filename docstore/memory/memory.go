// Package memory provides an in-memory docstore.Store, used by tests and the
// local development mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/models"
)

type repo struct {
	mu    *sync.RWMutex
	users map[string]models.User
	strs  map[string]models.Store
	logs  []models.AdminLog
	hooks []docstore.StoreWriteHook
}

func New() docstore.Store {
	return &repo{
		mu:    &sync.RWMutex{},
		users: make(map[string]models.User),
		strs:  make(map[string]models.Store),
	}
}

func (r *repo) GetUser(ctx context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, docstore.ErrNotFound
	}

	return user, nil
}

func (r *repo) SetUser(ctx context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = user

	return nil
}

func (r *repo) GetStore(ctx context.Context, id string) (models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.strs[id]
	if !ok {
		return models.Store{}, docstore.ErrNotFound
	}

	return store, nil
}

func (r *repo) SetStore(ctx context.Context, store models.Store) error {
	r.mu.Lock()
	r.strs[store.ID] = store
	r.mu.Unlock()

	r.fireHooks(ctx, store)

	return nil
}

func (r *repo) ListStores(ctx context.Context) ([]models.Store, error) {
	r.mu.RLock()

	items := make([]models.Store, 0, len(r.strs))
	for _, store := range r.strs {
		items = append(items, store)
	}

	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})

	return items, nil
}

func (r *repo) SetStoreOwner(ctx context.Context, storeID, ownerID string) error {
	r.mu.Lock()

	store, ok := r.strs[storeID]
	if !ok {
		r.mu.Unlock()

		return docstore.ErrNotFound
	}

	store.OwnerID = ownerID
	r.strs[storeID] = store

	r.mu.Unlock()

	r.fireHooks(ctx, store)

	return nil
}

func (r *repo) AddStoreManager(ctx context.Context, storeID, userID string) error {
	r.mu.Lock()

	store, ok := r.strs[storeID]
	if !ok {
		r.mu.Unlock()

		return docstore.ErrNotFound
	}

	store.Managers = unionManagers(store.Managers, userID)
	r.strs[storeID] = store

	r.mu.Unlock()

	r.fireHooks(ctx, store)

	return nil
}

func (r *repo) UpdateStoreSearchKey(ctx context.Context, storeID, nameLower string) error {
	r.mu.Lock()

	store, ok := r.strs[storeID]
	if !ok {
		r.mu.Unlock()

		return docstore.ErrNotFound
	}

	store.NameLower = nameLower
	r.strs[storeID] = store

	r.mu.Unlock()

	r.fireHooks(ctx, store)

	return nil
}

func (r *repo) AppendAdminLog(ctx context.Context, entry models.AdminLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, entry)

	return nil
}

// AdminLogs returns a copy of the appended log entries, oldest first.
func AdminLogs(st docstore.Store) []models.AdminLog {
	r, ok := st.(*repo)
	if !ok {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AdminLog, len(r.logs))
	copy(out, r.logs)

	return out
}

func (r *repo) RegisterStoreHook(hook docstore.StoreWriteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, hook)
}

func (r *repo) fireHooks(ctx context.Context, store models.Store) {
	r.mu.RLock()
	hooks := make([]docstore.StoreWriteHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, store)
	}
}

func unionManagers(managers []string, userID string) []string {
	for _, id := range managers {
		if id == userID {
			return managers
		}
	}

	return append(managers, userID)
}

type batchOp struct {
	user      *models.User
	store     *models.Store
	log       *models.AdminLog
	keyStore  string
	keyLower  string
	updateKey bool
}

type batch struct {
	repo *repo
	ops  []batchOp
}

func (r *repo) NewBatch() docstore.Batch {
	return &batch{repo: r}
}

func (b *batch) SetUser(user models.User) {
	b.ops = append(b.ops, batchOp{user: &user})
}

func (b *batch) SetStore(store models.Store) {
	b.ops = append(b.ops, batchOp{store: &store})
}

func (b *batch) AppendAdminLog(entry models.AdminLog) {
	b.ops = append(b.ops, batchOp{log: &entry})
}

func (b *batch) UpdateStoreSearchKey(storeID, nameLower string) {
	b.ops = append(b.ops, batchOp{keyStore: storeID, keyLower: nameLower, updateKey: true})
}

// Commit applies all queued operations under one lock. Nothing is applied if
// any operation cannot be (a search-key update against a missing store).
func (b *batch) Commit(ctx context.Context) error {
	r := b.repo

	r.mu.Lock()

	// stage store states so a failed op leaves everything untouched
	staged := make(map[string]models.Store)

	lookup := func(id string) (models.Store, bool) {
		if s, ok := staged[id]; ok {
			return s, true
		}
		s, ok := r.strs[id]

		return s, ok
	}

	for _, op := range b.ops {
		switch {
		case op.store != nil:
			staged[op.store.ID] = *op.store
		case op.updateKey:
			store, ok := lookup(op.keyStore)
			if !ok {
				r.mu.Unlock()

				return fmt.Errorf("batch: store %s: %w", op.keyStore, docstore.ErrNotFound)
			}

			store.NameLower = op.keyLower
			staged[op.keyStore] = store
		}
	}

	var written []models.Store

	for _, op := range b.ops {
		switch {
		case op.user != nil:
			r.users[op.user.ID] = *op.user
		case op.log != nil:
			r.logs = append(r.logs, *op.log)
		case op.store != nil:
			r.strs[op.store.ID] = staged[op.store.ID]
			written = append(written, staged[op.store.ID])
		case op.updateKey:
			r.strs[op.keyStore] = staged[op.keyStore]
			written = append(written, staged[op.keyStore])
		}
	}

	r.mu.Unlock()

	for _, store := range written {
		r.fireHooks(ctx, store)
	}

	return nil
}
