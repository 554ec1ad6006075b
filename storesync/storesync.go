// Package storesync keeps every store's case-folded search key in line with
// its name. The reaction is level-triggered: it looks only at the current
// document state and writes nothing when the key already matches.
package storesync

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/models"
)

// SearchKey computes the case-folded search key for a store name.
func SearchKey(name string) string {
	return strings.ToLower(name)
}

// Hook returns a post-commit store hook that rewrites the search key when it
// has drifted from the name. Re-applying it to an unchanged document is a
// no-op, which also terminates the hook's own write cycle. Failures are
// logged, never propagated.
func Hook(repo docstore.Store, logger *zap.Logger) docstore.StoreWriteHook {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, store models.Store) {
		if store.Name == "" {
			return
		}

		key := SearchKey(store.Name)
		if store.NameLower == key {
			return
		}

		if err := repo.UpdateStoreSearchKey(ctx, store.ID, key); err != nil {
			logger.Warn("search key not synchronized",
				zap.String("store_id", store.ID),
				zap.Error(err))
		}
	}
}

// ResyncAll recomputes the search key for every store and batch-updates the
// stale ones. It returns the number of stores updated; running it twice in a
// row updates nothing the second time.
func ResyncAll(ctx context.Context, repo docstore.Store, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	stores, err := repo.ListStores(ctx)
	if err != nil {
		return 0, err
	}

	batch := repo.NewBatch()
	count := 0

	for _, store := range stores {
		if store.Name == "" {
			continue
		}

		key := SearchKey(store.Name)
		if store.NameLower == key {
			continue
		}

		batch.UpdateStoreSearchKey(store.ID, key)
		count++
	}

	if count == 0 {
		return 0, nil
	}

	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}

	logger.Info("search keys resynchronized", zap.Int("count", count))

	return count, nil
}
