// Package sqlite implements docstore.Store on a local sqlite database. Each
// collection is a table with the document serialized as a JSON column; batch
// commits map to a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/models"
)

type repo struct {
	db *sql.DB

	mu    sync.RWMutex
	hooks []docstore.StoreWriteHook
}

func New(path string) (docstore.Store, error) {
	db, err := initDatabase(path)
	if err != nil {
		return nil, err
	}

	return &repo{db: db}, nil
}

func (r *repo) GetUser(ctx context.Context, id string) (models.User, error) {
	const q = `SELECT doc FROM users WHERE id = ?`

	var user models.User
	if err := r.getDoc(ctx, q, id, &user); err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *repo) SetUser(ctx context.Context, user models.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}

	const q = `INSERT INTO users (id, doc, updated_at) VALUES (?, ?, ?)
	           ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, q, user.ID, string(doc), time.Now().UTC().Unix())

	return err
}

func (r *repo) GetStore(ctx context.Context, id string) (models.Store, error) {
	const q = `SELECT doc FROM stores WHERE id = ?`

	var store models.Store
	if err := r.getDoc(ctx, q, id, &store); err != nil {
		return models.Store{}, err
	}

	return store, nil
}

func (r *repo) SetStore(ctx context.Context, store models.Store) error {
	if err := writeStoreTx(ctx, r.db, store); err != nil {
		return err
	}

	r.fireHooks(ctx, store)

	return nil
}

func (r *repo) ListStores(ctx context.Context) ([]models.Store, error) {
	const q = `SELECT doc FROM stores ORDER BY id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var ans []models.Store

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		var store models.Store
		if err := json.Unmarshal([]byte(raw), &store); err != nil {
			return nil, err
		}

		ans = append(ans, store)
	}

	return ans, rows.Err()
}

func (r *repo) SetStoreOwner(ctx context.Context, storeID, ownerID string) error {
	return r.mutateStore(ctx, storeID, func(store *models.Store) {
		store.OwnerID = ownerID
	})
}

func (r *repo) AddStoreManager(ctx context.Context, storeID, userID string) error {
	return r.mutateStore(ctx, storeID, func(store *models.Store) {
		for _, id := range store.Managers {
			if id == userID {
				return
			}
		}

		store.Managers = append(store.Managers, userID)
	})
}

func (r *repo) UpdateStoreSearchKey(ctx context.Context, storeID, nameLower string) error {
	return r.mutateStore(ctx, storeID, func(store *models.Store) {
		store.NameLower = nameLower
	})
}

// mutateStore applies a field-level update inside one transaction so
// concurrent updates to the same document cannot be lost.
func (r *repo) mutateStore(ctx context.Context, storeID string, mutate func(*models.Store)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	store, err := getStoreTx(ctx, tx, storeID)
	if err != nil {
		return err
	}

	mutate(&store)

	if err := writeStoreTx(ctx, tx, store); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.fireHooks(ctx, store)

	return nil
}

func (r *repo) AppendAdminLog(ctx context.Context, entry models.AdminLog) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	const q = `INSERT INTO admin_logs (id, doc, created_at) VALUES (?, ?, ?)`

	_, err = r.db.ExecContext(ctx, q, entry.ID, string(doc), entry.Timestamp.Unix())

	return err
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

func (r *repo) getDoc(ctx context.Context, q, id string, dest any) error {
	var raw string

	err := r.db.QueryRowContext(ctx, q, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.ErrNotFound
		}

		return err
	}

	return json.Unmarshal([]byte(raw), dest)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeStoreTx(ctx context.Context, ex execer, store models.Store) error {
	doc, err := json.Marshal(store)
	if err != nil {
		return err
	}

	const q = `INSERT INTO stores (id, name_lower, doc, updated_at) VALUES (?, ?, ?, ?)
	           ON CONFLICT(id) DO UPDATE SET name_lower = excluded.name_lower, doc = excluded.doc, updated_at = excluded.updated_at`

	_, err = ex.ExecContext(ctx, q, store.ID, store.NameLower, string(doc), time.Now().UTC().Unix())

	return err
}

func getStoreTx(ctx context.Context, tx *sql.Tx, id string) (models.Store, error) {
	const q = `SELECT doc FROM stores WHERE id = ?`

	var raw string

	err := tx.QueryRowContext(ctx, q, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Store{}, docstore.ErrNotFound
		}

		return models.Store{}, err
	}

	var store models.Store
	if err := json.Unmarshal([]byte(raw), &store); err != nil {
		return models.Store{}, err
	}

	return store, nil
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

// Commit runs every queued operation in one transaction.
func (b *batch) Commit(ctx context.Context) error {
	r := b.repo

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var written []models.Store

	for _, op := range b.ops {
		switch {
		case op.user != nil:
			doc, err := json.Marshal(op.user)
			if err != nil {
				return err
			}

			const q = `INSERT INTO users (id, doc, updated_at) VALUES (?, ?, ?)
			           ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`

			if _, err := tx.ExecContext(ctx, q, op.user.ID, string(doc), time.Now().UTC().Unix()); err != nil {
				return err
			}
		case op.log != nil:
			doc, err := json.Marshal(op.log)
			if err != nil {
				return err
			}

			const q = `INSERT INTO admin_logs (id, doc, created_at) VALUES (?, ?, ?)`

			if _, err := tx.ExecContext(ctx, q, op.log.ID, string(doc), op.log.Timestamp.Unix()); err != nil {
				return err
			}
		case op.store != nil:
			if err := writeStoreTx(ctx, tx, *op.store); err != nil {
				return err
			}

			written = append(written, *op.store)
		case op.updateKey:
			store, err := getStoreTx(ctx, tx, op.keyStore)
			if err != nil {
				return fmt.Errorf("batch: store %s: %w", op.keyStore, err)
			}

			store.NameLower = op.keyLower

			if err := writeStoreTx(ctx, tx, store); err != nil {
				return err
			}

			written = append(written, store)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, store := range written {
		r.fireHooks(ctx, store)
	}

	return nil
}

func initDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=1000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, createSchema(db)
}

func createSchema(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stores (
			id TEXT PRIMARY KEY,
			name_lower TEXT NOT NULL DEFAULT '',
			doc TEXT NOT NULL,
			updated_at INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admin_logs (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			created_at INT NOT NULL
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return err
		}
	}

	return nil
}
