// Package memory is an in-process identity provider used by tests and local
// development. Tokens are simply "uid:<id>".
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gosom/store-provisioner/identity"
)

const tokenPrefix = "uid:"

type provider struct {
	mu     sync.RWMutex
	users  map[string]identity.Record // keyed by uid
	emails map[string]string          // email -> uid
	claims map[string]map[string]any

	failCreate bool
	created    int
}

func New() identity.Provider {
	return &provider{
		users:  make(map[string]identity.Record),
		emails: make(map[string]string),
		claims: make(map[string]map[string]any),
	}
}

func (p *provider) CreateUser(_ context.Context, params identity.CreateUserParams) (identity.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failCreate {
		return identity.Record{}, identity.ErrProviderError
	}

	if _, ok := p.emails[params.Email]; ok {
		return identity.Record{}, identity.ErrEmailTaken
	}

	rec := identity.Record{
		UID:         uuid.New().String(),
		Email:       params.Email,
		DisplayName: params.DisplayName,
	}

	p.users[rec.UID] = rec
	p.emails[rec.Email] = rec.UID
	p.created++

	return rec, nil
}

func (p *provider) SetCustomClaims(_ context.Context, uid string, claims map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[uid]; !ok {
		return identity.ErrUserNotFound
	}

	p.claims[uid] = claims

	return nil
}

func (p *provider) GetUserByEmail(_ context.Context, email string) (identity.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	uid, ok := p.emails[email]
	if !ok {
		return identity.Record{}, identity.ErrUserNotFound
	}

	return p.users[uid], nil
}

func (p *provider) VerifyToken(_ context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return "", identity.ErrTokenInvalid
	}

	return strings.TrimPrefix(token, tokenPrefix), nil
}

// Seed registers a record with a fixed uid, bypassing CreateUser.
func Seed(p identity.Provider, rec identity.Record) {
	mp, ok := p.(*provider)
	if !ok {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.users[rec.UID] = rec
	mp.emails[rec.Email] = rec.UID
}

// FailCreate makes every subsequent CreateUser call fail.
func FailCreate(p identity.Provider) {
	mp, ok := p.(*provider)
	if !ok {
		return
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.failCreate = true
}

// CreatedCount reports how many identities were created.
func CreatedCount(p identity.Provider) int {
	mp, ok := p.(*provider)
	if !ok {
		return 0
	}

	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.created
}

// Claims returns the custom claims set for uid, if any.
func Claims(p identity.Provider, uid string) map[string]any {
	mp, ok := p.(*provider)
	if !ok {
		return nil
	}

	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.claims[uid]
}
