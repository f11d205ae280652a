package authz

import (
	"context"
	"sync"
)

// Memo caches the effective permission set and branch entitlements of a single
// principal for the duration of one request. It is built by the middleware at
// request start and discarded with the request; there is no cross-request
// cache, so assignment changes take effect on the next request.
type Memo struct {
	userID int64

	mu            sync.Mutex
	perms         []Permission
	permsLoaded   bool
	filials       []int64
	filialsLoaded bool
}

// NewMemo constructs a memo for the given principal id.
func NewMemo(userID int64) *Memo {
	return &Memo{userID: userID}
}

// Permissions returns the memoized effective permission set, loading it from
// the store on first use.
func (m *Memo) Permissions(ctx context.Context, store Store, userID int64) ([]Permission, error) {
	if m == nil || m.userID != userID {
		return store.PermissionsFor(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.permsLoaded {
		perms, err := store.PermissionsFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		m.perms = perms
		m.permsLoaded = true
	}
	return m.perms, nil
}

// Filials returns the memoized branch entitlements, loading them from the
// store on first use.
func (m *Memo) Filials(ctx context.Context, store Store, userID int64) ([]int64, error) {
	if m == nil || m.userID != userID {
		return store.FilialsFor(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.filialsLoaded {
		ids, err := store.FilialsFor(ctx, userID)
		if err != nil {
			return nil, err
		}
		m.filials = ids
		m.filialsLoaded = true
	}
	return m.filials, nil
}

type memoContextKey struct{}

// ContextWithMemo stores the per-request memo in context.
func ContextWithMemo(ctx context.Context, memo *Memo) context.Context {
	return context.WithValue(ctx, memoContextKey{}, memo)
}

// MemoFromContext extracts the per-request memo, or nil when absent.
func MemoFromContext(ctx context.Context) *Memo {
	memo, _ := ctx.Value(memoContextKey{}).(*Memo)
	return memo
}
