package authz_test

import (
	"context"
	"testing"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
)

func TestMemoLoadsOnce(t *testing.T) {
	store := &stubStore{
		perms:   []authz.Permission{{Resource: authz.ResourceAtivo, Action: authz.ActionRead}},
		filials: []int64{1},
	}
	memo := authz.NewMemo(7)

	for i := 0; i < 3; i++ {
		if _, err := memo.Permissions(context.Background(), store, 7); err != nil {
			t.Fatalf("permissions: %v", err)
		}
		if _, err := memo.Filials(context.Background(), store, 7); err != nil {
			t.Fatalf("filials: %v", err)
		}
	}

	if store.permsCalls != 1 || store.filialsCalls != 1 {
		t.Fatalf("expected one load each, got perms=%d filials=%d", store.permsCalls, store.filialsCalls)
	}
}

func TestMemoBypassedForOtherPrincipal(t *testing.T) {
	store := &stubStore{}
	memo := authz.NewMemo(7)

	for i := 0; i < 2; i++ {
		if _, err := memo.Permissions(context.Background(), store, 8); err != nil {
			t.Fatalf("permissions: %v", err)
		}
	}
	if store.permsCalls != 2 {
		t.Fatalf("expected memo bypass for a different user, got %d calls", store.permsCalls)
	}
}

func TestNilMemoFallsThroughToStore(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{{Resource: authz.ResourceAtivo, Action: authz.ActionRead}}}

	var memo *authz.Memo
	perms, err := memo.Permissions(context.Background(), store, 7)
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if len(perms) != 1 || store.permsCalls != 1 {
		t.Fatalf("expected direct store load, got %d perms, %d calls", len(perms), store.permsCalls)
	}
}

func TestMemoFailureIsNotCached(t *testing.T) {
	store := &stubStore{permsErr: context.DeadlineExceeded}
	memo := authz.NewMemo(7)

	if _, err := memo.Permissions(context.Background(), store, 7); err == nil {
		t.Fatalf("expected first load to fail")
	}

	store.permsErr = nil
	store.perms = []authz.Permission{{Resource: authz.ResourceAtivo, Action: authz.ActionRead}}
	perms, err := memo.Permissions(context.Background(), store, 7)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("expected 1 permission after retry, got %d", len(perms))
	}
}

func TestMemoContextRoundTrip(t *testing.T) {
	memo := authz.NewMemo(7)
	ctx := authz.ContextWithMemo(context.Background(), memo)

	if got := authz.MemoFromContext(ctx); got != memo {
		t.Fatalf("expected the stored memo back")
	}
	if got := authz.MemoFromContext(context.Background()); got != nil {
		t.Fatalf("expected nil memo for a bare context, got %v", got)
	}
}
