package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"till/internal/models"
)

func TestTransactionStoreMarkVoided(t *testing.T) {
	ctx := context.Background()
	store := NewTillTransactionStore(stubDB{})
	voidedAt := time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET is_voided = TRUE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if strings.Contains(query, "amount") || strings.Contains(query, "direction") {
				t.Fatalf("void must not touch amount or direction: %s", query)
			}
			if args[1] != "staff-1" || args[2] != "wrong amount" || args[3] != "manager-1" || args[4] != "tx-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := store.MarkVoided(ctx, execer, "tx-1", "staff-1", "wrong amount", "manager-1", voidedAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreGetForUpdateLocks(t *testing.T) {
	ctx := context.Background()
	store := NewTillTransactionStore(stubDB{})
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock, got: %s", query)
			}
			*dest.(*models.TillTransaction) = models.TillTransaction{ID: args[0].(string)}
			return nil
		},
	}
	entry, err := store.GetForUpdate(ctx, getter, "tx-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID != "tx-1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestTransactionStoreMarkVerifiedBySessionSkipsVoided(t *testing.T) {
	ctx := context.Background()
	store := NewTillTransactionStore(stubDB{})
	verifiedAt := time.Date(2026, 8, 27, 18, 0, 0, 0, time.UTC)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET is_verified = TRUE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "is_voided = FALSE") {
				t.Fatalf("voided entries must stay unsigned: %s", query)
			}
			if args[0] != "manager-1" || args[2] != "sess-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 3}, nil
		},
	}
	if err := store.MarkVerifiedBySession(ctx, execer, "sess-1", "manager-1", verifiedAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransactionStoreListBySessionOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewTillTransactionStore(stubDB{
		selectFn: func(_ context.Context, _ any, query string, args ...any) error {
			if !strings.Contains(query, "ORDER BY created_at") {
				t.Fatalf("expected chronological order, got: %s", query)
			}
			if args[0] != "sess-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return nil
		},
	})
	if _, err := store.ListBySession(ctx, "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
