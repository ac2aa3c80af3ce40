package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"till/internal/models"
)

func testDayStart() time.Time {
	return time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
}

func testDayEnd() time.Time {
	return testDayStart().Add(24 * time.Hour)
}

func TestSessionStoreGetForUpdateLocksRow(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(stubDB{})
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock, got: %s", query)
			}
			if len(args) != 1 || args[0] != "sess-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*models.TillSession) = models.TillSession{ID: "sess-1", Status: models.SessionOpen}
			return nil
		},
	}
	session, err := store.GetForUpdate(ctx, getter, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "sess-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestSessionStoreBalancesMapsRows(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM till_session_balances") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*[]balanceRow) = []balanceRow{
				{Currency: "THB", Balance: 550000},
				{Currency: "USD", Balance: 5000},
			}
			return nil
		},
	})
	balances, err := store.Balances(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balances["THB"] != 550000 || balances["USD"] != 5000 {
		t.Fatalf("unexpected balances: %v", balances)
	}
}

func TestSessionStoreBalancesForUpdateLocks(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(stubDB{})
	tx := stubTx{
		selectFn: func(_ context.Context, dest any, query string, _ ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock, got: %s", query)
			}
			*dest.(*[]balanceRow) = nil
			return nil
		},
	}
	balances, err := store.BalancesForUpdate(ctx, tx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(balances) != 0 {
		t.Fatalf("expected empty map, got %v", balances)
	}
}

func TestSessionStoreUpsertBalance(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(stubDB{})
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "ON CONFLICT (session_id, currency)") {
				t.Fatalf("expected upsert, got: %s", query)
			}
			if args[0] != "sess-1" || args[1] != "THB" || args[2] != int64(650000) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	if err := store.UpsertBalance(ctx, execer, "sess-1", "THB", 650000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSessionStoreListWithVarianceFilters(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(stubDB{
		selectFn: func(_ context.Context, _ any, query string, _ ...any) error {
			if !strings.Contains(query, `closing_variances <> '{}'`) {
				t.Fatalf("expected variance filter, got: %s", query)
			}
			return nil
		},
	})
	if _, err := store.ListWithVariance(ctx, "shop-1", testDayStart(), testDayEnd()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
