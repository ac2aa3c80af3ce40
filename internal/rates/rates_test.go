package rates

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"till/internal/store"
)

type stubRateStore struct {
	getActiveFn func(ctx context.Context, shopID, currency string) (store.ExchangeRateRow, error)
}

func (s stubRateStore) GetActive(ctx context.Context, shopID, currency string) (store.ExchangeRateRow, error) {
	return s.getActiveFn(ctx, shopID, currency)
}

func TestConvertToBaseCurrencyIsIdentity(t *testing.T) {
	service := NewService(stubRateStore{
		getActiveFn: func(context.Context, string, string) (store.ExchangeRateRow, error) {
			t.Fatalf("base currency must not hit the store")
			return store.ExchangeRateRow{}, nil
		},
	})
	conversion, err := service.ConvertToBase(context.Background(), "shop-1", "THB", 150000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conversion.AmountBase != 150000 {
		t.Fatalf("expected identity conversion, got %d", conversion.AmountBase)
	}
	if conversion.Source != SourceBase {
		t.Fatalf("expected base source, got %s", conversion.Source)
	}
}

func TestConvertToBaseAppliesBuyRate(t *testing.T) {
	shopID := "shop-1"
	service := NewService(stubRateStore{
		getActiveFn: func(_ context.Context, _, currency string) (store.ExchangeRateRow, error) {
			if currency != "USD" {
				t.Fatalf("unexpected currency: %s", currency)
			}
			return store.ExchangeRateRow{ID: "rate-1", ShopID: &shopID, Currency: "USD", BuyRate: "33.25"}, nil
		},
	})
	conversion, err := service.ConvertToBase(context.Background(), "shop-1", "USD", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 5000 * 33.25 = 166250.
	if conversion.AmountBase != 166250 {
		t.Fatalf("expected 166250, got %d", conversion.AmountBase)
	}
	if conversion.Source != SourceShopRate {
		t.Fatalf("expected shop_rate source, got %s", conversion.Source)
	}
	if conversion.RateID != "rate-1" {
		t.Fatalf("conversion must carry the rate id")
	}
}

func TestConvertToBaseMissingRate(t *testing.T) {
	service := NewService(stubRateStore{
		getActiveFn: func(context.Context, string, string) (store.ExchangeRateRow, error) {
			return store.ExchangeRateRow{}, sql.ErrNoRows
		},
	})
	_, err := service.ConvertToBase(context.Background(), "shop-1", "EUR", 1000)
	if !errors.Is(err, ErrRateNotSet) {
		t.Fatalf("expected ErrRateNotSet, got %v", err)
	}
}

func TestCurrentBuyRateRejectsNonPositive(t *testing.T) {
	service := NewService(stubRateStore{
		getActiveFn: func(context.Context, string, string) (store.ExchangeRateRow, error) {
			return store.ExchangeRateRow{ID: "rate-1", Currency: "USD", BuyRate: "0"}, nil
		},
	})
	_, err := service.CurrentBuyRate(context.Background(), "shop-1", "USD")
	if !errors.Is(err, ErrRateNotSet) {
		t.Fatalf("a zero rate is as unusable as a missing one, got %v", err)
	}
}

func TestCurrentBuyRateOrgDefault(t *testing.T) {
	service := NewService(stubRateStore{
		getActiveFn: func(context.Context, string, string) (store.ExchangeRateRow, error) {
			return store.ExchangeRateRow{ID: "rate-2", Currency: "USD", BuyRate: "33.00"}, nil
		},
	})
	rate, err := service.CurrentBuyRate(context.Background(), "shop-1", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate.Source != SourceOrgDefault {
		t.Fatalf("nil shop_id is the org default, got %s", rate.Source)
	}
}
