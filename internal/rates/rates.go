// Package rates resolves exchange rates into the base currency. Rates are
// buy rates (foreign -> THB), shop-specific with an organization-default
// fallback.
package rates

import (
	"context"
	"database/sql"
	"errors"

	"till/internal/models"
	"till/internal/money"
	"till/internal/store"

	"github.com/shopspring/decimal"
)

var ErrRateNotSet = errors.New("no exchange rate configured")

const (
	SourceBase       = "base"
	SourceShopRate   = "shop_rate"
	SourceOrgDefault = "org_default"
	// SourceFallback marks rows written through an explicit rate=1 / raw
	// amount degradation. It never appears on payment records.
	SourceFallback = "fallback"
)

type Store interface {
	GetActive(ctx context.Context, shopID, currency string) (store.ExchangeRateRow, error)
}

// Conversion is the audit-complete result of converting a foreign amount
// into the base currency.
type Conversion struct {
	AmountBase int64
	Rate       string
	Source     string
	RateID     string
}

// Rate is a current buy rate lookup result.
type Rate struct {
	BuyRate decimal.Decimal
	Source  string
	RateID  string
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// ConvertToBase converts amountMinor of currency into the base currency.
// The base currency converts at exactly 1. Returns ErrRateNotSet when no
// active rate exists for the currency.
func (s *Service) ConvertToBase(ctx context.Context, shopID, currency string, amountMinor int64) (Conversion, error) {
	if currency == models.BaseCurrency {
		return Conversion{
			AmountBase: amountMinor,
			Rate:       decimal.NewFromInt(1).StringFixedBank(6),
			Source:     SourceBase,
		}, nil
	}
	rate, err := s.CurrentBuyRate(ctx, shopID, currency)
	if err != nil {
		return Conversion{}, err
	}
	return Conversion{
		AmountBase: money.ConvertMinor(amountMinor, rate.BuyRate),
		Rate:       rate.BuyRate.StringFixedBank(6),
		Source:     rate.Source,
		RateID:     rate.RateID,
	}, nil
}

func (s *Service) CurrentBuyRate(ctx context.Context, shopID, currency string) (Rate, error) {
	row, err := s.store.GetActive(ctx, shopID, currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Rate{}, ErrRateNotSet
		}
		return Rate{}, err
	}
	buyRate, err := decimal.NewFromString(row.BuyRate)
	if err != nil || !buyRate.IsPositive() {
		return Rate{}, ErrRateNotSet
	}
	source := SourceOrgDefault
	if row.ShopID != nil {
		source = SourceShopRate
	}
	return Rate{BuyRate: buyRate, Source: source, RateID: row.ID}, nil
}
