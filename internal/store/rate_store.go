package store

import "context"

type RateStore struct {
	db DB
}

// ExchangeRateRow is a buy rate from a foreign currency into the base
// currency. ShopID nil means the organization-wide default.
type ExchangeRateRow struct {
	ID       string  `db:"id"`
	ShopID   *string `db:"shop_id"`
	Currency string  `db:"currency"`
	BuyRate  string  `db:"buy_rate"`
}

func NewRateStore(db DB) *RateStore {
	return &RateStore{db: db}
}

// GetActive resolves the active buy rate for a currency, preferring the
// shop-specific rate and falling back to the organization default.
func (s *RateStore) GetActive(ctx context.Context, shopID, currency string) (ExchangeRateRow, error) {
	var row ExchangeRateRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, shop_id, currency, buy_rate
		FROM exchange_rates
		WHERE currency = $1 AND is_active = TRUE
		  AND (shop_id = $2 OR shop_id IS NULL)
		ORDER BY shop_id NULLS LAST
		LIMIT 1
	`, currency, shopID)
	return row, err
}

// SetRate activates a new rate and retires the previous one for the same
// scope (shop-specific or organization default).
func (s *RateStore) SetRate(ctx context.Context, tx Tx, shopID *string, currency, buyRate, actorID string) (string, error) {
	var id string
	err := tx.GetContext(ctx, &id, `
		INSERT INTO exchange_rates (id, shop_id, currency, buy_rate, is_active, created_by)
		VALUES (gen_random_uuid()::text, $1, $2, $3, TRUE, $4)
		RETURNING id
	`, shopID, currency, buyRate, actorID)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE exchange_rates
		SET is_active = FALSE, deleted_at = NOW()
		WHERE currency = $1 AND shop_id IS NOT DISTINCT FROM $2
		  AND id <> $3 AND is_active = TRUE
	`, currency, shopID, id)
	if err != nil {
		return "", err
	}
	return id, nil
}
