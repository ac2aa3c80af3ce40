package models

import "time"

// BaseCurrency is the drawer's home currency. All rollup totals on a
// TillSession and DailyClose are kept in this currency.
const BaseCurrency = "THB"

type SessionStatus string

const (
	SessionOpen               SessionStatus = "open"
	SessionClosed             SessionStatus = "closed"
	SessionClosedWithVariance SessionStatus = "closed_with_variance"
	SessionVerified           SessionStatus = "verified"
	SessionReconciling        SessionStatus = "reconciling"
)

type TransactionType string

const (
	TxRentalPayment       TransactionType = "rental_payment"
	TxSecurityDeposit     TransactionType = "security_deposit"
	TxCardPayment         TransactionType = "card_payment"
	TxBankTransfer        TransactionType = "bank_transfer"
	TxMobileWalletPayment TransactionType = "mobile_wallet_payment"
	TxDrop                TransactionType = "drop"
	TxTopUp               TransactionType = "top_up"
	TxDepositRefund       TransactionType = "deposit_refund"
	TxOverpaymentRefund   TransactionType = "overpayment_refund"
	TxVoidReversal        TransactionType = "void_reversal"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type TillSession struct {
	ID           string        `db:"id" json:"id"`
	ShopID       string        `db:"shop_id" json:"shop_id"`
	StaffID      string        `db:"staff_id" json:"staff_id"`
	Status       SessionStatus `db:"status" json:"status"`
	OpeningFloat int64         `db:"opening_float" json:"opening_float"`

	TotalCashIn       int64 `db:"total_cash_in" json:"total_cash_in"`
	TotalCashOut      int64 `db:"total_cash_out" json:"total_cash_out"`
	TotalCard         int64 `db:"total_card" json:"total_card"`
	TotalBankTransfer int64 `db:"total_bank_transfer" json:"total_bank_transfer"`
	TotalMobileWallet int64 `db:"total_mobile_wallet" json:"total_mobile_wallet"`
	TotalDropped      int64 `db:"total_dropped" json:"total_dropped"`
	TotalToppedUp     int64 `db:"total_topped_up" json:"total_topped_up"`

	// ClosingVariances holds the currency -> variance (minor units) map
	// captured at close, stored as JSON.
	ClosingVariances string `db:"closing_variances" json:"closing_variances"`

	OpenedAt    time.Time  `db:"opened_at" json:"opened_at"`
	ClosedAt    *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	VerifiedBy  *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	VerifyNotes *string    `db:"verify_notes" json:"verify_notes,omitempty"`
}

// ExpectedCash is the ledger-derived physical cash in the base currency.
// Drops move cash to the safe and top-ups bring it back, so both count
// against cash-on-hand.
func (s TillSession) ExpectedCash() int64 {
	return s.OpeningFloat + s.TotalCashIn - s.TotalCashOut - s.TotalDropped + s.TotalToppedUp
}

type TillTransaction struct {
	ID        string          `db:"id" json:"id"`
	SessionID string          `db:"session_id" json:"session_id"`
	Type      TransactionType `db:"type" json:"type"`
	Direction Direction       `db:"direction" json:"direction"`

	Amount         int64   `db:"amount" json:"amount"`
	Currency       string  `db:"currency" json:"currency"`
	ExchangeRate   string  `db:"exchange_rate" json:"exchange_rate"`
	AmountBase     int64   `db:"amount_base" json:"amount_base"`
	RateSource     string  `db:"rate_source" json:"rate_source"`
	ExchangeRateID *string `db:"exchange_rate_id" json:"exchange_rate_id,omitempty"`

	PaymentID *string `db:"payment_id" json:"payment_id,omitempty"`
	DepositID *string `db:"deposit_id" json:"deposit_id,omitempty"`
	RentalID  *string `db:"rental_id" json:"rental_id,omitempty"`

	IsVoided              bool       `db:"is_voided" json:"is_voided"`
	VoidedAt              *time.Time `db:"voided_at" json:"voided_at,omitempty"`
	VoidedBy              *string    `db:"voided_by" json:"voided_by,omitempty"`
	VoidReason            *string    `db:"void_reason" json:"void_reason,omitempty"`
	VoidApprovedBy        *string    `db:"void_approved_by" json:"void_approved_by,omitempty"`
	OriginalTransactionID *string    `db:"original_transaction_id" json:"original_transaction_id,omitempty"`
	RelatedTransactionID  *string    `db:"related_transaction_id" json:"related_transaction_id,omitempty"`

	IsVerified bool       `db:"is_verified" json:"is_verified"`
	VerifiedBy *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CountType string

const (
	CountOpening CountType = "opening"
	CountClosing CountType = "closing"
)

// DenominationLine is one denomination x quantity row inside a breakdown.
type DenominationLine struct {
	Denomination int64 `json:"denomination"`
	Quantity     int   `json:"quantity"`
}

// CurrencyBreakdown is the counted cash for one currency. Total and
// Variance are computed, never caller-supplied.
type CurrencyBreakdown struct {
	Currency        string             `json:"currency"`
	Lines           []DenominationLine `json:"lines"`
	Total           int64              `json:"total"`
	ExpectedBalance int64              `json:"expected_balance"`
	Variance        int64              `json:"variance"`
}

type TillDenominationCount struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	CountType CountType `db:"count_type" json:"count_type"`
	// Breakdowns holds the per-currency []CurrencyBreakdown as JSON.
	Breakdowns string `db:"breakdowns" json:"breakdowns"`
	// TotalBase is the counted grand total converted to the base currency.
	TotalBase  int64     `db:"total_base" json:"total_base"`
	RateSource string    `db:"rate_source" json:"rate_source"`
	IsFinal    bool      `db:"is_final" json:"is_final"`
	CountedBy  string    `db:"counted_by" json:"counted_by"`
	CountedAt  time.Time `db:"counted_at" json:"counted_at"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
}

type DailyCloseStatus string

const (
	DayOpen       DailyCloseStatus = "open"
	DayClosed     DailyCloseStatus = "closed"
	DayReconciled DailyCloseStatus = "reconciled"
)

type DailyClose struct {
	ID        string           `db:"id" json:"id"`
	ShopID    string           `db:"shop_id" json:"shop_id"`
	CloseDate time.Time        `db:"close_date" json:"close_date"`
	Status    DailyCloseStatus `db:"status" json:"status"`

	TotalCashIn          int64 `db:"total_cash_in" json:"total_cash_in"`
	TotalCashOut         int64 `db:"total_cash_out" json:"total_cash_out"`
	TotalDropped         int64 `db:"total_dropped" json:"total_dropped"`
	TotalElectronic      int64 `db:"total_electronic" json:"total_electronic"`
	TotalVariance        int64 `db:"total_variance" json:"total_variance"`
	SessionCount         int   `db:"session_count" json:"session_count"`
	SessionsWithVariance int   `db:"sessions_with_variance" json:"sessions_with_variance"`

	ClosedBy *string    `db:"closed_by" json:"closed_by,omitempty"`
	ClosedAt *time.Time `db:"closed_at" json:"closed_at,omitempty"`

	WasReopened  bool       `db:"was_reopened" json:"was_reopened"`
	ReopenReason *string    `db:"reopen_reason" json:"reopen_reason,omitempty"`
	ReopenedBy   *string    `db:"reopened_by" json:"reopened_by,omitempty"`
	ReopenedAt   *time.Time `db:"reopened_at" json:"reopened_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ShortageLog is an immutable accountability record. Rows are never
// updated or deleted after insert.
type ShortageLog struct {
	ID           string    `db:"id" json:"id"`
	ShopID       string    `db:"shop_id" json:"shop_id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	DailyCloseID *string   `db:"daily_close_id" json:"daily_close_id,omitempty"`
	StaffID      string    `db:"staff_id" json:"staff_id"`
	Currency     string    `db:"currency" json:"currency"`
	Amount       int64     `db:"amount" json:"amount"`
	AmountBase   int64     `db:"amount_base" json:"amount_base"`
	RateSource   string    `db:"rate_source" json:"rate_source"`
	Reason       string    `db:"reason" json:"reason"`
	LoggedBy     string    `db:"logged_by" json:"logged_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Staff struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
