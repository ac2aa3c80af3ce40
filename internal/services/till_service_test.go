package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"till/internal/models"
	"till/internal/rates"

	"github.com/shopspring/decimal"
)

type tillFixture struct {
	service      *TillService
	sessions     *memSessionStore
	transactions *memTransactionStore
	audit        *recordingAuditStore
	hub          *stubHub
}

func newTillFixture(t *testing.T, tolerance int64) *tillFixture {
	t.Helper()
	sessions := newMemSessionStore()
	transactions := newMemTransactionStore()
	audit := &recordingAuditStore{}
	hub := &stubHub{}
	rateSvc := stubRateService{rates: map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(33),
	}}
	managers := stubManagerStore{managers: map[string]bool{"manager-1": true, "manager-2": true}}
	service := NewTillService(fakeTxRunner{}, sessions, transactions, rateSvc, managers, audit, hub, tolerance)
	return &tillFixture{
		service:      service,
		sessions:     sessions,
		transactions: transactions,
		audit:        audit,
		hub:          hub,
	}
}

func (f *tillFixture) openSession(t *testing.T, openingFloat int64) models.TillSession {
	t.Helper()
	session, err := f.service.OpenSession(context.Background(), OpenSessionRequest{
		ShopID:       "shop-1",
		StaffID:      "staff-1",
		OpeningFloat: openingFloat,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return session
}

func TestOpenSessionSeedsFloat(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	balances, err := f.sessions.Balances(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if balances[models.BaseCurrency] != 500000 {
		t.Fatalf("expected THB balance 500000, got %d", balances[models.BaseCurrency])
	}
	if session.Status != models.SessionOpen {
		t.Fatalf("expected open status, got %s", session.Status)
	}
}

func TestOpenSessionRejectsNegativeFloat(t *testing.T) {
	f := newTillFixture(t, 0)
	_, err := f.service.OpenSession(context.Background(), OpenSessionRequest{
		ShopID: "shop-1", StaffID: "staff-1", OpeningFloat: -1,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRecordCashPaymentUpdatesDrawer(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	entry, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxRentalPayment,
		Currency:  models.BaseCurrency,
		Amount:    150000,
	})
	if err != nil {
		t.Fatalf("record in: %v", err)
	}
	if entry.AmountBase != 150000 {
		t.Fatalf("expected amount_base 150000, got %d", entry.AmountBase)
	}

	updated, _ := f.sessions.GetByID(context.Background(), session.ID)
	if updated.TotalCashIn != 150000 {
		t.Fatalf("expected total_cash_in 150000, got %d", updated.TotalCashIn)
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances[models.BaseCurrency] != 650000 {
		t.Fatalf("expected drawer 650000, got %d", balances[models.BaseCurrency])
	}
	if len(f.hub.updates) != 1 {
		t.Fatalf("expected one drawer broadcast, got %d", len(f.hub.updates))
	}
}

func TestRecordElectronicPaymentLeavesDrawerAlone(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	if _, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxCardPayment,
		Currency:  models.BaseCurrency,
		Amount:    80000,
	}); err != nil {
		t.Fatalf("record card: %v", err)
	}

	updated, _ := f.sessions.GetByID(context.Background(), session.ID)
	if updated.TotalCard != 80000 {
		t.Fatalf("expected total_card 80000, got %d", updated.TotalCard)
	}
	if updated.TotalCashIn != 0 {
		t.Fatalf("card payment must not touch cash totals, got %d", updated.TotalCashIn)
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances[models.BaseCurrency] != 500000 {
		t.Fatalf("card payment must not touch drawer, got %d", balances[models.BaseCurrency])
	}
	if len(f.hub.updates) != 0 {
		t.Fatalf("no drawer broadcast expected, got %d", len(f.hub.updates))
	}
}

func TestRecordForeignCurrencyConverts(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 0)

	entry, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxRentalPayment,
		Currency:  "USD",
		Amount:    5000,
	})
	if err != nil {
		t.Fatalf("record usd: %v", err)
	}
	if entry.AmountBase != 165000 {
		t.Fatalf("expected 5000 * 33 = 165000, got %d", entry.AmountBase)
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances["USD"] != 5000 {
		t.Fatalf("expected USD drawer 5000, got %d", balances["USD"])
	}
	updated, _ := f.sessions.GetByID(context.Background(), session.ID)
	if updated.TotalCashIn != 165000 {
		t.Fatalf("expected total_cash_in in base currency, got %d", updated.TotalCashIn)
	}
}

func TestRecordPaymentFailsWithoutRate(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 0)

	_, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxRentalPayment,
		Currency:  "EUR",
		Amount:    1000,
	})
	if !errors.Is(err, rates.ErrRateNotSet) {
		t.Fatalf("expected ErrRateNotSet, got %v", err)
	}
	entries, _ := f.transactions.ListBySession(context.Background(), session.ID)
	if len(entries) != 0 {
		t.Fatalf("no entry should be written, got %d", len(entries))
	}
}

func TestRecordCashOutInsufficient(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 100000)

	_, err := f.service.RecordOut(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxDepositRefund,
		Currency:  models.BaseCurrency,
		Amount:    100001,
	})
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
}

func TestRecordRejectsDirectReversal(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 0)

	_, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxVoidReversal,
		Currency:  models.BaseCurrency,
		Amount:    100,
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestRecordRejectsDirectionMismatch(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	_, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxDrop,
		Currency:  models.BaseCurrency,
		Amount:    100000,
	})
	if !errors.Is(err, ErrDirectionMismatch) {
		t.Fatalf("expected ErrDirectionMismatch, got %v", err)
	}

	_, err = f.service.RecordOut(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxCardPayment,
		Currency:  models.BaseCurrency,
		Amount:    100000,
	})
	if !errors.Is(err, ErrDirectionMismatch) {
		t.Fatalf("expected ErrDirectionMismatch, got %v", err)
	}

	if len(f.transactions.entries) != 0 {
		t.Fatalf("rejected records must not write entries, got %d", len(f.transactions.entries))
	}
	after, _ := f.sessions.GetByID(context.Background(), session.ID)
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances[models.BaseCurrency] != after.ExpectedCash() || after.ExpectedCash() != 500000 {
		t.Fatalf("drawer %d and expected cash %d must stay at the float", balances[models.BaseCurrency], after.ExpectedCash())
	}
}

func TestTopUpRestoresDrawerAfterDrop(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	if _, err := f.service.RecordOut(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxDrop, Currency: models.BaseCurrency, Amount: 200000,
	}); err != nil {
		t.Fatalf("drop: %v", err)
	}

	topUp, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxTopUp, Currency: models.BaseCurrency, Amount: 100000,
	})
	if err != nil {
		t.Fatalf("top-up: %v", err)
	}
	after, _ := f.sessions.GetByID(context.Background(), session.ID)
	if after.TotalToppedUp != 100000 {
		t.Fatalf("expected topped-up 100000, got %d", after.TotalToppedUp)
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances[models.BaseCurrency] != 400000 || after.ExpectedCash() != 400000 {
		t.Fatalf("drawer %d / expected %d, want 400000 after drop and top-up", balances[models.BaseCurrency], after.ExpectedCash())
	}

	if _, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: topUp.ID, RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "safe return keyed twice",
	}); err != nil {
		t.Fatalf("void: %v", err)
	}
	after, _ = f.sessions.GetByID(context.Background(), session.ID)
	balances, _ = f.sessions.Balances(context.Background(), session.ID)
	if after.TotalToppedUp != 0 {
		t.Fatalf("void must clear topped-up rollup, got %d", after.TotalToppedUp)
	}
	if balances[models.BaseCurrency] != 300000 || after.ExpectedCash() != 300000 {
		t.Fatalf("drawer %d / expected %d, want 300000 after voiding the top-up", balances[models.BaseCurrency], after.ExpectedCash())
	}
}

func TestRecordOnClosedSession(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 100000)
	if _, err := f.service.CloseSession(context.Background(), CloseSessionRequest{
		SessionID:     session.ID,
		StaffID:       "staff-1",
		ActualCounted: map[string]int64{models.BaseCurrency: 100000},
	}); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxRentalPayment,
		Currency:  models.BaseCurrency,
		Amount:    100,
	})
	if !errors.Is(err, ErrSessionNotOpen) {
		t.Fatalf("expected ErrSessionNotOpen, got %v", err)
	}
}

func TestVoidRestoresSessionExactly(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	before, _ := f.sessions.GetByID(context.Background(), session.ID)
	balancesBefore, _ := f.sessions.Balances(context.Background(), session.ID)

	entry, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID,
		Type:      models.TxRentalPayment,
		Currency:  "USD",
		Amount:    5000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	reversal, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID,
		RequestedBy:   "staff-1",
		ApprovedBy:    "manager-1",
		Reason:        "keyed wrong amount",
	})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if reversal.Type != models.TxVoidReversal {
		t.Fatalf("expected void_reversal, got %s", reversal.Type)
	}
	if reversal.Direction != models.DirectionOut {
		t.Fatalf("reversal of an inflow must be an outflow, got %s", reversal.Direction)
	}
	if reversal.Amount != entry.Amount || reversal.AmountBase != entry.AmountBase {
		t.Fatalf("reversal must mirror the original amounts")
	}

	after, _ := f.sessions.GetByID(context.Background(), session.ID)
	if after.TotalCashIn != before.TotalCashIn || after.TotalCashOut != before.TotalCashOut {
		t.Fatalf("void must restore rollups: before cash_in %d, after %d", before.TotalCashIn, after.TotalCashIn)
	}
	balancesAfter, _ := f.sessions.Balances(context.Background(), session.ID)
	if balancesAfter["USD"] != balancesBefore["USD"] {
		t.Fatalf("void must restore USD drawer, got %d", balancesAfter["USD"])
	}

	voided, _ := f.transactions.GetForUpdate(context.Background(), nil, entry.ID)
	if !voided.IsVoided {
		t.Fatalf("original must be flagged voided")
	}
	if voided.RelatedTransactionID == nil || *voided.RelatedTransactionID != reversal.ID {
		t.Fatalf("original must link to its reversal")
	}
	if reversal.OriginalTransactionID == nil || *reversal.OriginalTransactionID != entry.ID {
		t.Fatalf("reversal must point at the original")
	}
}

func TestVoidTwiceFails(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)
	entry, _ := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: 10000,
	})
	if _, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID, RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "dup",
	}); err != nil {
		t.Fatalf("first void: %v", err)
	}
	_, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID, RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "dup",
	})
	if !errors.Is(err, ErrAlreadyVoided) {
		t.Fatalf("expected ErrAlreadyVoided, got %v", err)
	}
}

func TestVoidReversalCannotBeVoided(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)
	entry, _ := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: 10000,
	})
	reversal, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID, RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "oops",
	})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	_, err = f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: reversal.ID, RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "undo the undo",
	})
	if !errors.Is(err, ErrCannotVoidReversal) {
		t.Fatalf("expected ErrCannotVoidReversal, got %v", err)
	}
}

func TestVoidDualControl(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)
	entry, _ := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: 10000,
	})

	_, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID, RequestedBy: "manager-1", ApprovedBy: "manager-1", Reason: "self",
	})
	if !errors.Is(err, ErrSelfApproval) {
		t.Fatalf("expected ErrSelfApproval, got %v", err)
	}

	_, err = f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID, RequestedBy: "staff-1", ApprovedBy: "staff-2", Reason: "not a manager",
	})
	if !errors.Is(err, ErrNotManager) {
		t.Fatalf("expected ErrNotManager, got %v", err)
	}

	_, err = f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: entry.ID, RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "",
	})
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestDrawerMatchesSignedLedgerSum(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 300000)

	amounts := []int64{120000, 45000, 80000}
	var ids []string
	for _, amount := range amounts {
		entry, err := f.service.RecordIn(context.Background(), RecordRequest{
			SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: amount,
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		ids = append(ids, entry.ID)
	}
	if _, err := f.service.RecordOut(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxDepositRefund, Currency: models.BaseCurrency, Amount: 30000,
	}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := f.service.VoidTransaction(context.Background(), VoidRequest{
		TransactionID: ids[1], RequestedBy: "staff-1", ApprovedBy: "manager-1", Reason: "wrong rental",
	}); err != nil {
		t.Fatalf("void: %v", err)
	}

	entries, _ := f.transactions.ListBySession(context.Background(), session.ID)
	expected := int64(300000)
	for _, entry := range entries {
		if entry.IsVoided || entry.Type == models.TxVoidReversal {
			continue
		}
		if entry.Direction == models.DirectionIn {
			expected += entry.Amount
		} else {
			expected -= entry.Amount
		}
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances[models.BaseCurrency] != expected {
		t.Fatalf("drawer %d does not match non-voided ledger sum %d", balances[models.BaseCurrency], expected)
	}
}

func TestMultiCurrencyDrop(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 200000)
	f.sessions.seedBalance(session.ID, "USD", 6000)

	entries, err := f.service.RecordMultiCurrencyDrop(context.Background(), MultiCurrencyDropRequest{
		SessionID: session.ID,
		StaffID:   "staff-1",
		Lines: []DropLine{
			{Currency: "USD", Amount: 5000},
			{Currency: models.BaseCurrency, Amount: 100000},
		},
	})
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected one entry per line, got %d", len(entries))
	}

	updated, _ := f.sessions.GetByID(context.Background(), session.ID)
	// 5000 * 33 + 100000 in base currency.
	if updated.TotalDropped != 265000 {
		t.Fatalf("expected total_dropped 265000, got %d", updated.TotalDropped)
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances["USD"] != 1000 || balances[models.BaseCurrency] != 100000 {
		t.Fatalf("unexpected balances after drop: %v", balances)
	}
}

func TestMultiCurrencyDropAllOrNothing(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 200000)
	f.sessions.seedBalance(session.ID, "USD", 1000)

	_, err := f.service.RecordMultiCurrencyDrop(context.Background(), MultiCurrencyDropRequest{
		SessionID: session.ID,
		StaffID:   "staff-1",
		Lines: []DropLine{
			{Currency: models.BaseCurrency, Amount: 50000},
			{Currency: "USD", Amount: 2000},
		},
	})
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}

	entries, _ := f.transactions.ListBySession(context.Background(), session.ID)
	if len(entries) != 0 {
		t.Fatalf("failing drop must write no entries, got %d", len(entries))
	}
	balances, _ := f.sessions.Balances(context.Background(), session.ID)
	if balances[models.BaseCurrency] != 200000 || balances["USD"] != 1000 {
		t.Fatalf("failing drop must leave balances untouched: %v", balances)
	}
	updated, _ := f.sessions.GetByID(context.Background(), session.ID)
	if updated.TotalDropped != 0 {
		t.Fatalf("failing drop must leave totals untouched, got %d", updated.TotalDropped)
	}
}

func TestEmptyDropRejected(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 200000)
	_, err := f.service.RecordMultiCurrencyDrop(context.Background(), MultiCurrencyDropRequest{
		SessionID: session.ID, StaffID: "staff-1",
	})
	if !errors.Is(err, ErrEmptyDrop) {
		t.Fatalf("expected ErrEmptyDrop, got %v", err)
	}
}

// Mirrors the worked shift: float 5000, cash rental 1500, card 800, drop
// 1000, counted 5500. Card money never enters the drawer, so the count
// reconciles exactly.
func TestEndToEndShiftReconciles(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)

	if _, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: 150000,
	}); err != nil {
		t.Fatalf("cash rental: %v", err)
	}
	if _, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxCardPayment, Currency: models.BaseCurrency, Amount: 80000,
	}); err != nil {
		t.Fatalf("card payment: %v", err)
	}
	if _, err := f.service.RecordMultiCurrencyDrop(context.Background(), MultiCurrencyDropRequest{
		SessionID: session.ID,
		StaffID:   "staff-1",
		Lines:     []DropLine{{Currency: models.BaseCurrency, Amount: 100000}},
	}); err != nil {
		t.Fatalf("drop: %v", err)
	}

	current, _ := f.sessions.GetByID(context.Background(), session.ID)
	if current.ExpectedCash() != 550000 {
		t.Fatalf("expected cash 550000, got %d", current.ExpectedCash())
	}

	closed, err := f.service.CloseSession(context.Background(), CloseSessionRequest{
		SessionID:     session.ID,
		StaffID:       "staff-1",
		ActualCounted: map[string]int64{models.BaseCurrency: 550000},
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != models.SessionClosed {
		t.Fatalf("expected clean close, got %s", closed.Status)
	}
	var variances map[string]int64
	if err := json.Unmarshal([]byte(closed.ClosingVariances), &variances); err != nil {
		t.Fatalf("variances json: %v", err)
	}
	if variances[models.BaseCurrency] != 0 {
		t.Fatalf("expected zero variance, got %d", variances[models.BaseCurrency])
	}
}

func TestCloseOutsideToleranceFlagsVariance(t *testing.T) {
	f := newTillFixture(t, 500)
	session := f.openSession(t, 100000)

	closed, err := f.service.CloseSession(context.Background(), CloseSessionRequest{
		SessionID:     session.ID,
		StaffID:       "staff-1",
		ActualCounted: map[string]int64{models.BaseCurrency: 98000},
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != models.SessionClosedWithVariance {
		t.Fatalf("expected closed_with_variance, got %s", closed.Status)
	}
	var variances map[string]int64
	_ = json.Unmarshal([]byte(closed.ClosingVariances), &variances)
	if variances[models.BaseCurrency] != -2000 {
		t.Fatalf("expected variance -2000, got %d", variances[models.BaseCurrency])
	}
}

func TestCloseWithinToleranceIsClean(t *testing.T) {
	f := newTillFixture(t, 500)
	session := f.openSession(t, 100000)

	closed, err := f.service.CloseSession(context.Background(), CloseSessionRequest{
		SessionID:     session.ID,
		StaffID:       "staff-1",
		ActualCounted: map[string]int64{models.BaseCurrency: 99600},
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != models.SessionClosed {
		t.Fatalf("variance inside tolerance must close clean, got %s", closed.Status)
	}
}

func TestCloseRecordsCountedOnlyCurrency(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 100000)

	closed, err := f.service.CloseSession(context.Background(), CloseSessionRequest{
		SessionID: session.ID,
		StaffID:   "staff-1",
		ActualCounted: map[string]int64{
			models.BaseCurrency: 100000,
			"USD":               700,
		},
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != models.SessionClosedWithVariance {
		t.Fatalf("unexpected cash in an untracked currency is a variance, got %s", closed.Status)
	}
	var variances map[string]int64
	_ = json.Unmarshal([]byte(closed.ClosingVariances), &variances)
	if variances["USD"] != 700 {
		t.Fatalf("expected USD variance 700, got %d", variances["USD"])
	}
}

func TestVerifySession(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 100000)
	entry, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: 50000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	err = f.service.VerifySession(context.Background(), VerifySessionRequest{
		SessionID: session.ID, VerifierID: "manager-1",
	})
	if !errors.Is(err, ErrSessionNotClosed) {
		t.Fatalf("verifying an open session must fail, got %v", err)
	}

	if _, err := f.service.CloseSession(context.Background(), CloseSessionRequest{
		SessionID:     session.ID,
		StaffID:       "staff-1",
		ActualCounted: map[string]int64{models.BaseCurrency: 150000},
	}); err != nil {
		t.Fatalf("close: %v", err)
	}

	err = f.service.VerifySession(context.Background(), VerifySessionRequest{
		SessionID: session.ID, VerifierID: "staff-2",
	})
	if !errors.Is(err, ErrNotManager) {
		t.Fatalf("expected ErrNotManager, got %v", err)
	}

	if err := f.service.VerifySession(context.Background(), VerifySessionRequest{
		SessionID: session.ID, VerifierID: "manager-1",
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	verified, _ := f.sessions.GetByID(context.Background(), session.ID)
	if verified.Status != models.SessionVerified {
		t.Fatalf("expected verified, got %s", verified.Status)
	}
	if verified.VerifiedBy == nil || *verified.VerifiedBy != "manager-1" {
		t.Fatalf("verifier not recorded")
	}
	signed := f.transactions.entries[entry.ID]
	if !signed.IsVerified || signed.VerifiedBy == nil || *signed.VerifiedBy != "manager-1" {
		t.Fatalf("entry sign-off missing: %+v", signed)
	}
}

func TestVerifySessionRejectsOwner(t *testing.T) {
	f := newTillFixture(t, 0)
	sessions := f.sessions
	session := models.TillSession{
		ID: "sess-owner", ShopID: "shop-1", StaffID: "manager-1",
		Status: models.SessionClosed, ClosingVariances: "{}",
	}
	_ = sessions.Create(context.Background(), nil, session)

	err := f.service.VerifySession(context.Background(), VerifySessionRequest{
		SessionID: session.ID, VerifierID: "manager-1",
	})
	if !errors.Is(err, ErrSelfVerification) {
		t.Fatalf("expected ErrSelfVerification, got %v", err)
	}
}

func TestSessionSummary(t *testing.T) {
	f := newTillFixture(t, 0)
	session := f.openSession(t, 500000)
	if _, err := f.service.RecordIn(context.Background(), RecordRequest{
		SessionID: session.ID, Type: models.TxRentalPayment, Currency: models.BaseCurrency, Amount: 150000,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	summary, err := f.service.SessionSummary(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.ExpectedCash != 650000 {
		t.Fatalf("expected 650000, got %d", summary.ExpectedCash)
	}
	if summary.Balances[models.BaseCurrency] != 650000 {
		t.Fatalf("expected balance 650000, got %d", summary.Balances[models.BaseCurrency])
	}

	if _, err := f.service.SessionSummary(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
