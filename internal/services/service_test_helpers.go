package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"till/internal/models"
	"till/internal/money"
	"till/internal/rates"
	"till/internal/store"
	"till/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memSessionStore keeps sessions and balances in maps so service tests can
// drive full record/void/close flows without a database.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.TillSession
	balances map[string]map[string]int64
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions: map[string]models.TillSession{},
		balances: map[string]map[string]int64{},
	}
}

func (m *memSessionStore) Create(_ context.Context, _ store.Execer, session models.TillSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessionStore) GetByID(_ context.Context, sessionID string) (models.TillSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return models.TillSession{}, sql.ErrNoRows
	}
	return session, nil
}

func (m *memSessionStore) GetForUpdate(_ context.Context, _ store.Getter, sessionID string) (models.TillSession, error) {
	return m.GetByID(context.Background(), sessionID)
}

func (m *memSessionStore) UpdateTotals(_ context.Context, _ store.Execer, session models.TillSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.sessions[session.ID]
	current.TotalCashIn = session.TotalCashIn
	current.TotalCashOut = session.TotalCashOut
	current.TotalCard = session.TotalCard
	current.TotalBankTransfer = session.TotalBankTransfer
	current.TotalMobileWallet = session.TotalMobileWallet
	current.TotalDropped = session.TotalDropped
	current.TotalToppedUp = session.TotalToppedUp
	m.sessions[session.ID] = current
	return nil
}

func (m *memSessionStore) Close(_ context.Context, _ store.Execer, sessionID string, status models.SessionStatus, closingVariances string, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[sessionID]
	session.Status = status
	session.ClosingVariances = closingVariances
	session.ClosedAt = &closedAt
	m.sessions[sessionID] = session
	return nil
}

func (m *memSessionStore) Verify(_ context.Context, _ store.Execer, sessionID, verifierID string, verifiedAt time.Time, notes *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[sessionID]
	session.Status = models.SessionVerified
	session.VerifiedBy = &verifierID
	session.VerifiedAt = &verifiedAt
	session.VerifyNotes = notes
	m.sessions[sessionID] = session
	return nil
}

func (m *memSessionStore) UpdateStatus(_ context.Context, _ store.Execer, sessionID string, status models.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[sessionID]
	session.Status = status
	m.sessions[sessionID] = session
	return nil
}

func (m *memSessionStore) ListByShopDay(_ context.Context, _ store.Selecter, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TillSession
	for _, session := range m.sessions {
		if session.ShopID == shopID && !session.OpenedAt.Before(dayStart) && session.OpenedAt.Before(dayEnd) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (m *memSessionStore) Balances(_ context.Context, sessionID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyBalances(m.balances[sessionID]), nil
}

func (m *memSessionStore) BalancesForUpdate(_ context.Context, _ store.Selecter, sessionID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyBalances(m.balances[sessionID]), nil
}

func (m *memSessionStore) UpsertBalance(_ context.Context, _ store.Execer, sessionID, currency string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[sessionID] == nil {
		m.balances[sessionID] = map[string]int64{}
	}
	m.balances[sessionID][currency] = balance
	return nil
}

func (m *memSessionStore) seedBalance(sessionID, currency string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[sessionID] == nil {
		m.balances[sessionID] = map[string]int64{}
	}
	m.balances[sessionID][currency] = balance
}

func copyBalances(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for currency, balance := range src {
		out[currency] = balance
	}
	return out
}

type memTransactionStore struct {
	mu      sync.Mutex
	entries map[string]models.TillTransaction
	order   []string
	linkErr error
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{entries: map[string]models.TillTransaction{}}
}

func (m *memTransactionStore) Create(_ context.Context, _ store.Execer, entry models.TillTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	m.order = append(m.order, entry.ID)
	return nil
}

func (m *memTransactionStore) GetForUpdate(_ context.Context, _ store.Getter, transactionID string) (models.TillTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[transactionID]
	if !ok {
		return models.TillTransaction{}, sql.ErrNoRows
	}
	return entry, nil
}

func (m *memTransactionStore) MarkVoided(_ context.Context, _ store.Execer, transactionID, voidedBy, reason, approvedBy string, voidedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entries[transactionID]
	entry.IsVoided = true
	entry.VoidedAt = &voidedAt
	entry.VoidedBy = &voidedBy
	entry.VoidReason = &reason
	entry.VoidApprovedBy = &approvedBy
	m.entries[transactionID] = entry
	return nil
}

func (m *memTransactionStore) MarkVerifiedBySession(_ context.Context, _ store.Execer, sessionID, verifierID string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.entries {
		if entry.SessionID != sessionID || entry.IsVoided {
			continue
		}
		entry.IsVerified = true
		entry.VerifiedBy = &verifierID
		entry.VerifiedAt = &verifiedAt
		m.entries[id] = entry
	}
	return nil
}

func (m *memTransactionStore) LinkRelated(_ context.Context, transactionID, relatedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkErr != nil {
		return m.linkErr
	}
	entry := m.entries[transactionID]
	entry.RelatedTransactionID = &relatedID
	m.entries[transactionID] = entry
	return nil
}

func (m *memTransactionStore) ListBySession(_ context.Context, sessionID string) ([]models.TillTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TillTransaction
	for _, id := range m.order {
		if m.entries[id].SessionID == sessionID {
			out = append(out, m.entries[id])
		}
	}
	return out, nil
}

// stubRateService resolves rates from a fixed map. Currencies not in the map
// behave as unconfigured.
type stubRateService struct {
	rates map[string]decimal.Decimal
}

func (s stubRateService) ConvertToBase(_ context.Context, _, currency string, amountMinor int64) (rates.Conversion, error) {
	if currency == models.BaseCurrency {
		return rates.Conversion{
			AmountBase: amountMinor,
			Rate:       decimal.NewFromInt(1).StringFixedBank(6),
			Source:     rates.SourceBase,
		}, nil
	}
	rate, ok := s.rates[currency]
	if !ok {
		return rates.Conversion{}, rates.ErrRateNotSet
	}
	return rates.Conversion{
		AmountBase: money.ConvertMinor(amountMinor, rate),
		Rate:       rate.StringFixedBank(6),
		Source:     rates.SourceShopRate,
		RateID:     "rate-" + currency,
	}, nil
}

func (s stubRateService) CurrentBuyRate(_ context.Context, _, currency string) (rates.Rate, error) {
	rate, ok := s.rates[currency]
	if !ok {
		return rates.Rate{}, rates.ErrRateNotSet
	}
	return rates.Rate{BuyRate: rate, Source: rates.SourceShopRate, RateID: "rate-" + currency}, nil
}

type stubManagerStore struct {
	managers map[string]bool
}

func (s stubManagerStore) IsManager(_ context.Context, staffID string) (bool, error) {
	return s.managers[staffID], nil
}

type auditEntry struct {
	actor      string
	action     string
	entityType string
	entityID   string
}

type recordingAuditStore struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (s *recordingAuditStore) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, auditEntry{actor: actorID, action: action, entityType: entityType, entityID: entityID})
	return nil
}

func (s *recordingAuditStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.action)
	}
	return out
}

type stubHub struct {
	mu      sync.Mutex
	updates []websocket.DrawerUpdate
}

func (s *stubHub) BroadcastDrawer(_ string, update websocket.DrawerUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
}

type memCountStore struct {
	mu     sync.Mutex
	counts map[string]models.TillDenominationCount
}

func newMemCountStore() *memCountStore {
	return &memCountStore{counts: map[string]models.TillDenominationCount{}}
}

func countKey(sessionID string, countType models.CountType) string {
	return sessionID + "/" + string(countType)
}

func (m *memCountStore) GetForUpdate(_ context.Context, _ store.Getter, sessionID string, countType models.CountType) (models.TillDenominationCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count, ok := m.counts[countKey(sessionID, countType)]
	if !ok {
		return models.TillDenominationCount{}, sql.ErrNoRows
	}
	return count, nil
}

func (m *memCountStore) Insert(_ context.Context, _ store.Execer, count models.TillDenominationCount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[countKey(count.SessionID, count.CountType)] = count
	return nil
}

func (m *memCountStore) Replace(_ context.Context, _ store.Execer, count models.TillDenominationCount) error {
	return m.Insert(context.Background(), nil, count)
}

func (m *memCountStore) ListBySession(_ context.Context, sessionID string) ([]models.TillDenominationCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TillDenominationCount
	for _, count := range m.counts {
		if count.SessionID == sessionID {
			out = append(out, count)
		}
	}
	return out, nil
}

type memDailyCloseStore struct {
	mu    sync.Mutex
	byKey map[string]models.DailyClose
}

func newMemDailyCloseStore() *memDailyCloseStore {
	return &memDailyCloseStore{byKey: map[string]models.DailyClose{}}
}

func closeKey(shopID string, date time.Time) string {
	return shopID + "/" + date.Format("2006-01-02")
}

func (m *memDailyCloseStore) GetByShopDate(_ context.Context, shopID string, date time.Time) (models.DailyClose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day, ok := m.byKey[closeKey(shopID, date)]
	if !ok {
		return models.DailyClose{}, sql.ErrNoRows
	}
	return day, nil
}

func (m *memDailyCloseStore) GetForUpdate(_ context.Context, _ store.Getter, shopID string, date time.Time) (models.DailyClose, error) {
	return m.GetByShopDate(context.Background(), shopID, date)
}

func (m *memDailyCloseStore) Create(_ context.Context, _ store.Execer, day models.DailyClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[closeKey(day.ShopID, day.CloseDate)] = day
	return nil
}

func (m *memDailyCloseStore) RecordClose(_ context.Context, _ store.Execer, day models.DailyClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[closeKey(day.ShopID, day.CloseDate)] = day
	return nil
}

func (m *memDailyCloseStore) RecordReopen(_ context.Context, _ store.Execer, closeID, reason, reopenedBy string, reopenedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, day := range m.byKey {
		if day.ID != closeID {
			continue
		}
		day.Status = models.DayOpen
		day.WasReopened = true
		day.ReopenReason = &reason
		day.ReopenedBy = &reopenedBy
		day.ReopenedAt = &reopenedAt
		m.byKey[key] = day
	}
	return nil
}

type memShortageStore struct {
	mu      sync.Mutex
	entries []models.ShortageLog
}

func (m *memShortageStore) Insert(_ context.Context, _ store.Execer, entry models.ShortageLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memShortageStore) ListByShop(_ context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ShortageLog
	for _, entry := range m.entries {
		if entry.ShopID == shopID && !entry.CreatedAt.Before(from) && entry.CreatedAt.Before(to) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memShortageStore) ListByStaff(_ context.Context, staffID string) ([]models.ShortageLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ShortageLog
	for _, entry := range m.entries {
		if entry.StaffID == staffID {
			out = append(out, entry)
		}
	}
	return out, nil
}
