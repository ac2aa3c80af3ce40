package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"till/internal/auth"
	"till/internal/config"
	"till/internal/db"
	"till/internal/middleware"
	"till/internal/models"
	"till/internal/services"
	"till/internal/store"
	"till/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubStaffStore struct {
	createFn        func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByUsernameFn func(ctx context.Context, username string) (models.Staff, error)
	getByIDFn       func(ctx context.Context, staffID string) (models.Staff, error)
}

func (s stubStaffStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubStaffStore) GetByUsername(ctx context.Context, username string) (models.Staff, error) {
	if s.getByUsernameFn == nil {
		return models.Staff{}, nil
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubStaffStore) GetByID(ctx context.Context, staffID string) (models.Staff, error) {
	if s.getByIDFn == nil {
		return models.Staff{}, nil
	}
	return s.getByIDFn(ctx, staffID)
}

type stubManagerStore struct {
	isManagerFn     func(ctx context.Context, staffID string) (bool, error)
	promoteFn       func(ctx context.Context, tx store.Execer, staffID string, promotedBy *string) error
	hasAnyManagerFn func(ctx context.Context) (bool, error)
}

func (s stubManagerStore) IsManager(ctx context.Context, staffID string) (bool, error) {
	if s.isManagerFn == nil {
		return false, nil
	}
	return s.isManagerFn(ctx, staffID)
}

func (s stubManagerStore) Promote(ctx context.Context, tx store.Execer, staffID string, promotedBy *string) error {
	if s.promoteFn == nil {
		return nil
	}
	return s.promoteFn(ctx, tx, staffID, promotedBy)
}

func (s stubManagerStore) HasAnyManager(ctx context.Context) (bool, error) {
	if s.hasAnyManagerFn == nil {
		return true, nil
	}
	return s.hasAnyManagerFn(ctx)
}

type stubAuditStore struct {
	logFn          func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn         func(ctx context.Context, limit, offset int) ([]map[string]any, error)
	listByEntityFn func(ctx context.Context, entityType, entityID string) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

func (s stubAuditStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]map[string]any, error) {
	if s.listByEntityFn == nil {
		return nil, nil
	}
	return s.listByEntityFn(ctx, entityType, entityID)
}

type stubRateStore struct {
	setRateFn func(ctx context.Context, tx store.Tx, shopID *string, currency, buyRate, actorID string) (string, error)
}

func (s stubRateStore) SetRate(ctx context.Context, tx store.Tx, shopID *string, currency, buyRate, actorID string) (string, error) {
	if s.setRateFn == nil {
		return "", nil
	}
	return s.setRateFn(ctx, tx, shopID, currency, buyRate, actorID)
}

type stubSessionQueries struct {
	listByShopDayFn    func(ctx context.Context, q store.Selecter, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error)
	listWithVarianceFn func(ctx context.Context, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error)
}

func (s stubSessionQueries) ListByShopDay(ctx context.Context, q store.Selecter, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error) {
	if s.listByShopDayFn == nil {
		return nil, nil
	}
	return s.listByShopDayFn(ctx, q, shopID, dayStart, dayEnd)
}

func (s stubSessionQueries) ListWithVariance(ctx context.Context, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error) {
	if s.listWithVarianceFn == nil {
		return nil, nil
	}
	return s.listWithVarianceFn(ctx, shopID, dayStart, dayEnd)
}

type stubTillService struct {
	openFn    func(ctx context.Context, req services.OpenSessionRequest) (models.TillSession, error)
	closeFn   func(ctx context.Context, req services.CloseSessionRequest) (models.TillSession, error)
	verifyFn  func(ctx context.Context, req services.VerifySessionRequest) error
	inFn      func(ctx context.Context, req services.RecordRequest) (models.TillTransaction, error)
	outFn     func(ctx context.Context, req services.RecordRequest) (models.TillTransaction, error)
	dropFn    func(ctx context.Context, req services.MultiCurrencyDropRequest) ([]models.TillTransaction, error)
	voidFn    func(ctx context.Context, req services.VoidRequest) (models.TillTransaction, error)
	summaryFn func(ctx context.Context, sessionID string) (services.SessionSummary, error)
	listFn    func(ctx context.Context, sessionID string) ([]models.TillTransaction, error)
}

func (s stubTillService) OpenSession(ctx context.Context, req services.OpenSessionRequest) (models.TillSession, error) {
	if s.openFn == nil {
		return models.TillSession{}, nil
	}
	return s.openFn(ctx, req)
}

func (s stubTillService) CloseSession(ctx context.Context, req services.CloseSessionRequest) (models.TillSession, error) {
	if s.closeFn == nil {
		return models.TillSession{}, nil
	}
	return s.closeFn(ctx, req)
}

func (s stubTillService) VerifySession(ctx context.Context, req services.VerifySessionRequest) error {
	if s.verifyFn == nil {
		return nil
	}
	return s.verifyFn(ctx, req)
}

func (s stubTillService) RecordIn(ctx context.Context, req services.RecordRequest) (models.TillTransaction, error) {
	if s.inFn == nil {
		return models.TillTransaction{}, nil
	}
	return s.inFn(ctx, req)
}

func (s stubTillService) RecordOut(ctx context.Context, req services.RecordRequest) (models.TillTransaction, error) {
	if s.outFn == nil {
		return models.TillTransaction{}, nil
	}
	return s.outFn(ctx, req)
}

func (s stubTillService) RecordMultiCurrencyDrop(ctx context.Context, req services.MultiCurrencyDropRequest) ([]models.TillTransaction, error) {
	if s.dropFn == nil {
		return nil, nil
	}
	return s.dropFn(ctx, req)
}

func (s stubTillService) VoidTransaction(ctx context.Context, req services.VoidRequest) (models.TillTransaction, error) {
	if s.voidFn == nil {
		return models.TillTransaction{}, nil
	}
	return s.voidFn(ctx, req)
}

func (s stubTillService) SessionSummary(ctx context.Context, sessionID string) (services.SessionSummary, error) {
	if s.summaryFn == nil {
		return services.SessionSummary{}, nil
	}
	return s.summaryFn(ctx, sessionID)
}

func (s stubTillService) ListSessionTransactions(ctx context.Context, sessionID string) ([]models.TillTransaction, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, sessionID)
}

type stubReconcileService struct {
	saveFn func(ctx context.Context, req services.SaveCountRequest) (models.TillDenominationCount, error)
	listFn func(ctx context.Context, sessionID string) ([]models.TillDenominationCount, error)
}

func (s stubReconcileService) SaveCount(ctx context.Context, req services.SaveCountRequest) (models.TillDenominationCount, error) {
	if s.saveFn == nil {
		return models.TillDenominationCount{}, nil
	}
	return s.saveFn(ctx, req)
}

func (s stubReconcileService) ListCounts(ctx context.Context, sessionID string) ([]models.TillDenominationCount, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, sessionID)
}

type stubDailyCloseService struct {
	performFn  func(ctx context.Context, req services.DailyCloseRequest) (models.DailyClose, error)
	reopenFn   func(ctx context.Context, req services.ReopenRequest) error
	isClosedFn func(ctx context.Context, shopID string, date time.Time) (bool, error)
	summaryFn  func(ctx context.Context, shopID string, date time.Time) (models.DailyClose, error)
}

func (s stubDailyCloseService) PerformClose(ctx context.Context, req services.DailyCloseRequest) (models.DailyClose, error) {
	if s.performFn == nil {
		return models.DailyClose{}, nil
	}
	return s.performFn(ctx, req)
}

func (s stubDailyCloseService) Reopen(ctx context.Context, req services.ReopenRequest) error {
	if s.reopenFn == nil {
		return nil
	}
	return s.reopenFn(ctx, req)
}

func (s stubDailyCloseService) IsDayClosed(ctx context.Context, shopID string, date time.Time) (bool, error) {
	if s.isClosedFn == nil {
		return false, nil
	}
	return s.isClosedFn(ctx, shopID, date)
}

func (s stubDailyCloseService) DailySummary(ctx context.Context, shopID string, date time.Time) (models.DailyClose, error) {
	if s.summaryFn == nil {
		return models.DailyClose{}, nil
	}
	return s.summaryFn(ctx, shopID, date)
}

type stubShortageService struct {
	logFn         func(ctx context.Context, req services.LogShortageRequest) (models.ShortageLog, error)
	listByShopFn  func(ctx context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error)
	listByStaffFn func(ctx context.Context, staffID string) ([]models.ShortageLog, error)
}

func (s stubShortageService) LogShortage(ctx context.Context, req services.LogShortageRequest) (models.ShortageLog, error) {
	if s.logFn == nil {
		return models.ShortageLog{}, nil
	}
	return s.logFn(ctx, req)
}

func (s stubShortageService) ListByShop(ctx context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error) {
	if s.listByShopFn == nil {
		return nil, nil
	}
	return s.listByShopFn(ctx, shopID, from, to)
}

func (s stubShortageService) ListByStaff(ctx context.Context, staffID string) ([]models.ShortageLog, error) {
	if s.listByStaffFn == nil {
		return nil, nil
	}
	return s.listByStaffFn(ctx, staffID)
}

type handlerStubs struct {
	txRunner   db.TxRunner
	staff      StaffStore
	managers   ManagerStore
	audit      AuditStore
	rates      RateStore
	sessions   SessionQueries
	till       TillService
	reconcile  ReconcileService
	dailyClose DailyCloseService
	shortages  ShortageService
}

func newTestHandler(stubs handlerStubs) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	if stubs.txRunner == nil {
		stubs.txRunner = fakeTxRunner{}
	}
	if stubs.staff == nil {
		stubs.staff = stubStaffStore{}
	}
	if stubs.managers == nil {
		stubs.managers = stubManagerStore{}
	}
	if stubs.audit == nil {
		stubs.audit = stubAuditStore{}
	}
	if stubs.rates == nil {
		stubs.rates = stubRateStore{}
	}
	if stubs.sessions == nil {
		stubs.sessions = stubSessionQueries{}
	}
	if stubs.till == nil {
		stubs.till = stubTillService{}
	}
	if stubs.reconcile == nil {
		stubs.reconcile = stubReconcileService{}
	}
	if stubs.dailyClose == nil {
		stubs.dailyClose = stubDailyCloseService{}
	}
	if stubs.shortages == nil {
		stubs.shortages = stubShortageService{}
	}
	return New(cfg, stubs.txRunner, nil, stubs.staff, stubs.managers, stubs.audit, stubs.rates,
		stubs.sessions, stubs.till, stubs.reconcile, stubs.dailyClose, stubs.shortages, websocket.NewHub())
}

func authedRequest(t *testing.T, method, target string, body []byte, staffID string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken("secret", staffID, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serveAuthed(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(handler).ServeHTTP(rr, req)
	return rr
}
