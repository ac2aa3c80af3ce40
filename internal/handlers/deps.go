package handlers

import (
	"context"
	"time"

	"till/internal/models"
	"till/internal/services"
	"till/internal/store"
)

type StaffStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByUsername(ctx context.Context, username string) (models.Staff, error)
	GetByID(ctx context.Context, staffID string) (models.Staff, error)
}

type ManagerStore interface {
	IsManager(ctx context.Context, staffID string) (bool, error)
	Promote(ctx context.Context, tx store.Execer, staffID string, promotedBy *string) error
	HasAnyManager(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
	ListByEntity(ctx context.Context, entityType, entityID string) ([]map[string]any, error)
}

type RateStore interface {
	SetRate(ctx context.Context, tx store.Tx, shopID *string, currency, buyRate, actorID string) (string, error)
}

type SessionQueries interface {
	ListByShopDay(ctx context.Context, q store.Selecter, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error)
	ListWithVariance(ctx context.Context, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error)
}

type TillService interface {
	OpenSession(ctx context.Context, req services.OpenSessionRequest) (models.TillSession, error)
	CloseSession(ctx context.Context, req services.CloseSessionRequest) (models.TillSession, error)
	VerifySession(ctx context.Context, req services.VerifySessionRequest) error
	RecordIn(ctx context.Context, req services.RecordRequest) (models.TillTransaction, error)
	RecordOut(ctx context.Context, req services.RecordRequest) (models.TillTransaction, error)
	RecordMultiCurrencyDrop(ctx context.Context, req services.MultiCurrencyDropRequest) ([]models.TillTransaction, error)
	VoidTransaction(ctx context.Context, req services.VoidRequest) (models.TillTransaction, error)
	SessionSummary(ctx context.Context, sessionID string) (services.SessionSummary, error)
	ListSessionTransactions(ctx context.Context, sessionID string) ([]models.TillTransaction, error)
}

type ReconcileService interface {
	SaveCount(ctx context.Context, req services.SaveCountRequest) (models.TillDenominationCount, error)
	ListCounts(ctx context.Context, sessionID string) ([]models.TillDenominationCount, error)
}

type DailyCloseService interface {
	PerformClose(ctx context.Context, req services.DailyCloseRequest) (models.DailyClose, error)
	Reopen(ctx context.Context, req services.ReopenRequest) error
	IsDayClosed(ctx context.Context, shopID string, date time.Time) (bool, error)
	DailySummary(ctx context.Context, shopID string, date time.Time) (models.DailyClose, error)
}

type ShortageService interface {
	LogShortage(ctx context.Context, req services.LogShortageRequest) (models.ShortageLog, error)
	ListByShop(ctx context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error)
	ListByStaff(ctx context.Context, staffID string) ([]models.ShortageLog, error)
}
