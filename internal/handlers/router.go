package handlers

import (
	"net/http"
	"strings"

	"till/internal/config"
	"till/internal/db"
	"till/internal/middleware"
	"till/internal/store"
	"till/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	txRunner db.TxRunner
	reader   store.Selecter

	staff    StaffStore
	managers ManagerStore
	audit    AuditStore
	rates    RateStore
	sessions SessionQueries

	till       TillService
	reconcile  ReconcileService
	dailyClose DailyCloseService
	shortages  ShortageService

	hub *websocket.Hub
}

func New(
	cfg config.Config,
	txRunner db.TxRunner,
	reader store.Selecter,
	staff StaffStore,
	managers ManagerStore,
	audit AuditStore,
	rates RateStore,
	sessions SessionQueries,
	till TillService,
	reconcile ReconcileService,
	dailyClose DailyCloseService,
	shortages ShortageService,
	hub *websocket.Hub,
) *Handler {
	return &Handler{
		cfg:        cfg,
		txRunner:   txRunner,
		reader:     reader,
		staff:      staff,
		managers:   managers,
		audit:      audit,
		rates:      rates,
		sessions:   sessions,
		till:       till,
		reconcile:  reconcile,
		dailyClose: dailyClose,
		shortages:  shortages,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(h.cfg.JWTSecret))

			r.Get("/auth/me", h.Me)
			r.Get("/ws", h.ServeDrawerWS)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.OpenSession)
				r.Get("/", h.ListSessions)
				r.Get("/variances", h.ListVarianceSessions)
				r.Get("/{sessionID}", h.GetSession)
				r.Post("/{sessionID}/close", h.CloseSession)
				r.Get("/{sessionID}/transactions", h.ListTransactions)
				r.Post("/{sessionID}/transactions/in", h.RecordIn)
				r.Post("/{sessionID}/transactions/out", h.RecordOut)
				r.Post("/{sessionID}/drops", h.RecordDrop)
				r.Post("/{sessionID}/counts", h.SaveCount)
				r.Get("/{sessionID}/counts", h.ListCounts)
			})

			r.Post("/transactions/{transactionID}/void", h.VoidTransaction)

			// Manager authority routes.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireManager(h.managers))

				r.Post("/sessions/{sessionID}/verify", h.VerifySession)

				r.Route("/daily-close", func(r chi.Router) {
					r.Post("/", h.PerformDailyClose)
					r.Post("/reopen", h.ReopenDay)
					r.Get("/", h.DaySummary)
					r.Get("/status", h.DayStatus)
					r.Get("/{closeID}/history", h.DayHistory)
				})

				r.Route("/shortages", func(r chi.Router) {
					r.Post("/", h.LogShortage)
					r.Get("/", h.ListShopShortages)
					r.Get("/staff/{staffID}", h.ListStaffShortages)
				})

				r.Post("/rates", h.SetRate)
				r.Get("/audit", h.ListAudit)
				r.Post("/staff/{staffID}/promote", h.PromoteManager)
			})
		})
	})

	return r
}
