package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"till/internal/config"
	"till/internal/db"
	"till/internal/handlers"
	"till/internal/rates"
	"till/internal/services"
	"till/internal/store"
	"till/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	staff := store.NewStaffStore(database)
	managers := store.NewManagerStore(database)
	sessions := store.NewSessionStore(database)
	transactions := store.NewTillTransactionStore(database)
	counts := store.NewCountStore(database)
	dailyCloses := store.NewDailyCloseStore(database)
	shortages := store.NewShortageStore(database)
	rateStore := store.NewRateStore(database)
	audit := store.NewAuditStore(database)

	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	rateSvc := rates.NewService(rateStore)

	till := services.NewTillService(txRunner, sessions, transactions, rateSvc, managers, audit, hub, cfg.VarianceTolerance)
	reconcile := services.NewReconcileService(txRunner, sessions, counts, rateSvc, audit)
	dailyClose := services.NewDailyCloseService(txRunner, dailyCloses, sessions, audit)
	shortageSvc := services.NewShortageService(txRunner, shortages, sessions, managers, rateSvc, audit)

	handler := handlers.New(cfg, txRunner, database, staff, managers, audit, rateStore, sessions, till, reconcile, dailyClose, shortageSvc, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("till API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
