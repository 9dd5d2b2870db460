package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clearing/internal/config"
	"clearing/internal/db"
	"clearing/internal/handlers"
	"clearing/internal/lock"
	"clearing/internal/logging"
	"clearing/internal/services"
	"clearing/internal/store"
	"clearing/internal/tenant"
	"clearing/internal/websocket"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.AppEnv)

	database, err := db.Connect(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	var locker lock.Locker = lock.NopLocker{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancelPing()
			logger.WithError(err).WithField("addr", cfg.RedisAddr).Fatal("failed to reach redis")
		}
		cancelPing()
		locker = lock.NewRedisLocker(rdb, cfg.BasketLockTTL)
		logger.WithField("addr", cfg.RedisAddr).Info("basket lock backed by redis")
	} else {
		logger.Warn("REDIS_ADDR not set, basket lock disabled")
	}

	users := store.NewUserStore(database)
	businesses := store.NewBusinessStore(database)
	roles := store.NewRoleStore(database)
	ledger := store.NewLedgerAccountStore(database)
	accounts := store.NewClearingAccountStore(database)
	entries := store.NewClearingEntryStore(database)
	reconciliations := store.NewReconciliationStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub(cfg.Origins())
	guard := tenant.NewGuard(accounts)
	service := services.NewClearingService(txRunner, accounts, entries, reconciliations, ledger, audit, guard, locker, hub)

	handler := handlers.New(txRunner, cfg, logger, users, businesses, roles, ledger, audit, service, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("clearing API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}
