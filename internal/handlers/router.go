package handlers

import (
	"net/http"

	"clearing/internal/config"
	"clearing/internal/db"
	"clearing/internal/middleware"
	"clearing/internal/models"
	"clearing/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	txRunner   db.TxRunner
	cfg        config.Config
	logger     *logrus.Logger
	users      UserStore
	businesses BusinessStore
	roles      RoleStore
	ledger     LedgerStore
	audit      AuditStore
	service    ClearingService
	hub        *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, logger *logrus.Logger, users UserStore, businesses BusinessStore, roles RoleStore, ledger LedgerStore, audit AuditStore, service ClearingService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:   txRunner,
		cfg:        cfg,
		logger:     logger,
		users:      users,
		businesses: businesses,
		roles:      roles,
		ledger:     ledger,
		audit:      audit,
		service:    service,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)
	allow := func(permission string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(h.roles, permission)
	}

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})

	router.Route("/users", func(r chi.Router) {
		r.Use(authenticated)
		r.With(allow(models.PermissionUsersManage)).Get("/", h.ListUsers)
		r.With(allow(models.PermissionUsersManage)).Post("/", h.CreateUser)
		r.With(allow("")).Post("/{id}/permissions", h.GrantPermission)
	})

	router.Route("/clearing", func(r chi.Router) {
		r.Use(authenticated)
		r.With(allow(models.PermissionClearingView)).Get("/accounts", h.ListClearingAccounts)
		r.With(allow(models.PermissionClearingManage)).Post("/accounts", h.CreateClearingAccount)
		r.With(allow(models.PermissionClearingManage)).Post("/accounts/seed", h.SeedClearingAccounts)
		r.With(allow(models.PermissionClearingView)).Get("/accounts/{id}", h.GetClearingAccount)
		r.With(allow(models.PermissionClearingManage)).Put("/accounts/{id}", h.UpdateClearingAccount)
		r.With(allow(models.PermissionClearingView)).Get("/accounts/{id}/balance", h.GetClearingAccountBalance)

		r.With(allow(models.PermissionClearingView)).Get("/entries", h.ListClearingEntries)
		r.With(allow(models.PermissionClearingManage)).Post("/entries", h.CreateClearingEntry)
		r.With(allow(models.PermissionClearingView)).Get("/entries/{id}", h.GetClearingEntry)
		r.With(allow(models.PermissionClearingManage)).Put("/entries/{id}", h.UpdateClearingEntry)
		r.With(allow(models.PermissionClearingManage)).Delete("/entries/{id}", h.DeleteClearingEntry)

		r.With(allow(models.PermissionClearingView)).Get("/unreconciled", h.ListUnreconciled)
		r.With(allow(models.PermissionClearingReconcile)).Post("/reconcile", h.ReconcileBasket)
		r.With(allow(models.PermissionClearingView)).Get("/reconciliations", h.ListReconciliations)
		r.With(allow(models.PermissionClearingView)).Get("/reconciliations/{id}", h.GetReconciliation)
		r.With(allow(models.PermissionClearingView)).Get("/statistics", h.GetStatistics)
	})

	router.With(authenticated, allow("")).Get("/audit", h.ListAuditLogs)
	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
