package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountTypeBank    = "bank"
	AccountTypeRevenue = "revenue"
	AccountTypeExpense = "expense"
	AccountTypeOther   = "other"
)

const (
	EntryStatusPending = "pending"
	EntryStatusMatched = "matched"
)

const (
	MatchTypeOneToOne   = "one_to_one"
	MatchTypeOneToMany  = "one_to_many"
	MatchTypeManyToOne  = "many_to_one"
	MatchTypeManyToMany = "many_to_many"
)

const (
	ReconciliationTypeBank  = "bank"
	ReconciliationTypeOther = "other"

	ReconciliationStatusFinalized = "finalized"
)

const (
	PermissionClearingView      = "clearing.view"
	PermissionClearingManage    = "clearing.manage"
	PermissionClearingReconcile = "clearing.reconcile"
	PermissionUsersManage       = "users.manage"
)

func ValidAccountType(value string) bool {
	switch value {
	case AccountTypeBank, AccountTypeRevenue, AccountTypeExpense, AccountTypeOther:
		return true
	}
	return false
}

func ValidPermission(value string) bool {
	switch value {
	case PermissionClearingView, PermissionClearingManage, PermissionClearingReconcile, PermissionUsersManage:
		return true
	}
	return false
}

type Business struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type User struct {
	ID           string    `db:"id" json:"id"`
	BusinessID   string    `db:"business_id" json:"business_id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsOwner      bool      `db:"is_owner" json:"is_owner"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// LedgerAccount is the slice of the chart of accounts clearing accounts link to.
type LedgerAccount struct {
	ID            string    `db:"id" json:"id"`
	BusinessID    string    `db:"business_id" json:"business_id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	SystemAccount *string   `db:"system_account" json:"system_account,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type ClearingAccount struct {
	ID            string          `db:"id" json:"id"`
	BusinessID    string          `db:"business_id" json:"business_id"`
	Code          string          `db:"code" json:"code"`
	Name          string          `db:"name" json:"name"`
	NameEn        *string         `db:"name_en" json:"name_en,omitempty"`
	Type          string          `db:"type" json:"type"`
	AccountID     *string         `db:"account_id" json:"account_id,omitempty"`
	SystemAccount *string         `db:"system_account" json:"system_account,omitempty"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

type ClearingEntry struct {
	ID                string          `db:"id" json:"id"`
	ClearingAccountID string          `db:"clearing_account_id" json:"clearing_account_id"`
	EntryDate         time.Time       `db:"entry_date" json:"entry_date"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	ReferenceType     *string         `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID       *string         `db:"reference_id" json:"reference_id,omitempty"`
	ReferenceNumber   *string         `db:"reference_number" json:"reference_number,omitempty"`
	Description       *string         `db:"description" json:"description,omitempty"`
	Status            string          `db:"status" json:"status"`
	MatchedAt         *time.Time      `db:"matched_at" json:"matched_at,omitempty"`
	ReconciliationID  *string         `db:"reconciliation_id" json:"reconciliation_id,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

type Reconciliation struct {
	ID             string          `db:"id" json:"id"`
	BusinessID     string          `db:"business_id" json:"business_id"`
	Type           string          `db:"type" json:"type"`
	Name           string          `db:"name" json:"name"`
	PeriodStart    time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time       `db:"period_end" json:"period_end"`
	Status         string          `db:"status" json:"status"`
	TotalItems     int             `db:"total_items" json:"total_items"`
	MatchedItems   int             `db:"matched_items" json:"matched_items"`
	UnmatchedItems int             `db:"unmatched_items" json:"unmatched_items"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	MatchedAmount  decimal.Decimal `db:"matched_amount" json:"matched_amount"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	FinalizedBy    *string         `db:"finalized_by" json:"finalized_by,omitempty"`
	FinalizedAt    *time.Time      `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type ReconciliationMatch struct {
	ID               string          `db:"id" json:"id"`
	ReconciliationID string          `db:"reconciliation_id" json:"reconciliation_id"`
	MatchType        string          `db:"match_type" json:"match_type"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}
