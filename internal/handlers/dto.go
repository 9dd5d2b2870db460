package handlers

import (
	"time"

	"clearing/internal/models"
	"clearing/internal/money"
	"clearing/internal/services"
)

const dateLayout = "2006-01-02"

type accountResponse struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	NameEn        *string   `json:"name_en,omitempty"`
	Type          string    `json:"type"`
	AccountID     *string   `json:"account_id,omitempty"`
	SystemAccount *string   `json:"system_account,omitempty"`
	Balance       string    `json:"balance"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toAccountResponse(account models.ClearingAccount) accountResponse {
	return accountResponse{
		ID:            account.ID,
		Code:          account.Code,
		Name:          account.Name,
		NameEn:        account.NameEn,
		Type:          account.Type,
		AccountID:     account.AccountID,
		SystemAccount: account.SystemAccount,
		Balance:       money.Format(account.Balance),
		IsActive:      account.IsActive,
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     account.UpdatedAt,
	}
}

func toAccountResponses(accounts []models.ClearingAccount) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, toAccountResponse(account))
	}
	return out
}

type entryResponse struct {
	ID                string     `json:"id"`
	ClearingAccountID string     `json:"clearing_account_id"`
	EntryDate         string     `json:"entry_date"`
	Amount            string     `json:"amount"`
	ReferenceType     *string    `json:"reference_type,omitempty"`
	ReferenceID       *string    `json:"reference_id,omitempty"`
	ReferenceNumber   *string    `json:"reference_number,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Status            string     `json:"status"`
	MatchedAt         *time.Time `json:"matched_at,omitempty"`
	ReconciliationID  *string    `json:"reconciliation_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toEntryResponse(entry models.ClearingEntry) entryResponse {
	return entryResponse{
		ID:                entry.ID,
		ClearingAccountID: entry.ClearingAccountID,
		EntryDate:         entry.EntryDate.Format(dateLayout),
		Amount:            money.Format(entry.Amount),
		ReferenceType:     entry.ReferenceType,
		ReferenceID:       entry.ReferenceID,
		ReferenceNumber:   entry.ReferenceNumber,
		Description:       entry.Description,
		Status:            entry.Status,
		MatchedAt:         entry.MatchedAt,
		ReconciliationID:  entry.ReconciliationID,
		CreatedAt:         entry.CreatedAt,
		UpdatedAt:         entry.UpdatedAt,
	}
}

func toEntryResponses(entries []models.ClearingEntry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	return out
}

type balanceResponse struct {
	AccountID    string `json:"account_id"`
	Balance      string `json:"balance"`
	PendingSum   string `json:"pending_sum"`
	PendingCount int    `json:"pending_count"`
	Difference   string `json:"difference"`
	InBalance    bool   `json:"in_balance"`
}

func toBalanceResponse(balance services.AccountBalance) balanceResponse {
	return balanceResponse{
		AccountID:    balance.Account.ID,
		Balance:      money.Format(balance.Account.Balance),
		PendingSum:   money.Format(balance.PendingSum),
		PendingCount: balance.PendingCount,
		Difference:   money.Format(balance.Difference),
		InBalance:    balance.InBalance(),
	}
}

type basketResponse struct {
	Account      accountResponse `json:"account"`
	Entries      []entryResponse `json:"entries"`
	EntriesCount int             `json:"entries_count"`
	TotalDebit   string          `json:"total_debit"`
	TotalCredit  string          `json:"total_credit"`
}

func toBasketResponses(baskets []services.Basket) []basketResponse {
	out := make([]basketResponse, 0, len(baskets))
	for _, basket := range baskets {
		out = append(out, basketResponse{
			Account:      toAccountResponse(basket.Account),
			Entries:      toEntryResponses(basket.Entries),
			EntriesCount: len(basket.Entries),
			TotalDebit:   money.Format(basket.TotalDebit),
			TotalCredit:  money.Format(basket.TotalCredit),
		})
	}
	return out
}

type reconcileResponse struct {
	ReconciliationID string `json:"reconciliation_id"`
	MatchType        string `json:"match_type"`
	TotalDebit       string `json:"total_debit"`
	TotalCredit      string `json:"total_credit"`
	EntriesCount     int    `json:"entries_count"`
	Message          string `json:"message"`
}

func toReconcileResponse(result services.ReconcileResult) reconcileResponse {
	return reconcileResponse{
		ReconciliationID: result.ReconciliationID,
		MatchType:        result.MatchType,
		TotalDebit:       money.Format(result.TotalDebit),
		TotalCredit:      money.Format(result.TotalCredit),
		EntriesCount:     result.EntriesCount,
		Message:          result.Message,
	}
}

type reconciliationResponse struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Name           string     `json:"name"`
	PeriodStart    string     `json:"period_start"`
	PeriodEnd      string     `json:"period_end"`
	Status         string     `json:"status"`
	TotalItems     int        `json:"total_items"`
	MatchedItems   int        `json:"matched_items"`
	UnmatchedItems int        `json:"unmatched_items"`
	TotalAmount    string     `json:"total_amount"`
	MatchedAmount  string     `json:"matched_amount"`
	CreatedBy      string     `json:"created_by"`
	FinalizedBy    *string    `json:"finalized_by,omitempty"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toReconciliationResponse(rec models.Reconciliation) reconciliationResponse {
	return reconciliationResponse{
		ID:             rec.ID,
		Type:           rec.Type,
		Name:           rec.Name,
		PeriodStart:    rec.PeriodStart.Format(dateLayout),
		PeriodEnd:      rec.PeriodEnd.Format(dateLayout),
		Status:         rec.Status,
		TotalItems:     rec.TotalItems,
		MatchedItems:   rec.MatchedItems,
		UnmatchedItems: rec.UnmatchedItems,
		TotalAmount:    money.Format(rec.TotalAmount),
		MatchedAmount:  money.Format(rec.MatchedAmount),
		CreatedBy:      rec.CreatedBy,
		FinalizedBy:    rec.FinalizedBy,
		FinalizedAt:    rec.FinalizedAt,
		CreatedAt:      rec.CreatedAt,
	}
}

type matchResponse struct {
	ID        string    `json:"id"`
	MatchType string    `json:"match_type"`
	Amount    string    `json:"amount"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type reconciliationDetailResponse struct {
	Reconciliation reconciliationResponse `json:"reconciliation"`
	Matches        []matchResponse        `json:"matches"`
	Entries        []entryResponse        `json:"entries"`
}

func toReconciliationDetailResponse(detail services.ReconciliationDetail) reconciliationDetailResponse {
	matches := make([]matchResponse, 0, len(detail.Matches))
	for _, match := range detail.Matches {
		matches = append(matches, matchResponse{
			ID:        match.ID,
			MatchType: match.MatchType,
			Amount:    money.Format(match.Amount),
			Notes:     match.Notes,
			CreatedAt: match.CreatedAt,
		})
	}
	return reconciliationDetailResponse{
		Reconciliation: toReconciliationResponse(detail.Reconciliation),
		Matches:        matches,
		Entries:        toEntryResponses(detail.Entries),
	}
}

type statisticResponse struct {
	AccountID     string  `json:"account_id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	NameEn        *string `json:"name_en,omitempty"`
	Type          string  `json:"type"`
	Balance       string  `json:"balance"`
	PendingCount  int     `json:"pending_count"`
	PendingAmount string  `json:"pending_amount"`
	Difference    string  `json:"difference"`
}

type statisticsResponse struct {
	Accounts []statisticResponse `json:"accounts"`
	Totals   struct {
		Accounts       int    `json:"accounts"`
		PendingEntries int    `json:"pending_entries"`
		PendingAmount  string `json:"pending_amount"`
		OutOfBalance   int    `json:"out_of_balance"`
	} `json:"totals"`
}

func toStatisticsResponse(stats services.Statistics) statisticsResponse {
	var out statisticsResponse
	out.Accounts = make([]statisticResponse, 0, len(stats.Accounts))
	for _, item := range stats.Accounts {
		out.Accounts = append(out.Accounts, statisticResponse{
			AccountID:     item.AccountID,
			Code:          item.Code,
			Name:          item.Name,
			NameEn:        item.NameEn,
			Type:          item.Type,
			Balance:       money.Format(item.Balance),
			PendingCount:  item.PendingCount,
			PendingAmount: money.Format(item.PendingAmount),
			Difference:    money.Format(item.Difference),
		})
	}
	out.Totals.Accounts = stats.Totals.Accounts
	out.Totals.PendingEntries = stats.Totals.PendingEntries
	out.Totals.PendingAmount = money.Format(stats.Totals.PendingAmount)
	out.Totals.OutOfBalance = stats.Totals.OutOfBalance
	return out
}

type userResponse struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsOwner     bool      `json:"is_owner"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(user models.User, permissions []string) userResponse {
	if permissions == nil {
		permissions = []string{}
	}
	return userResponse{
		ID:          user.ID,
		BusinessID:  user.BusinessID,
		Username:    user.Username,
		Email:       user.Email,
		IsOwner:     user.IsOwner,
		Permissions: permissions,
		CreatedAt:   user.CreatedAt,
	}
}
