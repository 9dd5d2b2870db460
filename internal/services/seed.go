package services

import (
	"context"

	"clearing/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type catalogAccount struct {
	code          string
	name          string
	accountType   string
	systemAccount string
}

// clearingCatalog is the fixed set of accounts every business gets. Order is the seed order.
var clearingCatalog = []catalogAccount{
	{code: "CLR-BANK-COLLECTION", name: "Bank collections clearing", accountType: models.AccountTypeBank, systemAccount: "bank_main"},
	{code: "CLR-BANK-TRANSFER", name: "Bank transfers clearing", accountType: models.AccountTypeBank, systemAccount: "bank_main"},
	{code: "CLR-BILLING-REVENUE", name: "Billing revenue clearing", accountType: models.AccountTypeRevenue, systemAccount: "revenue_sales"},
	{code: "CLR-PREPAID-REVENUE", name: "Prepaid revenue clearing", accountType: models.AccountTypeRevenue, systemAccount: "revenue_unearned"},
	{code: "CLR-SUBSIDY-REVENUE", name: "Subsidy revenue clearing", accountType: models.AccountTypeRevenue, systemAccount: "revenue_subsidy"},
	{code: "CLR-SUPPLIERS", name: "Suppliers clearing", accountType: models.AccountTypeExpense, systemAccount: "payables_suppliers"},
}

// CatalogSystemAccounts lists the distinct ledger tags the catalog links to, in catalog order.
func CatalogSystemAccounts() []string {
	seen := map[string]struct{}{}
	var tags []string
	for _, item := range clearingCatalog {
		if _, ok := seen[item.systemAccount]; ok {
			continue
		}
		seen[item.systemAccount] = struct{}{}
		tags = append(tags, item.systemAccount)
	}
	return tags
}

type SeedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// SeedClearingAccounts upserts the catalog by business and code. Re-running only updates.
func (s *ClearingService) SeedClearingAccounts(ctx context.Context, scope Scope) (SeedResult, error) {
	var result SeedResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = SeedResult{}
		for _, item := range clearingCatalog {
			ledgerID, err := s.ledger.FindBySystemAccount(ctx, tx, scope.BusinessID, item.systemAccount)
			if err != nil {
				return err
			}
			tag := item.systemAccount
			nameEn := item.name
			inserted, err := s.accounts.Upsert(ctx, tx, models.ClearingAccount{
				ID:            uuid.NewString(),
				BusinessID:    scope.BusinessID,
				Code:          item.code,
				Name:          item.name,
				NameEn:        &nameEn,
				Type:          item.accountType,
				AccountID:     ledgerID,
				SystemAccount: &tag,
			})
			if err != nil {
				return err
			}
			if inserted {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return s.logAudit(ctx, tx, scope, "seed_clearing_accounts", "business", scope.BusinessID, map[string]any{
			"created": result.Created,
			"updated": result.Updated,
		})
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}
