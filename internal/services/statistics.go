package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type AccountStatistic struct {
	AccountID     string
	Code          string
	Name          string
	NameEn        *string
	Type          string
	Balance       decimal.Decimal
	PendingCount  int
	PendingAmount decimal.Decimal
	Difference    decimal.Decimal
}

type StatisticsTotals struct {
	Accounts       int
	PendingEntries int
	PendingAmount  decimal.Decimal
	OutOfBalance   int
}

type Statistics struct {
	Accounts []AccountStatistic
	Totals   StatisticsTotals
}

// GetStatistics recomputes pending totals from live entries for every active account.
// Difference is stored balance minus that live sum and should be zero.
func (s *ClearingService) GetStatistics(ctx context.Context, scope Scope) (Statistics, error) {
	rows, err := s.accounts.Statistics(ctx, scope.BusinessID)
	if err != nil {
		return Statistics{}, fmt.Errorf("services.GetStatistics: %w", err)
	}
	stats := Statistics{
		Accounts: make([]AccountStatistic, 0, len(rows)),
		Totals:   StatisticsTotals{PendingAmount: decimal.Zero},
	}
	for _, row := range rows {
		diff := row.Balance.Sub(row.PendingAmount)
		stats.Accounts = append(stats.Accounts, AccountStatistic{
			AccountID:     row.ID,
			Code:          row.Code,
			Name:          row.Name,
			NameEn:        row.NameEn,
			Type:          row.Type,
			Balance:       row.Balance,
			PendingCount:  row.PendingCount,
			PendingAmount: row.PendingAmount,
			Difference:    diff,
		})
		stats.Totals.Accounts++
		stats.Totals.PendingEntries += row.PendingCount
		stats.Totals.PendingAmount = stats.Totals.PendingAmount.Add(row.PendingAmount)
		if !diff.IsZero() {
			stats.Totals.OutOfBalance++
		}
	}
	return stats, nil
}
