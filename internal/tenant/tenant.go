// Package tenant centralizes the "does this account belong to the caller's business" check.
// Every lookup that crosses from an entry or an id list to an account goes through Guard.
package tenant

import (
	"context"
	"fmt"

	"clearing/internal/apperr"
)

// AccountOwnership is the read side the guard needs from the account store.
type AccountOwnership interface {
	OwnerOf(ctx context.Context, accountIDs []string) (map[string]string, error)
	IDsByBusiness(ctx context.Context, businessID string, activeOnly bool) ([]string, error)
}

type Guard struct {
	accounts AccountOwnership
}

func NewGuard(accounts AccountOwnership) *Guard {
	return &Guard{accounts: accounts}
}

// CheckAccount returns a NotFound error unless accountID belongs to businessID.
// A foreign account is indistinguishable from a missing one.
func (g *Guard) CheckAccount(ctx context.Context, businessID, accountID string) error {
	owners, err := g.accounts.OwnerOf(ctx, []string{accountID})
	if err != nil {
		return fmt.Errorf("tenant.CheckAccount: %w", err)
	}
	if owners[accountID] != businessID {
		return apperr.NotFound("account_not_found", "clearing account not found")
	}
	return nil
}

// OwnedAccountIDs lists the tenant's account ids.
func (g *Guard) OwnedAccountIDs(ctx context.Context, businessID string, activeOnly bool) ([]string, error) {
	ids, err := g.accounts.IDsByBusiness(ctx, businessID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("tenant.OwnedAccountIDs: %w", err)
	}
	return ids, nil
}

// FilterOwned keeps the ids owned by businessID, preserving order and dropping duplicates.
func (g *Guard) FilterOwned(ctx context.Context, businessID string, accountIDs []string) ([]string, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	owners, err := g.accounts.OwnerOf(ctx, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("tenant.FilterOwned: %w", err)
	}
	seen := make(map[string]struct{}, len(accountIDs))
	owned := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if owners[id] == businessID {
			owned = append(owned, id)
		}
	}
	return owned, nil
}
