package supabase

import (
	"context"
	"fmt"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// ============================================================
// Accounts — queries via PostgREST
// ============================================================

// GetAccount fetches one account, optionally scoped to a user (an
// empty userID skips the ownership filter, for internal callers).
// Shared-group accounts are visible to every member, which the
// account_visibility view resolves server-side.
func (c *Client) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()

	path := fmt.Sprintf("account_visibility?id=eq.%s&limit=1", accountID)
	if userID != "" {
		path = fmt.Sprintf("account_visibility?id=eq.%s&visible_to=eq.%s&limit=1", accountID, userID)
	}

	var rows []domain.Account
	if err := c.query(ctx, path, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &rows[0], nil
}

// ListPrincipalCards returns the user's active principal credit cards.
func (c *Client) ListPrincipalCards(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPrincipalCards")
	defer span.End()

	path := fmt.Sprintf(
		"account_visibility?visible_to=eq.%s&kind=eq.card&parent_account_id=is.null&active=is.true&order=name.asc",
		userID,
	)
	var rows []domain.Account
	if err := c.query(ctx, path, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	return rows, nil
}

// ListSupplementaryCards returns the cards linked to a principal card,
// inactive ones included; the caller filters.
func (c *Client) ListSupplementaryCards(ctx context.Context, parentID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListSupplementaryCards")
	defer span.End()

	path := fmt.Sprintf("accounts?parent_account_id=eq.%s&order=name.asc", parentID)
	var rows []domain.Account
	if err := c.query(ctx, path, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	return rows, nil
}
