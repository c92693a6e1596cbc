package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// ============================================================
// Transactions — window queries for consolidation
// ============================================================

// supabaseTransaction maps the transactions table columns. Dates are
// stored as plain dates, not timestamps.
type supabaseTransaction struct {
	ID            string  `json:"id"`
	Value         float64 `json:"value"`
	Type          string  `json:"type"`
	AccountID     string  `json:"account_id"`
	DestinationID string  `json:"destination_id"`
	Date          string  `json:"date"`
	Description   string  `json:"description"`
	Booked        bool    `json:"booked"`
	UserID        string  `json:"user_id"`
	GroupID       string  `json:"group_id"`
}

// ListFamilyTransactions returns every transaction touching one of
// the given accounts (as origin or destination) within [from, to].
func (c *Client) ListFamilyTransactions(ctx context.Context, accountIDs []string, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFamilyTransactions")
	defer span.End()

	if len(accountIDs) == 0 {
		return []domain.Transaction{}, nil
	}

	ids := strings.Join(accountIDs, ",")
	path := fmt.Sprintf(
		"transactions?or=(account_id.in.(%s),destination_id.in.(%s))&date=gte.%s&date=lte.%s&order=date.desc",
		ids, ids, from.Format("2006-01-02"), to.Format("2006-01-02"),
	)

	var rows []supabaseTransaction
	if err := c.query(ctx, path, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	txns := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			// fall back to full timestamps written by older clients
			date, _ = time.Parse(time.RFC3339, r.Date)
		}
		txns = append(txns, domain.Transaction{
			ID:            r.ID,
			Value:         r.Value,
			Type:          domain.TransactionType(r.Type),
			AccountID:     r.AccountID,
			DestinationID: r.DestinationID,
			Date:          date,
			Description:   r.Description,
			Booked:        r.Booked,
			UserID:        r.UserID,
			GroupID:       r.GroupID,
		})
	}
	return txns, nil
}
