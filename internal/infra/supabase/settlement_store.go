package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Settlement — transactional procedures + idempotency log
// ============================================================

// pendingStatementRow maps the get_pending_statements function output.
type pendingStatementRow struct {
	CardID             string  `json:"card_id"`
	CardName           string  `json:"card_name"`
	Amount             float64 `json:"amount"`
	DueDate            string  `json:"due_date"`
	DaysUntilDue       int     `json:"days_until_due"`
	AutoPayEnabled     bool    `json:"auto_pay_enabled"`
	FundingAccountName string  `json:"funding_account_name"`
	FundingCovers      bool    `json:"funding_covers"`
}

// GetPendingStatements runs the get_pending_statements procedure:
// one row per payable principal-card statement of the user, with the
// funding-coverage flag evaluated server-side in the same snapshot.
func (c *Client) GetPendingStatements(ctx context.Context, userID string) ([]domain.PendingStatement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPendingStatements")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []pendingStatementRow
	if err := c.rpc(ctx, "get_pending_statements", map[string]any{"p_user_id": userID}, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/get_pending_statements", Err: err}
	}

	pending := make([]domain.PendingStatement, 0, len(rows))
	for _, r := range rows {
		due, _ := time.Parse("2006-01-02", r.DueDate)
		pending = append(pending, domain.PendingStatement{
			CardID:             r.CardID,
			CardName:           r.CardName,
			Amount:             r.Amount,
			DueDate:            due,
			DaysUntilDue:       r.DaysUntilDue,
			AutoPayEnabled:     r.AutoPayEnabled,
			FundingAccountName: r.FundingAccountName,
			FundingCovers:      r.FundingCovers,
		})
	}
	return pending, nil
}

// settleRow maps the settle_invoice function output. The function
// runs the balance check, both balance updates and the transfer
// insert in one serializable transaction with both account rows
// locked, so two concurrent attempts can never both spend the same
// funding balance.
type settleRow struct {
	Status         string  `json:"status"` // paid, insufficient_funds, already_settled
	AmountPaid     float64 `json:"amount_paid"`
	FundingBalance float64 `json:"funding_balance"`
	CardBalance    float64 `json:"card_balance"`
	Required       float64 `json:"required"`
	Available      float64 `json:"available"`
	TransferID     string  `json:"transfer_id"`
	SettledAt      string  `json:"settled_at"`
}

// SettleInvoice runs the settle_invoice procedure.
func (c *Client) SettleInvoice(ctx context.Context, req *domain.SettlementRequest) (*domain.SettlementResult, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SettleInvoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("card.id", req.CardID),
		attribute.String("funding.id", req.FundingAccountID),
	)

	args := map[string]any{
		"p_user_id":         req.UserID,
		"p_card_id":         req.CardID,
		"p_funding_id":      req.FundingAccountID,
		"p_amount":          nil,
		"p_idempotency_key": req.IdempotencyKey,
	}
	if req.Amount != nil {
		args["p_amount"] = *req.Amount
	}

	var row settleRow
	if err := c.rpc(ctx, "settle_invoice", args, &row); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/settle_invoice", Err: err}
	}

	switch row.Status {
	case "paid":
		settledAt, _ := time.Parse(time.RFC3339, row.SettledAt)
		return &domain.SettlementResult{
			Paid:           true,
			AmountPaid:     row.AmountPaid,
			FundingBalance: row.FundingBalance,
			CardBalance:    row.CardBalance,
			TransferID:     row.TransferID,
			SettledAt:      settledAt,
		}, nil
	case "insufficient_funds":
		return nil, &domain.ErrInsufficientFunds{Available: row.Available, Required: row.Required}
	case "already_settled":
		return nil, &domain.ErrStaleAction{CardID: req.CardID}
	default:
		return nil, &domain.ErrExternalService{
			Service: "supabase/settle_invoice",
			Err:     fmt.Errorf("unexpected settle status %q", row.Status),
		}
	}
}

// ClaimCycle inserts the processing-log row for (card, cycle, kind).
// The table is unique on that triple; a conflict means another run
// already claimed the cycle and surfaces as ErrDuplicate.
func (c *Client) ClaimCycle(ctx context.Context, cardID, cycleKey, kind string) error {
	ctx, span := tracer.Start(ctx, "Supabase.ClaimCycle")
	defer span.End()

	row := map[string]any{
		"card_id":    cardID,
		"cycle_key":  cycleKey,
		"kind":       kind,
		"outcome":    "processing",
		"claimed_at": time.Now().UTC().Format(time.RFC3339),
	}
	status, err := c.insert(ctx, "statement_processing_log", row, "return=minimal")
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/processing_log", Err: err}
	}
	if status == http.StatusConflict {
		return &domain.ErrDuplicate{Key: fmt.Sprintf("%s/%s/%s", cardID, cycleKey, kind)}
	}
	return nil
}

// MarkCycleOutcome finalizes a claimed processing-log row.
func (c *Client) MarkCycleOutcome(ctx context.Context, cardID, cycleKey, kind, outcome, detail string) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkCycleOutcome")
	defer span.End()

	path := fmt.Sprintf("statement_processing_log?card_id=eq.%s&cycle_key=eq.%s&kind=eq.%s", cardID, cycleKey, kind)
	data := map[string]any{
		"outcome":     outcome,
		"detail":      detail,
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.patch(ctx, path, data); err != nil {
		return &domain.ErrExternalService{Service: "supabase/processing_log", Err: err}
	}
	return nil
}
