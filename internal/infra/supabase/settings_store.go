package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// ============================================================
// Card settings — automation policy rows
// ============================================================

// GetCardSettings returns the card's automation policy row, or
// ErrNotFound when the card was never configured.
func (c *Client) GetCardSettings(ctx context.Context, cardID string) (*domain.CardSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCardSettings")
	defer span.End()

	path := fmt.Sprintf("card_settings?card_id=eq.%s&limit=1", cardID)
	var rows []domain.CardSettings
	if err := c.query(ctx, path, &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/card_settings", Err: err}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "card_settings", ID: cardID}
	}
	return &rows[0], nil
}

// UpsertCardSettings creates the settings row on first configuration
// and merges on every subsequent update (PostgREST merge-duplicates
// against the card_id primary key).
func (c *Client) UpsertCardSettings(ctx context.Context, settings *domain.CardSettings) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertCardSettings")
	defer span.End()

	row := map[string]any{
		"card_id":            settings.CardID,
		"user_id":            settings.UserID,
		"auto_pay_enabled":   settings.AutoPayEnabled,
		"funding_account_id": nullable(settings.FundingAccountID),
		"reminder_enabled":   settings.ReminderEnabled,
		"reminder_lead_days": settings.ReminderLeadDays,
		"updated_at":         time.Now().UTC().Format(time.RFC3339),
	}

	status, err := c.insert(ctx, "card_settings", row, "resolution=merge-duplicates,return=minimal")
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/card_settings", Err: err}
	}
	if status == http.StatusConflict {
		return &domain.ErrExternalService{Service: "supabase/card_settings", Err: fmt.Errorf("upsert conflict not resolved (status %d)", status)}
	}
	return nil
}

// ListConfiguredCards returns every settings row, across all users,
// for the scheduled automation run.
func (c *Client) ListConfiguredCards(ctx context.Context) ([]domain.CardSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListConfiguredCards")
	defer span.End()

	var rows []domain.CardSettings
	if err := c.query(ctx, "card_settings?or=(auto_pay_enabled.is.true,reminder_enabled.is.true)&order=card_id.asc", &rows); err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/card_settings", Err: err}
	}
	return rows, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
