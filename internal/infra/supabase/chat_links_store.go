package supabase

import (
	"context"
	"fmt"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// ============================================================
// Chat links — chat identity to application user
// ============================================================

type chatLinkRow struct {
	ChatID int64  `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ResolveChatUser maps an inbound chat id to the linked user.
func (c *Client) ResolveChatUser(ctx context.Context, chatID int64) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ResolveChatUser")
	defer span.End()

	path := fmt.Sprintf("chat_links?chat_id=eq.%d&limit=1", chatID)
	var rows []chatLinkRow
	if err := c.query(ctx, path, &rows); err != nil {
		return "", &domain.ErrExternalService{Service: "supabase/chat_links", Err: err}
	}
	if len(rows) == 0 {
		return "", &domain.ErrNotFound{Resource: "chat_link", ID: fmt.Sprintf("%d", chatID)}
	}
	return rows[0].UserID, nil
}

// ChatIDForUser is the reverse lookup, used for outbound
// notifications from the auto-pay run.
func (c *Client) ChatIDForUser(ctx context.Context, userID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ChatIDForUser")
	defer span.End()

	path := fmt.Sprintf("chat_links?user_id=eq.%s&limit=1", userID)
	var rows []chatLinkRow
	if err := c.query(ctx, path, &rows); err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/chat_links", Err: err}
	}
	if len(rows) == 0 {
		return 0, &domain.ErrNotFound{Resource: "chat_link", ID: userID}
	}
	return rows[0].ChatID, nil
}
