// Package port defines the interfaces the service layer depends on.
// The concrete implementations live in internal/infra (Supabase store,
// Telegram messenger); services only ever see these contracts.
package port

import (
	"context"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// AccountStore handles account lookups. An empty userID means "no
// ownership filter" and is used by trusted internal callers such as
// the auto-pay scheduler.
type AccountStore interface {
	GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error)
	ListPrincipalCards(ctx context.Context, userID string) ([]domain.Account, error)
	ListSupplementaryCards(ctx context.Context, parentID string) ([]domain.Account, error)
}

// TransactionStore queries booked and pending transactions.
type TransactionStore interface {
	// ListFamilyTransactions returns every transaction whose origin or
	// destination is one of the given accounts, dated within [from, to]
	// inclusive.
	ListFamilyTransactions(ctx context.Context, accountIDs []string, from, to time.Time) ([]domain.Transaction, error)
}

// SettingsStore persists the per-card automation policy.
type SettingsStore interface {
	// GetCardSettings returns ErrNotFound when the card was never
	// configured; callers fall back to defaults.
	GetCardSettings(ctx context.Context, cardID string) (*domain.CardSettings, error)
	UpsertCardSettings(ctx context.Context, settings *domain.CardSettings) error
	// ListConfiguredCards returns every settings row across all users,
	// for the scheduled automation run.
	ListConfiguredCards(ctx context.Context) ([]domain.CardSettings, error)
}

// SettlementStore is the transactional part of the backing store:
// the settle procedure, the pending-statements procedure and the
// idempotency log.
type SettlementStore interface {
	// GetPendingStatements runs the store procedure returning one row
	// per payable card statement of the user.
	GetPendingStatements(ctx context.Context, userID string) ([]domain.PendingStatement, error)

	// SettleInvoice runs the atomic settle procedure: balance check,
	// double debit/credit and transfer insert in one transaction.
	// Returns ErrInsufficientFunds when the funding balance does not
	// cover the amount and ErrStaleAction when the card has no
	// outstanding balance.
	SettleInvoice(ctx context.Context, req *domain.SettlementRequest) (*domain.SettlementResult, error)

	// ClaimCycle inserts a processing-log row for (card, cycle, kind).
	// Returns ErrDuplicate when the cycle was already claimed, which is
	// how concurrent automated runs are reduced to one attempt.
	ClaimCycle(ctx context.Context, cardID, cycleKey, kind string) error

	// MarkCycleOutcome records the final outcome on a claimed row.
	MarkCycleOutcome(ctx context.Context, cardID, cycleKey, kind, outcome, detail string) error
}

// ChatLinkStore maps chat identities to application users. Links are
// created by the onboarding flow, outside this core.
type ChatLinkStore interface {
	ResolveChatUser(ctx context.Context, chatID int64) (string, error)
	ChatIDForUser(ctx context.Context, userID string) (int64, error)
}

// FinanceStore is the full backing-store contract, implemented by the
// Supabase client.
type FinanceStore interface {
	AccountStore
	TransactionStore
	SettingsStore
	SettlementStore
	ChatLinkStore
}
