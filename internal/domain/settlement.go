package domain

import "time"

// ============================================================
// Settlement
// ============================================================

// SettlementRequest describes one attempt to pay down a card's
// outstanding balance from a funding account. Amount nil means "pay
// the full outstanding balance".
type SettlementRequest struct {
	UserID           string   `json:"user_id"`
	CardID           string   `json:"card_id"`
	FundingAccountID string   `json:"funding_account_id"`
	Amount           *float64 `json:"amount,omitempty"`
	IdempotencyKey   string   `json:"idempotency_key"`
}

// SettlementResult is the ephemeral outcome of a settlement attempt.
// It is never persisted as its own record: a successful settlement is
// backed by exactly one transfer Transaction (TransferID), and
// automated runs additionally leave one processing-log row per
// (card, cycle).
type SettlementResult struct {
	Paid           bool      `json:"paid"`
	AlreadySettled bool      `json:"already_settled,omitempty"`
	AmountPaid     float64   `json:"amount_paid,omitempty"`
	FundingBalance float64   `json:"funding_balance,omitempty"`
	CardBalance    float64   `json:"card_balance"`
	TransferID     string    `json:"transfer_id,omitempty"`
	SettledAt      time.Time `json:"settled_at,omitempty"`
}

// Processing-log entry kinds and outcomes. The log is append-only and
// unique on (card_id, cycle_key, kind), which is what makes automated
// settlement at-most-once per cycle.
const (
	LogKindAutoPay  = "autopay"
	LogKindReminder = "reminder"

	LogOutcomeSuccess = "success"
	LogOutcomeFailed  = "failed"
)
