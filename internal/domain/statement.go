package domain

import "time"

// ============================================================
// Pending statements (store RPC view)
// ============================================================

// PendingStatement is one row of the "pending statements" store
// procedure: everything the UI or the chat bot needs to render a
// payable card statement without further round-trips.
type PendingStatement struct {
	CardID             string    `json:"card_id"`
	CardName           string    `json:"card_name"`
	Amount             float64   `json:"amount"`
	DueDate            time.Time `json:"due_date"`
	DaysUntilDue       int       `json:"days_until_due"`
	AutoPayEnabled     bool      `json:"auto_pay_enabled"`
	FundingAccountName string    `json:"funding_account_name,omitempty"`
	FundingCovers      bool      `json:"funding_covers"`
}
