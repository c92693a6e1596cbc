package domain

import "time"

// CardSettings is the per-principal-card automation policy: whether
// statements are settled unattended, from which funding account, and
// whether (and how early) the user is reminded of the due date.
//
// A row is created lazily the first time a card is configured and is
// only ever toggled afterwards, never deleted.
type CardSettings struct {
	CardID           string    `json:"card_id"`
	UserID           string    `json:"user_id"`
	AutoPayEnabled   bool      `json:"auto_pay_enabled"`
	FundingAccountID string    `json:"funding_account_id,omitempty"`
	ReminderEnabled  bool      `json:"reminder_enabled"`
	ReminderLeadDays int       `json:"reminder_lead_days"`
	UpdatedAt        time.Time `json:"updated_at"`
}
