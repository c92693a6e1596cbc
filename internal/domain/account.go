package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// AccountKind classifies an account as a funding source or a credit card.
type AccountKind string

const (
	AccountCash       AccountKind = "cash"
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountInvestment AccountKind = "investment"
	AccountCard       AccountKind = "card"
)

// Account represents a funding source or a credit card.
//
// For cards, Balance is the outstanding debt as a negative number
// (a card owing R$ 150 has Balance = -150). ClosingDay and DueDay are
// only meaningful for cards. ParentAccountID links a supplementary
// card to the principal card whose statement it shares; principal
// cards and non-card accounts have it empty.
type Account struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	GroupID         string      `json:"group_id,omitempty"`
	Name            string      `json:"name"`
	Kind            AccountKind `json:"kind"`
	Balance         float64     `json:"balance"`
	ClosingDay      int         `json:"closing_day,omitempty"`
	DueDay          int         `json:"due_day,omitempty"`
	ParentAccountID string      `json:"parent_account_id,omitempty"`
	Active          bool        `json:"active"`
	CreatedAt       time.Time   `json:"created_at"`
}

// IsCard reports whether the account is a credit card.
func (a *Account) IsCard() bool {
	return a.Kind == AccountCard
}

// IsPrincipalCard reports whether the account is a card that owns its
// own statement cycle (i.e. not linked to a parent card).
func (a *Account) IsPrincipalCard() bool {
	return a.IsCard() && a.ParentAccountID == ""
}

// Outstanding returns the card's debt as a positive amount.
func (a *Account) Outstanding() float64 {
	if a.Balance < 0 {
		return -a.Balance
	}
	return 0
}

// ============================================================
// Transactions
// ============================================================

// TransactionType is the kind of money movement.
type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

// Transaction is a single money movement. Value is always stored
// positive; the type gives it a direction. Expense and income
// transactions have no destination; transfers carry both the origin
// and the destination account.
type Transaction struct {
	ID            string          `json:"id"`
	Value         float64         `json:"value"`
	Type          TransactionType `json:"type"`
	AccountID     string          `json:"account_id"`
	DestinationID string          `json:"destination_id,omitempty"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description,omitempty"`
	Booked        bool            `json:"booked"`
	UserID        string          `json:"user_id"`
	GroupID       string          `json:"group_id,omitempty"`
}
