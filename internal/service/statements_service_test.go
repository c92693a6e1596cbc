package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/billing"
	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/cache"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/service"

	"go.uber.org/zap"
)

func newStatementService(store *fakeStore) *service.StatementService {
	return service.NewStatementService(
		store,
		cache.New[[]domain.Account](5*time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func principalCard(id, userID string) *domain.Account {
	return &domain.Account{
		ID:         id,
		UserID:     userID,
		Name:       "Nubank",
		Kind:       domain.AccountCard,
		Balance:    -150,
		ClosingDay: 5,
		DueDay:     15,
		Active:     true,
	}
}

func TestResolveCardFamily_PrincipalWithSupplementary(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")
	store.supplementary["card-1"] = []domain.Account{
		{ID: "card-2", UserID: "user-2", Kind: domain.AccountCard, ParentAccountID: "card-1", Active: true},
		{ID: "card-3", UserID: "user-3", Kind: domain.AccountCard, ParentAccountID: "card-1", Active: false},
	}

	svc := newStatementService(store)

	family, err := svc.ResolveCardFamily(context.Background(), "user-1", "card-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(family) != 2 {
		t.Fatalf("expected principal + 1 active supplementary, got %d members", len(family))
	}
	if family[0].ID != "card-1" {
		t.Errorf("expected principal first, got %s", family[0].ID)
	}
	if family[1].ID != "card-2" {
		t.Errorf("expected active supplementary, got %s", family[1].ID)
	}
}

func TestResolveCardFamily_PrincipalAlone(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")

	svc := newStatementService(store)

	family, err := svc.ResolveCardFamily(context.Background(), "user-1", "card-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(family) != 1 {
		t.Fatalf("expected the principal alone, got %d members", len(family))
	}
}

func TestResolveCardFamily_Errors(t *testing.T) {
	inactive := principalCard("card-inactive", "user-1")
	inactive.Active = false

	supplementary := principalCard("card-sup", "user-1")
	supplementary.ParentAccountID = "card-1"

	store := newFakeStore()
	store.accounts["card-inactive"] = inactive
	store.accounts["card-sup"] = supplementary
	store.accounts["checking-1"] = &domain.Account{
		ID: "checking-1", UserID: "user-1", Kind: domain.AccountChecking, Active: true,
	}

	svc := newStatementService(store)

	tests := []struct {
		name    string
		cardID  string
		wantErr any
	}{
		{"missing card", "nope", &domain.ErrNotFound{}},
		{"inactive card", "card-inactive", &domain.ErrNotFound{}},
		{"not a card", "checking-1", &domain.ErrValidation{}},
		{"supplementary card", "card-sup", &domain.ErrValidation{}},
		{"empty id", "", &domain.ErrValidation{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ResolveCardFamily(context.Background(), "user-1", tt.cardID)
			if err == nil {
				t.Fatal("expected an error")
			}
			switch want := tt.wantErr.(type) {
			case *domain.ErrNotFound:
				if !errors.As(err, &want) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			case *domain.ErrValidation:
				if !errors.As(err, &want) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
			}
		})
	}
}

func TestResolveCardFamily_CachesFamily(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")

	svc := newStatementService(store)

	if _, err := svc.ResolveCardFamily(context.Background(), "user-1", "card-1"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	// Drop the account from the store: a second resolve must come
	// from the cache.
	delete(store.accounts, "card-1")

	family, err := svc.ResolveCardFamily(context.Background(), "user-1", "card-1")
	if err != nil {
		t.Fatalf("expected cached family, got %v", err)
	}
	if len(family) != 1 || family[0].ID != "card-1" {
		t.Errorf("unexpected cached family: %+v", family)
	}
}

func TestGetStatement_ConsolidatesFamily(t *testing.T) {
	// Cycle containing 2026-03-01 for closing day 5, due day 15:
	// opening 2026-02-06, closing 2026-03-05, due 2026-03-15.
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")
	store.supplementary["card-1"] = []domain.Account{
		{ID: "card-2", UserID: "user-2", Kind: domain.AccountCard, ParentAccountID: "card-1", Active: true},
	}
	store.transactions = []domain.Transaction{
		{ID: "t-1", Value: 100, Type: domain.TransactionExpense, AccountID: "card-1",
			Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "t-2", Value: 40, Type: domain.TransactionExpense, AccountID: "card-2",
			Date: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)},
		// payment of a previous statement: credit for the card
		{ID: "t-3", Value: 30, Type: domain.TransactionTransfer, AccountID: "checking-1", DestinationID: "card-1",
			Date: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
		// outside the window, must be ignored
		{ID: "t-4", Value: 999, Type: domain.TransactionExpense, AccountID: "card-1",
			Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
	}

	svc := newStatementService(store)

	statement, err := svc.GetStatement(context.Background(), "user-1", "card-1",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if statement.Cycle.Key() != "2026-03-05" {
		t.Errorf("unexpected cycle: %s", statement.Cycle.Key())
	}
	if got := statement.PerCardTotals["card-1"]; got != 70 {
		t.Errorf("expected card-1 subtotal 70 (100 charge - 30 credit), got %.2f", got)
	}
	if got := statement.PerCardTotals["card-2"]; got != 40 {
		t.Errorf("expected card-2 subtotal 40, got %.2f", got)
	}
	if statement.GlobalTotal != 110 {
		t.Errorf("expected global total 110, got %.2f", statement.GlobalTotal)
	}
	if statement.Status == "" {
		t.Error("expected the statement status to be derived")
	}
	for _, txns := range statement.TransactionsByCard {
		for _, txn := range txns {
			if txn.ID == "t-4" {
				t.Error("transaction outside the cycle window leaked into the statement")
			}
		}
	}
}

func TestGetStatement_UnconfiguredDays(t *testing.T) {
	card := principalCard("card-1", "user-1")
	card.ClosingDay = 0
	card.DueDay = 0

	store := newFakeStore()
	store.accounts["card-1"] = card

	svc := newStatementService(store)

	_, err := svc.GetStatement(context.Background(), "user-1", "card-1", time.Now())
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for unconfigured days, got %v", err)
	}
}

func TestGetStatement_StatusMatchesCycle(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")

	svc := newStatementService(store)

	statement, err := svc.GetStatement(context.Background(), "user-1", "card-1", time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if want := statement.Cycle.StatusAt(time.Now()); statement.Status != want {
		t.Errorf("expected status %s, got %s", want, statement.Status)
	}
}

func TestListPendingStatements(t *testing.T) {
	store := newFakeStore()
	store.pending = []domain.PendingStatement{
		{CardID: "card-1", CardName: "Nubank", Amount: 150},
	}

	svc := newStatementService(store)

	pending, err := svc.ListPendingStatements(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pending) != 1 || pending[0].CardID != "card-1" {
		t.Errorf("unexpected pending statements: %+v", pending)
	}

	_, err = svc.ListPendingStatements(context.Background(), "")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for empty user, got %v", err)
	}
}

func TestGetStatement_EmptyCycleHasZeroTotals(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")

	svc := newStatementService(store)

	statement, err := svc.GetStatement(context.Background(), "user-1", "card-1",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if statement.GlobalTotal != 0 {
		t.Errorf("expected zero global total, got %.2f", statement.GlobalTotal)
	}
	if _, ok := statement.PerCardTotals["card-1"]; !ok {
		t.Error("expected an explicit zero subtotal for the principal card")
	}
	if statement.Status != billing.StatusOpen && statement.Status != billing.StatusClosed && statement.Status != billing.StatusOverdue {
		t.Errorf("unexpected status %q", statement.Status)
	}
}
