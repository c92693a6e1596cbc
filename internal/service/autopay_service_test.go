package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/service"

	"go.uber.org/zap"
)

func newAutoPayService(store *fakeStore, notifier *fakeNotifier) *service.AutoPayService {
	settlements := service.NewSettlementService(store, observability.NewMetrics(), zap.NewNop())
	return service.NewAutoPayService(store, settlements, notifier, 4, observability.NewMetrics(), zap.NewNop())
}

func TestGetSettings_DefaultsWhenUnconfigured(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")

	svc := newAutoPayService(store, newFakeNotifier())

	settings, err := svc.GetSettings(context.Background(), "user-1", "card-1")
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if settings.AutoPayEnabled {
		t.Error("auto-pay must default to off")
	}
	if settings.ReminderLeadDays != 3 {
		t.Errorf("expected default lead of 3 days, got %d", settings.ReminderLeadDays)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")
	store.accounts["card-2"] = principalCard("card-2", "user-1")
	store.accounts["checking-1"] = &domain.Account{
		ID: "checking-1", UserID: "user-1", Kind: domain.AccountChecking, Active: true,
	}
	store.accounts["checking-closed"] = &domain.Account{
		ID: "checking-closed", UserID: "user-1", Kind: domain.AccountChecking, Active: false,
	}

	svc := newAutoPayService(store, newFakeNotifier())

	tests := []struct {
		name     string
		settings domain.CardSettings
	}{
		{"autopay without funding", domain.CardSettings{CardID: "card-1", AutoPayEnabled: true}},
		{"card as funding", domain.CardSettings{CardID: "card-1", AutoPayEnabled: true, FundingAccountID: "card-2"}},
		{"inactive funding", domain.CardSettings{CardID: "card-1", AutoPayEnabled: true, FundingAccountID: "checking-closed"}},
		{"negative lead days", domain.CardSettings{CardID: "card-1", ReminderLeadDays: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateSettings(context.Background(), "user-1", &tt.settings)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestSetAutoPay_TogglesWithoutSettling(t *testing.T) {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1")
	store.accounts["checking-1"] = &domain.Account{
		ID: "checking-1", UserID: "user-1", Kind: domain.AccountChecking, Active: true,
	}
	store.settings["card-1"] = &domain.CardSettings{
		CardID: "card-1", UserID: "user-1", FundingAccountID: "checking-1",
	}

	svc := newAutoPayService(store, newFakeNotifier())

	settings, err := svc.SetAutoPay(context.Background(), "user-1", "card-1", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !settings.AutoPayEnabled {
		t.Error("expected auto-pay on")
	}
	if store.settleCalls != 0 {
		t.Error("toggling auto-pay must never settle anything")
	}

	settings, err = svc.SetAutoPay(context.Background(), "user-1", "card-1", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if settings.AutoPayEnabled {
		t.Error("expected auto-pay off")
	}
	if settings.FundingAccountID != "checking-1" {
		t.Error("toggling must keep the rest of the policy")
	}
}

// scheduledFixture wires one card due on 2026-03-15 with auto-pay on.
func scheduledFixture() *fakeStore {
	store := newFakeStore()
	store.accounts["card-1"] = principalCard("card-1", "user-1") // closing 5, due 15
	store.accounts["checking-1"] = &domain.Account{
		ID: "checking-1", UserID: "user-1", Kind: domain.AccountChecking, Balance: 500, Active: true,
	}
	store.configured = []domain.CardSettings{
		{CardID: "card-1", UserID: "user-1", AutoPayEnabled: true, FundingAccountID: "checking-1"},
	}
	store.settleResult = &domain.SettlementResult{Paid: true, AmountPaid: 150, FundingBalance: 350}
	return store
}

func TestRunScheduled_SettlesOnDueDate(t *testing.T) {
	store := scheduledFixture()
	notifier := newFakeNotifier()
	svc := newAutoPayService(store, notifier)

	due := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	if err := svc.RunScheduled(context.Background(), due); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if store.settleCalls != 1 {
		t.Fatalf("expected one settlement, got %d", store.settleCalls)
	}
	if got := store.outcomes[claimKey("card-1", "2026-03-05", domain.LogKindAutoPay)]; got != domain.LogOutcomeSuccess {
		t.Errorf("expected success outcome in the processing log, got %q", got)
	}
	if msgs := notifier.sent("user-1"); len(msgs) != 1 {
		t.Errorf("expected one notification, got %d", len(msgs))
	}
}

func TestRunScheduled_SkipsOffDueDate(t *testing.T) {
	store := scheduledFixture()
	svc := newAutoPayService(store, newFakeNotifier())

	notDue := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if err := svc.RunScheduled(context.Background(), notDue); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.settleCalls != 0 {
		t.Errorf("nothing is due, expected no settlements, got %d", store.settleCalls)
	}
}

func TestRunScheduled_DuplicateClaimIsSkipped(t *testing.T) {
	store := scheduledFixture()
	store.claims[claimKey("card-1", "2026-03-05", domain.LogKindAutoPay)] = true

	svc := newAutoPayService(store, newFakeNotifier())

	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if err := svc.RunScheduled(context.Background(), due); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.settleCalls != 0 {
		t.Errorf("a claimed cycle must not settle again, got %d calls", store.settleCalls)
	}
}

func TestRunScheduled_TwoTicksSettleOnce(t *testing.T) {
	store := scheduledFixture()
	svc := newAutoPayService(store, newFakeNotifier())

	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if err := svc.RunScheduled(context.Background(), due); err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
	}
	if store.settleCalls != 1 {
		t.Errorf("repeated ticks on the due date must settle once, got %d", store.settleCalls)
	}
}

func TestRunScheduled_InsufficientFundsNotifies(t *testing.T) {
	store := scheduledFixture()
	store.settleErr = &domain.ErrInsufficientFunds{Available: 100, Required: 150}
	notifier := newFakeNotifier()

	svc := newAutoPayService(store, notifier)

	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if err := svc.RunScheduled(context.Background(), due); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := store.outcomes[claimKey("card-1", "2026-03-05", domain.LogKindAutoPay)]; got != domain.LogOutcomeFailed {
		t.Errorf("expected failed outcome, got %q", got)
	}
	msgs := notifier.sent("user-1")
	if len(msgs) != 1 {
		t.Fatalf("expected one failure notification, got %d", len(msgs))
	}
}

func TestRunScheduled_ReminderLeadDays(t *testing.T) {
	store := scheduledFixture()
	store.configured = []domain.CardSettings{
		{CardID: "card-1", UserID: "user-1", ReminderEnabled: true, ReminderLeadDays: 3},
	}
	notifier := newFakeNotifier()

	svc := newAutoPayService(store, notifier)

	// Due 2026-03-15, lead 3 days: reminder fires on the 12th.
	lead := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	if err := svc.RunScheduled(context.Background(), lead); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(notifier.sent("user-1")) != 1 {
		t.Fatal("expected one reminder")
	}
	if store.settleCalls != 0 {
		t.Error("a reminder must never settle")
	}

	// A second tick the same day must not remind again.
	if err := svc.RunScheduled(context.Background(), lead); err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if len(notifier.sent("user-1")) != 1 {
		t.Error("reminder must fire at most once per cycle")
	}
}

func TestRunScheduled_SkipsUnconfiguredAndInactive(t *testing.T) {
	inactive := principalCard("card-2", "user-1")
	inactive.Active = false

	store := scheduledFixture()
	store.accounts["card-2"] = inactive
	store.configured = append(store.configured,
		domain.CardSettings{CardID: "card-2", UserID: "user-1", AutoPayEnabled: true, FundingAccountID: "checking-1"},
		domain.CardSettings{CardID: "card-gone", UserID: "user-1", AutoPayEnabled: true, FundingAccountID: "checking-1"},
		domain.CardSettings{CardID: "card-1", UserID: "user-1"}, // both toggles off
	)

	svc := newAutoPayService(store, newFakeNotifier())

	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if err := svc.RunScheduled(context.Background(), due); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Only the original card-1 row (autopay on) settles.
	if store.settleCalls != 1 {
		t.Errorf("expected one settlement, got %d", store.settleCalls)
	}
}
