package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/billing"
	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var autoTracer = otel.Tracer("service/autopay")

// AutoPayService owns the per-card automation policy and the
// scheduled run that executes it: unattended settlement on the due
// date and due-date reminders.
type AutoPayService struct {
	store          port.FinanceStore
	settlements    *SettlementService
	notifier       port.Notifier
	metrics        *observability.Metrics
	logger         *zap.Logger
	maxConcurrency int
}

// NewAutoPayService creates a new auto-pay service.
func NewAutoPayService(store port.FinanceStore, settlements *SettlementService, notifier port.Notifier, maxConcurrency int, metrics *observability.Metrics, logger *zap.Logger) *AutoPayService {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &AutoPayService{
		store:          store,
		settlements:    settlements,
		notifier:       notifier,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// GetSettings returns the card's automation policy, or the defaults
// when the card was never configured. Settings rows are created
// lazily on the first update, never here.
func (s *AutoPayService) GetSettings(ctx context.Context, userID, cardID string) (*domain.CardSettings, error) {
	ctx, span := autoTracer.Start(ctx, "AutoPayService.GetSettings")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	card, err := s.requirePrincipalCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetCardSettings(ctx, cardID)
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return &domain.CardSettings{CardID: cardID, UserID: card.UserID, ReminderLeadDays: 3}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings persists the card's automation policy. Changing
// autoPayEnabled never settles anything as a side effect; it only
// changes what future scheduled runs do.
func (s *AutoPayService) UpdateSettings(ctx context.Context, userID string, settings *domain.CardSettings) error {
	ctx, span := autoTracer.Start(ctx, "AutoPayService.UpdateSettings")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", settings.CardID))

	card, err := s.requirePrincipalCard(ctx, userID, settings.CardID)
	if err != nil {
		return err
	}
	settings.UserID = card.UserID

	if settings.ReminderLeadDays < 0 {
		return &domain.ErrValidation{Field: "reminderLeadDays", Message: "must not be negative"}
	}
	if settings.AutoPayEnabled && settings.FundingAccountID == "" {
		return &domain.ErrValidation{Field: "fundingAccountId", Message: "required when auto-pay is enabled"}
	}
	if settings.FundingAccountID != "" {
		funding, err := s.store.GetAccount(ctx, userID, settings.FundingAccountID)
		if err != nil {
			return err
		}
		if funding.IsCard() {
			return &domain.ErrValidation{Field: "fundingAccountId", Message: "funding account cannot be a credit card"}
		}
		if !funding.Active {
			return &domain.ErrValidation{Field: "fundingAccountId", Message: "funding account is inactive"}
		}
	}

	if err := s.store.UpsertCardSettings(ctx, settings); err != nil {
		return err
	}

	s.logger.Info("card settings updated",
		zap.String("card_id", settings.CardID),
		zap.Bool("auto_pay", settings.AutoPayEnabled),
		zap.Bool("reminder", settings.ReminderEnabled),
	)
	return nil
}

// SetAutoPay toggles unattended settlement for a card, keeping the
// rest of the policy unchanged.
func (s *AutoPayService) SetAutoPay(ctx context.Context, userID, cardID string, enabled bool) (*domain.CardSettings, error) {
	settings, err := s.GetSettings(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	settings.AutoPayEnabled = enabled
	if err := s.UpdateSettings(ctx, userID, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// RunScheduled executes one automation tick for every configured
// card: settles statements due today for cards with auto-pay on, and
// sends reminders coming due in reminderLeadDays. Each (card, cycle)
// is claimed in the processing log first, so overlapping ticks and
// concurrent replicas reduce to at-most-once per cycle.
func (s *AutoPayService) RunScheduled(ctx context.Context, today time.Time) error {
	ctx, span := autoTracer.Start(ctx, "AutoPayService.RunScheduled")
	defer span.End()

	today = billing.DateOnly(today)
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("autopay_run", time.Since(start)) }()

	configured, err := s.store.ListConfiguredCards(ctx)
	if err != nil {
		s.logger.Error("autopay: failed to list configured cards", zap.Error(err))
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for _, settings := range configured {
		settings := settings
		g.Go(func() error {
			// one card failing must not abort the whole run
			s.processCard(ctx, settings, today)
			return nil
		})
	}
	return g.Wait()
}

func (s *AutoPayService) processCard(ctx context.Context, settings domain.CardSettings, today time.Time) {
	if !settings.AutoPayEnabled && !settings.ReminderEnabled {
		return
	}

	card, err := s.store.GetAccount(ctx, "", settings.CardID)
	if err != nil {
		s.logger.Warn("autopay: card lookup failed", zap.String("card_id", settings.CardID), zap.Error(err))
		return
	}
	if !card.Active || !card.IsPrincipalCard() || card.ClosingDay == 0 || card.DueDay == 0 {
		return
	}

	current, err := billing.CycleFor(card.ClosingDay, card.DueDay, today)
	if err != nil {
		s.logger.Warn("autopay: invalid cycle configuration", zap.String("card_id", card.ID), zap.Error(err))
		return
	}
	cycles := []billing.Cycle{current}
	if next, err := current.Next(card.ClosingDay, card.DueDay); err == nil {
		// reminders can look into the next cycle when the lead time
		// crosses the closing boundary
		cycles = append(cycles, next)
	}

	for _, cycle := range cycles {
		if settings.AutoPayEnabled && cycle.Due.Equal(today) {
			s.settleCycle(ctx, settings, card, cycle)
		}
		if settings.ReminderEnabled && settings.ReminderLeadDays > 0 &&
			cycle.Due.AddDate(0, 0, -settings.ReminderLeadDays).Equal(today) {
			s.remindCycle(ctx, settings, card, cycle)
		}
	}
}

func (s *AutoPayService) settleCycle(ctx context.Context, settings domain.CardSettings, card *domain.Account, cycle billing.Cycle) {
	err := s.store.ClaimCycle(ctx, card.ID, cycle.Key(), domain.LogKindAutoPay)
	var duplicate *domain.ErrDuplicate
	if errors.As(err, &duplicate) {
		s.metrics.IncrAutoPay("skipped")
		s.logger.Debug("autopay: cycle already claimed",
			zap.String("card_id", card.ID),
			zap.String("cycle", cycle.Key()),
		)
		return
	}
	if err != nil {
		s.metrics.IncrAutoPay("error")
		recordExternalError(s.metrics, err)
		s.logger.Error("autopay: claim failed", zap.String("card_id", card.ID), zap.Error(err))
		return
	}

	result, err := s.settlements.SettleInvoice(ctx, settings.UserID, card.ID, settings.FundingAccountID, nil)
	if err != nil {
		var insufficient *domain.ErrInsufficientFunds
		if errors.As(err, &insufficient) {
			s.metrics.IncrAutoPay("insufficient_funds")
			s.markOutcome(ctx, card.ID, cycle.Key(), domain.LogKindAutoPay, domain.LogOutcomeFailed, err.Error())
			s.notify(ctx, settings.UserID, fmt.Sprintf(
				"⚠️ Não consegui pagar a fatura do cartão %s: faltam R$ %.2f na conta de pagamento (necessário R$ %.2f, disponível R$ %.2f).",
				card.Name, insufficient.Shortfall(), insufficient.Required, insufficient.Available,
			))
			return
		}
		s.metrics.IncrAutoPay("error")
		s.markOutcome(ctx, card.ID, cycle.Key(), domain.LogKindAutoPay, domain.LogOutcomeFailed, err.Error())
		s.logger.Error("autopay: settlement failed", zap.String("card_id", card.ID), zap.Error(err))
		return
	}

	s.markOutcome(ctx, card.ID, cycle.Key(), domain.LogKindAutoPay, domain.LogOutcomeSuccess, "")
	if result.AlreadySettled {
		s.metrics.IncrAutoPay("skipped")
		return
	}

	s.metrics.IncrAutoPay("success")
	s.logger.Info("autopay: statement settled",
		zap.String("card_id", card.ID),
		zap.String("cycle", cycle.Key()),
		zap.Float64("amount", result.AmountPaid),
	)
	s.notify(ctx, settings.UserID, fmt.Sprintf(
		"✅ Fatura do cartão %s paga automaticamente: R$ %.2f.",
		card.Name, result.AmountPaid,
	))
}

func (s *AutoPayService) remindCycle(ctx context.Context, settings domain.CardSettings, card *domain.Account, cycle billing.Cycle) {
	err := s.store.ClaimCycle(ctx, card.ID, cycle.Key(), domain.LogKindReminder)
	var duplicate *domain.ErrDuplicate
	if errors.As(err, &duplicate) {
		return
	}
	if err != nil {
		s.logger.Warn("autopay: reminder claim failed", zap.String("card_id", card.ID), zap.Error(err))
		return
	}
	s.markOutcome(ctx, card.ID, cycle.Key(), domain.LogKindReminder, domain.LogOutcomeSuccess, "")

	s.metrics.IncrAutoPay("reminder")
	s.notify(ctx, settings.UserID, fmt.Sprintf(
		"🔔 A fatura do cartão %s (R$ %.2f) vence em %s.",
		card.Name, card.Outstanding(), cycle.Due.Format("02/01/2006"),
	))
}

func (s *AutoPayService) markOutcome(ctx context.Context, cardID, cycleKey, kind, outcome, detail string) {
	if err := s.store.MarkCycleOutcome(ctx, cardID, cycleKey, kind, outcome, detail); err != nil {
		s.logger.Warn("autopay: failed to record outcome",
			zap.String("card_id", cardID),
			zap.String("cycle", cycleKey),
			zap.Error(err),
		)
	}
}

func (s *AutoPayService) notify(ctx context.Context, userID, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyUser(ctx, userID, message); err != nil {
		recordExternalError(s.metrics, err)
		s.logger.Warn("autopay: notification failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *AutoPayService) requirePrincipalCard(ctx context.Context, userID, cardID string) (*domain.Account, error) {
	if cardID == "" {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "required"}
	}
	card, err := s.store.GetAccount(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if !card.IsPrincipalCard() {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "automation settings belong to principal cards"}
	}
	return card, nil
}
