package service

import (
	"context"
	"errors"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var settleTracer = otel.Tracer("service/settlement")

// SettlementService pays down card statements from a funding account.
// The money movement itself runs inside the backing store's settle
// procedure, in a single transaction; this service validates input,
// resolves the funding account and maps the outcome.
type SettlementService struct {
	store   port.FinanceStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSettlementService creates a new settlement service.
func NewSettlementService(store port.FinanceStore, metrics *observability.Metrics, logger *zap.Logger) *SettlementService {
	return &SettlementService{store: store, metrics: metrics, logger: logger}
}

// SettleInvoice pays the card's statement from the funding account.
// amount nil means the full outstanding balance. An empty
// fundingAccountID falls back to the card's configured funding
// account.
//
// A card with no outstanding balance yields an AlreadySettled result,
// not an error: stale pay actions (a button pressed after the
// statement was settled elsewhere) must never double-pay and never
// read as failures to the user.
func (s *SettlementService) SettleInvoice(ctx context.Context, userID, cardID, fundingAccountID string, amount *float64) (*domain.SettlementResult, error) {
	ctx, span := settleTracer.Start(ctx, "SettlementService.SettleInvoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("card.id", cardID),
		attribute.String("user.id", userID),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("settle_invoice", time.Since(start)) }()

	if cardID == "" {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "required"}
	}
	if amount != nil && *amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	card, err := s.store.GetAccount(ctx, userID, cardID)
	if err != nil {
		recordExternalError(s.metrics, err)
		return nil, err
	}
	if !card.IsCard() {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "account is not a credit card"}
	}
	if card.ParentAccountID != "" {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "statements are settled on the principal card"}
	}

	// Re-validate against current state before touching the ledger:
	// a zero balance means someone else already settled this cycle.
	if card.Outstanding() <= 0 {
		s.metrics.IncrSettlement("already_settled")
		s.logger.Info("settlement skipped, nothing outstanding",
			zap.String("card_id", cardID),
			zap.Float64("card_balance", card.Balance),
		)
		return &domain.SettlementResult{AlreadySettled: true, CardBalance: card.Balance}, nil
	}

	if fundingAccountID == "" {
		settings, err := s.store.GetCardSettings(ctx, cardID)
		var notFound *domain.ErrNotFound
		switch {
		case err == nil && settings.FundingAccountID != "":
			fundingAccountID = settings.FundingAccountID
		case err == nil, errors.As(err, &notFound):
			return nil, &domain.ErrValidation{Field: "fundingAccountId", Message: "no funding account configured for this card"}
		default:
			return nil, err
		}
	}

	req := &domain.SettlementRequest{
		UserID:           card.UserID,
		CardID:           cardID,
		FundingAccountID: fundingAccountID,
		Amount:           amount,
		IdempotencyKey:   uuid.New().String(),
	}

	result, err := s.store.SettleInvoice(ctx, req)
	if err != nil {
		var stale *domain.ErrStaleAction
		if errors.As(err, &stale) {
			// The store re-checks inside the transaction; losing that
			// race is still a clean no-op.
			s.metrics.IncrSettlement("already_settled")
			return &domain.SettlementResult{AlreadySettled: true}, nil
		}

		var insufficient *domain.ErrInsufficientFunds
		if errors.As(err, &insufficient) {
			s.metrics.IncrSettlement("insufficient_funds")
			s.logger.Warn("settlement aborted, insufficient funds",
				zap.String("card_id", cardID),
				zap.String("funding_account_id", fundingAccountID),
				zap.Float64("required", insufficient.Required),
				zap.Float64("available", insufficient.Available),
				zap.Float64("shortfall", insufficient.Shortfall()),
			)
			return nil, err
		}

		s.metrics.IncrSettlement("error")
		recordExternalError(s.metrics, err)
		s.logger.Error("settlement failed",
			zap.String("card_id", cardID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrSettlement("success")
	s.logger.Info("statement settled",
		zap.String("card_id", cardID),
		zap.String("funding_account_id", fundingAccountID),
		zap.String("transfer_id", result.TransferID),
		zap.Float64("amount_paid", result.AmountPaid),
		zap.Float64("funding_balance", result.FundingBalance),
		zap.Float64("card_balance", result.CardBalance),
	)

	return result, nil
}

// recordExternalError bumps the per-upstream error counter when the
// failure came from an external dependency.
func recordExternalError(metrics *observability.Metrics, err error) {
	var external *domain.ErrExternalService
	if errors.As(err, &external) {
		metrics.IncrExternalError(external.Service)
	}
}
