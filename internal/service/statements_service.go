// Package service provides the business logic layer: card statement
// consolidation, ledger settlement and the auto-pay policy.
package service

import (
	"context"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/billing"
	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/cache"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var stmtTracer = otel.Tracer("service/statements")

// StatementService resolves card families and consolidates their
// statements. All aggregates are derived per request; only the family
// structure (which changes rarely and carries no balances) is cached.
type StatementService struct {
	store       port.FinanceStore
	familyCache *cache.InMemory[[]domain.Account]
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewStatementService creates a new statement service.
func NewStatementService(store port.FinanceStore, familyCache *cache.InMemory[[]domain.Account], metrics *observability.Metrics, logger *zap.Logger) *StatementService {
	return &StatementService{store: store, familyCache: familyCache, metrics: metrics, logger: logger}
}

// ResolveCardFamily returns the principal card followed by its active
// supplementary cards. The principal is always included, even with no
// supplementary cards linked.
func (s *StatementService) ResolveCardFamily(ctx context.Context, userID, cardID string) ([]domain.Account, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.ResolveCardFamily")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	if cardID == "" {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "required"}
	}

	if family, ok := s.familyCache.Get(cardID); ok {
		s.metrics.IncrCacheHit("card_family")
		return family, nil
	}
	s.metrics.IncrCacheMiss("card_family")

	principal, err := s.store.GetAccount(ctx, userID, cardID)
	if err != nil {
		recordExternalError(s.metrics, err)
		return nil, err
	}
	if !principal.Active {
		return nil, &domain.ErrNotFound{Resource: "card", ID: cardID}
	}
	if !principal.IsCard() {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "account is not a credit card"}
	}
	if principal.ParentAccountID != "" {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "supplementary card: statements belong to the principal card"}
	}

	linked, err := s.store.ListSupplementaryCards(ctx, cardID)
	if err != nil {
		recordExternalError(s.metrics, err)
		return nil, err
	}

	family := make([]domain.Account, 0, len(linked)+1)
	family = append(family, *principal)
	for _, c := range linked {
		if c.Active && c.IsCard() {
			family = append(family, c)
		}
	}

	s.familyCache.Set(cardID, family)
	return family, nil
}

// GetStatement consolidates the statement of the cycle the reference
// date falls into, for the whole card family, and derives its status
// against today.
func (s *StatementService) GetStatement(ctx context.Context, userID, cardID string, ref time.Time) (*billing.Statement, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.GetStatement")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("get_statement", time.Since(start)) }()

	family, err := s.ResolveCardFamily(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}

	principal := family[0]
	if principal.ClosingDay == 0 || principal.DueDay == 0 {
		return nil, &domain.ErrValidation{Field: "cardId", Message: "card has no closing/due day configured"}
	}

	cycle, err := billing.CycleFor(principal.ClosingDay, principal.DueDay, ref)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(family))
	for i, a := range family {
		ids[i] = a.ID
	}

	txns, err := s.store.ListFamilyTransactions(ctx, ids, cycle.Opening, cycle.Closing)
	if err != nil {
		recordExternalError(s.metrics, err)
		return nil, err
	}

	statement := billing.Consolidate(family, cycle, txns)
	statement.Status = cycle.StatusAt(time.Now())

	s.logger.Debug("statement consolidated",
		zap.String("card_id", cardID),
		zap.String("cycle", cycle.Key()),
		zap.Int("family_size", len(family)),
		zap.Float64("global_total", statement.GlobalTotal),
	)

	return statement, nil
}

// ListPendingStatements returns every payable statement of the user,
// one row per principal card, via the store procedure.
func (s *StatementService) ListPendingStatements(ctx context.Context, userID string) ([]domain.PendingStatement, error) {
	ctx, span := stmtTracer.Start(ctx, "StatementService.ListPendingStatements")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "required"}
	}

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("pending_statements", time.Since(start)) }()

	pending, err := s.store.GetPendingStatements(ctx, userID)
	if err != nil {
		recordExternalError(s.metrics, err)
		return nil, err
	}
	return pending, nil
}
