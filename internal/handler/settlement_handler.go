package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmoreira/financas-familia-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type settleRequest struct {
	// FundingAccountID overrides the configured funding account.
	// Empty means use the card's settings.
	FundingAccountID string `json:"funding_account_id,omitempty"`

	// Amount pays part of the invoice. Nil means pay it in full.
	Amount *float64 `json:"amount,omitempty"`
}

// settleHandler serves POST /v1/users/{userId}/cards/{cardId}/settle.
//
// A card with nothing outstanding returns 200 with already_settled
// set, not an error: the client may be acting on a stale view and
// the end state it wanted is already true.
func settleHandler(svc *service.SettlementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/cards/{cardId}/settle")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		cardID := chi.URLParam(r, "cardId")
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("card.id", cardID),
		)

		var req settleRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		if req.Amount != nil && *req.Amount <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be positive")
			return
		}

		result, err := svc.SettleInvoice(ctx, userID, cardID, req.FundingAccountID, req.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
