package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// getSettingsHandler serves GET /v1/users/{userId}/cards/{cardId}/settings.
// A card that was never configured returns defaults, not 404.
func getSettingsHandler(svc *service.AutoPayService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/cards/{cardId}/settings")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		cardID := chi.URLParam(r, "cardId")
		span.SetAttributes(attribute.String("card.id", cardID))

		settings, err := svc.GetSettings(ctx, userID, cardID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}

type updateSettingsRequest struct {
	AutoPayEnabled   bool   `json:"auto_pay_enabled"`
	FundingAccountID string `json:"funding_account_id,omitempty"`
	ReminderEnabled  bool   `json:"reminder_enabled"`
	ReminderLeadDays int    `json:"reminder_lead_days"`
}

// updateSettingsHandler serves PUT /v1/users/{userId}/cards/{cardId}/settings.
func updateSettingsHandler(svc *service.AutoPayService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/cards/{cardId}/settings")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		cardID := chi.URLParam(r, "cardId")
		span.SetAttributes(attribute.String("card.id", cardID))

		var req updateSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		settings := &domain.CardSettings{
			CardID:           cardID,
			UserID:           userID,
			AutoPayEnabled:   req.AutoPayEnabled,
			FundingAccountID: req.FundingAccountID,
			ReminderEnabled:  req.ReminderEnabled,
			ReminderLeadDays: req.ReminderLeadDays,
		}

		if err := svc.UpdateSettings(ctx, userID, settings); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}
