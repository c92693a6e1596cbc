package handler

import (
	"net/http"
	"time"

	"github.com/dmoreira/financas-familia-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// getStatementHandler serves GET /v1/users/{userId}/cards/{cardId}/statement.
//
// The optional ?month=YYYY-MM query anchors the cycle on the first
// day of that month: the closing date lands in that month, except
// when the due day precedes the closing day, where the due date does
// and the closing falls in the month before. Without it the current
// cycle is returned. Requests for a supplementary card are rejected
// with 400: statements belong to the principal card.
func getStatementHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/cards/{cardId}/statement")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		cardID := chi.URLParam(r, "cardId")
		span.SetAttributes(
			attribute.String("user.id", userID),
			attribute.String("card.id", cardID),
		)

		ref := time.Now()
		if month := r.URL.Query().Get("month"); month != "" {
			parsed, err := time.Parse("2006-01", month)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid month: expected YYYY-MM")
				return
			}
			ref = parsed
		}

		statement, err := svc.GetStatement(ctx, userID, cardID, ref)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, statement)
	}
}

// listPendingHandler serves GET /v1/users/{userId}/statements/pending.
func listPendingHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/statements/pending")
		defer span.End()

		userID := chi.URLParam(r, "userId")
		span.SetAttributes(attribute.String("user.id", userID))

		pending, err := svc.ListPendingStatements(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"statements": pending,
			"count":      len(pending),
		})
	}
}
