// Package handler — webhook_handler.go implementa a rota
// POST /v1/bot/webhook, a entrada de updates do Telegram.
//
// O Telegram reenvia updates que não recebem 200, então o handler
// SEMPRE responde 200 depois de conseguir decodificar o body: um erro
// de negócio já virou mensagem no chat dentro do BotService, e um erro
// de infraestrutura não melhora sendo reentregue em loop pelo
// Telegram.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dmoreira/financas-familia-go/internal/bot/domain"
	"github.com/dmoreira/financas-familia-go/internal/bot/service"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("bot/handler")

// WebhookHandler retorna o http.HandlerFunc da rota POST /v1/bot/webhook.
func WebhookHandler(bot *service.BotService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bot/webhook")
		defer span.End()

		var update domain.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			logger.Warn("bad webhook payload", zap.Error(err))
			http.Error(w, "invalid update payload", http.StatusBadRequest)
			return
		}

		if err := bot.HandleUpdate(ctx, &update); err != nil {
			// Loga e engole: sem retry do Telegram.
			logger.Error("webhook update failed",
				zap.Int64("update_id", update.UpdateID),
				zap.Error(err),
			)
		}

		w.WriteHeader(http.StatusOK)
	}
}
