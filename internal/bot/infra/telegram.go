// Package infra — telegram.go implementa o Messenger concreto que
// fala com a Bot API do Telegram.
//
// Só os dois métodos que o bot usa estão implementados:
//
//	sendMessage     → texto + inline keyboard
//	answerCallbackQuery → confirma o clique (para o spinner sumir)
//
// O client usa circuit breaker + retry: sendMessage é idempotente o
// suficiente para retry (o pior caso é uma mensagem duplicada no chat,
// nunca um pagamento duplicado — pagamentos são protegidos no store).
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	botdomain "github.com/dmoreira/financas-familia-go/internal/bot/domain"
	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("bot/infra")

// TelegramClient envia mensagens pela Bot API do Telegram.
type TelegramClient struct {
	httpClient *http.Client
	baseURL    string // ex: https://api.telegram.org
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewTelegramClient cria o client da Bot API.
// O bulkhead limita o fan-out do scheduler: notificações em lote não
// podem afogar a API do Telegram.
func NewTelegramClient(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *TelegramClient {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &TelegramClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(maxConcurrency),
		logger:     logger,
	}
}

// ============================================================
// Payloads da Bot API
// ============================================================

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessagePayload struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackPayload struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// ============================================================
// Messenger
// ============================================================

// SendMessage envia texto + botões inline para o chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, reply *botdomain.Reply) error {
	ctx, span := tracer.Start(ctx, "TelegramClient.SendMessage")
	defer span.End()

	payload := sendMessagePayload{
		ChatID: chatID,
		Text:   reply.Text,
	}
	if len(reply.Buttons) > 0 {
		markup := &replyMarkup{}
		for _, row := range reply.Buttons {
			var line []inlineButton
			for _, b := range row {
				line = append(line, inlineButton{Text: b.Label, CallbackData: b.Data})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, line)
		}
		payload.ReplyMarkup = markup
	}

	return c.call(ctx, "sendMessage", payload)
}

// AnswerCallback confirma o clique de um botão.
func (c *TelegramClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	ctx, span := tracer.Start(ctx, "TelegramClient.AnswerCallback")
	defer span.End()

	return c.call(ctx, "answerCallbackQuery", answerCallbackPayload{
		CallbackQueryID: callbackID,
		Text:            text,
	})
}

// call faz o POST para /bot<token>/<method> com breaker + retry,
// passando antes pelo bulkhead.
func (c *TelegramClient) call(ctx context.Context, method string, payload any) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("marshal %s payload: %w", method, err)
			}

			url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("create %s request: %w", method, err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("telegram %s: %w", method, err)
			}
			defer resp.Body.Close()

			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

			var api apiResponse
			if err := json.Unmarshal(raw, &api); err != nil {
				return fmt.Errorf("telegram %s returned status %d: %w", method, resp.StatusCode, err)
			}
			if !api.OK {
				return fmt.Errorf("telegram %s failed: %s", method, api.Description)
			}
			return nil
		})
		return nil, innerErr
	})

	if err != nil {
		c.logger.Error("telegram call failed",
			zap.String("method", method),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "telegram", Err: err}
	}
	return nil
}
