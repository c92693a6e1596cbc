// Package service — bot_service.go implementa o BotService, o cérebro
// do fluxo conversacional de faturas no Telegram.
//
// O fluxo completo:
//  1. Telegram entrega um update no webhook (POST /v1/bot/webhook)
//  2. BotService resolve o chat → usuário (tabela chat_links)
//  3. Comando de texto → monta a resposta (lista, botões de pagamento,
//     configuração por cartão)
//  4. Clique em botão → decodifica o token e executa a ação
//     (pagar fatura, ligar/desligar autopay)
//  5. Resposta volta pelo Messenger (sendMessage do Telegram)
//
// O fluxo é stateless: nenhuma conversa guarda estado no servidor.
// Cada clique carrega no token tudo que é preciso para agir, e o
// serviço de liquidação revalida o saldo devedor na hora do clique —
// um botão "velho" de uma fatura já paga vira um aviso, nunca um
// pagamento em dobro.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	botdomain "github.com/dmoreira/financas-familia-go/internal/bot/domain"
	botport "github.com/dmoreira/financas-familia-go/internal/bot/port"
	"github.com/dmoreira/financas-familia-go/internal/domain"
	"github.com/dmoreira/financas-familia-go/internal/infra/observability"
	"github.com/dmoreira/financas-familia-go/internal/port"
	"github.com/dmoreira/financas-familia-go/internal/service"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var botTracer = otel.Tracer("bot/service")

// BotService trata updates do Telegram e orquestra os serviços de
// fatura, liquidação e automação.
type BotService struct {
	store       port.FinanceStore
	statements  *service.StatementService
	settlements *service.SettlementService
	autopay     *service.AutoPayService
	messenger   botport.Messenger
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewBotService cria o BotService com as dependências injetadas.
func NewBotService(
	store port.FinanceStore,
	statements *service.StatementService,
	settlements *service.SettlementService,
	autopay *service.AutoPayService,
	messenger botport.Messenger,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BotService {
	return &BotService{
		store:       store,
		statements:  statements,
		settlements: settlements,
		autopay:     autopay,
		messenger:   messenger,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleUpdate é o ponto de entrada para todo update do webhook.
// Erros de negócio viram mensagens pt-BR no chat; só erros de
// infraestrutura sobem para o handler.
func (s *BotService) HandleUpdate(ctx context.Context, update *botdomain.Update) error {
	ctx, span := botTracer.Start(ctx, "BotService.HandleUpdate")
	defer span.End()

	switch {
	case update.CallbackQuery != nil:
		s.metrics.IncrBotUpdate("callback")
		return s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		s.metrics.IncrBotUpdate("command")
		return s.handleMessage(ctx, update.Message)
	default:
		// Updates que não interessam (edições, stickers, etc.)
		s.metrics.IncrBotUpdate("ignored")
		return nil
	}
}

// ============================================================
// Comandos de texto
// ============================================================

func (s *BotService) handleMessage(ctx context.Context, msg *botdomain.Message) error {
	chatID := msg.Chat.ID

	userID, err := s.store.ResolveChatUser(ctx, chatID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: "Não reconheço este chat. Vincule sua conta no aplicativo para usar o bot.",
			})
		}
		return err
	}

	// Texto só com espaços passa pelo filtro Text != "" do HandleUpdate
	// e deixaria Fields vazio.
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Comando não reconhecido. Use /faturas, /pagar ou /config_cartao.",
		})
	}
	command := fields[0]

	s.logger.Info("bot command",
		zap.Int64("chat_id", chatID),
		zap.String("command", command),
	)

	switch command {
	case botdomain.CmdStatements:
		return s.replyStatements(ctx, chatID, userID)
	case botdomain.CmdPay:
		return s.replyPayMenu(ctx, chatID, userID)
	case botdomain.CmdConfigCard:
		return s.replyCardList(ctx, chatID, userID)
	default:
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Comando não reconhecido. Use /faturas, /pagar ou /config_cartao.",
		})
	}
}

// replyStatements responde ao /faturas: um resumo somente leitura das
// faturas pendentes, sem botões.
func (s *BotService) replyStatements(ctx context.Context, chatID int64, userID string) error {
	pending, err := s.statements.ListPendingStatements(ctx, userID)
	if err != nil {
		return s.replyStoreFailure(ctx, chatID, err)
	}

	if len(pending) == 0 {
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "🎉 Nenhuma fatura pendente no momento.",
		})
	}

	var b strings.Builder
	b.WriteString("📋 Faturas pendentes:\n")
	for _, p := range pending {
		fmt.Fprintf(&b, "\n💳 %s: R$ %.2f, vence em %s (%d dias)",
			p.CardName, p.Amount, p.DueDate.Format("02/01/2006"), p.DaysUntilDue)
		if p.AutoPayEnabled {
			b.WriteString("\n   ✅ pagamento automático ligado")
		}
		if p.FundingAccountName != "" && !p.FundingCovers {
			fmt.Fprintf(&b, "\n   ⚠️ saldo em %s não cobre a fatura", p.FundingAccountName)
		}
	}

	return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{Text: b.String()})
}

// replyPayMenu responde ao /pagar: um botão por fatura pendente mais
// o botão de cancelar.
func (s *BotService) replyPayMenu(ctx context.Context, chatID int64, userID string) error {
	pending, err := s.statements.ListPendingStatements(ctx, userID)
	if err != nil {
		return s.replyStoreFailure(ctx, chatID, err)
	}

	if len(pending) == 0 {
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "🎉 Nenhuma fatura pendente para pagar.",
		})
	}

	var rows [][]botdomain.Button
	for _, p := range pending {
		token := botdomain.Callback{Action: botdomain.ActionPay, CardID: p.CardID}.Token()
		rows = append(rows, []botdomain.Button{{
			Label: fmt.Sprintf("💳 %s — R$ %.2f", p.CardName, p.Amount),
			Data:  token,
		}})
	}
	rows = append(rows, []botdomain.Button{{
		Label: "Cancelar",
		Data:  botdomain.Callback{Action: botdomain.ActionPayCancel}.Token(),
	}})

	return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
		Text:    "Qual fatura você quer pagar?",
		Buttons: rows,
	})
}

// replyCardList responde ao /config_cartao: um botão por cartão
// principal ativo.
func (s *BotService) replyCardList(ctx context.Context, chatID int64, userID string) error {
	cards, err := s.store.ListPrincipalCards(ctx, userID)
	if err != nil {
		return s.replyStoreFailure(ctx, chatID, err)
	}

	if len(cards) == 0 {
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Você não tem cartões cadastrados.",
		})
	}

	var rows [][]botdomain.Button
	for _, c := range cards {
		token := botdomain.Callback{Action: botdomain.ActionConfig, CardID: c.ID}.Token()
		rows = append(rows, []botdomain.Button{{Label: "💳 " + c.Name, Data: token}})
	}
	rows = append(rows, []botdomain.Button{{
		Label: "Cancelar",
		Data:  botdomain.Callback{Action: botdomain.ActionConfigExit}.Token(),
	}})

	return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
		Text:    "Qual cartão você quer configurar?",
		Buttons: rows,
	})
}

// ============================================================
// Callbacks — cliques em botões
// ============================================================

func (s *BotService) handleCallback(ctx context.Context, cq *botdomain.CallbackQuery) error {
	if cq.Message == nil {
		return nil // callback órfão, nada a responder
	}
	chatID := cq.Message.Chat.ID

	// Confirma o clique logo para o Telegram parar o spinner, mesmo
	// que a ação demore ou falhe.
	if err := s.messenger.AnswerCallback(ctx, cq.ID, ""); err != nil {
		s.logger.Warn("answer callback failed", zap.Error(err))
	}

	userID, err := s.store.ResolveChatUser(ctx, chatID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: "Não reconheço este chat. Vincule sua conta no aplicativo para usar o bot.",
			})
		}
		return err
	}

	cb, err := botdomain.ParseCallback(cq.Data)
	if err != nil {
		s.logger.Warn("bad callback token",
			zap.Int64("chat_id", chatID),
			zap.String("data", cq.Data),
		)
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Esse botão expirou. Envie o comando de novo.",
		})
	}

	s.logger.Info("bot callback",
		zap.Int64("chat_id", chatID),
		zap.String("action", string(cb.Action)),
		zap.String("card_id", cb.CardID),
	)

	switch cb.Action {
	case botdomain.ActionPay:
		return s.payCard(ctx, chatID, userID, cb.CardID)
	case botdomain.ActionPayCancel:
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Ok, pagamento cancelado.",
		})
	case botdomain.ActionConfig:
		return s.replyCardConfig(ctx, chatID, userID, cb.CardID)
	case botdomain.ActionConfigBack:
		return s.replyCardList(ctx, chatID, userID)
	case botdomain.ActionConfigExit:
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Configuração encerrada.",
		})
	case botdomain.ActionAutoOn:
		return s.toggleAutoPay(ctx, chatID, userID, cb.CardID, true)
	case botdomain.ActionAutoOff:
		return s.toggleAutoPay(ctx, chatID, userID, cb.CardID, false)
	default:
		return nil
	}
}

// payCard executa o pagamento da fatura quando o usuário clica no
// botão. O valor não vai no token: a liquidação relê o saldo devedor
// atual, então um clique atrasado paga o valor de agora (ou nada, se
// a fatura já foi paga).
func (s *BotService) payCard(ctx context.Context, chatID int64, userID, cardID string) error {
	result, err := s.settlements.SettleInvoice(ctx, userID, cardID, "", nil)
	if err != nil {
		var insufficient *domain.ErrInsufficientFunds
		if errors.As(err, &insufficient) {
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: fmt.Sprintf(
					"⚠️ Saldo insuficiente: faltam R$ %.2f (disponível R$ %.2f, fatura R$ %.2f). Nada foi transferido.",
					insufficient.Shortfall(), insufficient.Available, insufficient.Required),
			})
		}
		var validation *domain.ErrValidation
		if errors.As(err, &validation) {
			// Só a falta de conta de débito tem remédio pelo /config_cartao.
			// Qualquer outra validação (token forjado, conta que não é
			// cartão) vira o aviso genérico de botão velho.
			if validation.Field == "fundingAccountId" {
				return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
					Text: "⚠️ Este cartão não tem conta de débito configurada. Use /config_cartao primeiro.",
				})
			}
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: "Esse botão expirou. Envie o comando de novo.",
			})
		}
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: "Não encontrei esse cartão. Envie /pagar de novo.",
			})
		}
		return s.replyStoreFailure(ctx, chatID, err)
	}

	if result.AlreadySettled {
		return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
			Text: "Essa fatura já foi paga. Nada a fazer. 👍",
		})
	}

	return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
		Text: fmt.Sprintf("✅ Fatura paga: R$ %.2f. Saldo da conta: R$ %.2f.",
			result.AmountPaid, result.FundingBalance),
	})
}

// replyCardConfig mostra o estado atual do cartão e os botões de
// liga/desliga do pagamento automático.
func (s *BotService) replyCardConfig(ctx context.Context, chatID int64, userID, cardID string) error {
	card, err := s.store.GetAccount(ctx, userID, cardID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: "Não encontrei esse cartão. Envie /config_cartao de novo.",
			})
		}
		return s.replyStoreFailure(ctx, chatID, err)
	}

	settings, err := s.autopay.GetSettings(ctx, userID, cardID)
	if err != nil {
		return s.replyStoreFailure(ctx, chatID, err)
	}

	state := "desligado"
	toggle := botdomain.Button{
		Label: "Ligar pagamento automático",
		Data:  botdomain.Callback{Action: botdomain.ActionAutoOn, CardID: cardID}.Token(),
	}
	if settings.AutoPayEnabled {
		state = "ligado"
		toggle = botdomain.Button{
			Label: "Desligar pagamento automático",
			Data:  botdomain.Callback{Action: botdomain.ActionAutoOff, CardID: cardID}.Token(),
		}
	}

	return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
		Text: fmt.Sprintf("💳 %s\nPagamento automático: %s", card.Name, state),
		Buttons: [][]botdomain.Button{
			{toggle},
			{
				{Label: "Voltar", Data: botdomain.Callback{Action: botdomain.ActionConfigBack}.Token()},
				{Label: "Sair", Data: botdomain.Callback{Action: botdomain.ActionConfigExit}.Token()},
			},
		},
	})
}

func (s *BotService) toggleAutoPay(ctx context.Context, chatID int64, userID, cardID string, enabled bool) error {
	_, err := s.autopay.SetAutoPay(ctx, userID, cardID, enabled)
	if err != nil {
		var validation *domain.ErrValidation
		if errors.As(err, &validation) {
			return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
				Text: "⚠️ Para ligar o pagamento automático, configure antes a conta de débito no aplicativo.",
			})
		}
		return s.replyStoreFailure(ctx, chatID, err)
	}

	// Re-renderiza a tela do cartão com o novo estado.
	return s.replyCardConfig(ctx, chatID, userID, cardID)
}

// replyStoreFailure loga o erro de infraestrutura e responde uma
// mensagem genérica. O usuário nunca vê detalhes internos.
func (s *BotService) replyStoreFailure(ctx context.Context, chatID int64, err error) error {
	s.logger.Error("bot store failure",
		zap.Int64("chat_id", chatID),
		zap.Error(err),
	)
	var external *domain.ErrExternalService
	if errors.As(err, &external) {
		s.metrics.IncrExternalError(external.Service)
	}
	return s.messenger.SendMessage(ctx, chatID, &botdomain.Reply{
		Text: "😕 Algo deu errado por aqui. Tente de novo em instantes.",
	})
}

// ============================================================
// ChatNotifier — implementação do port.Notifier via Telegram
// ============================================================

// ChatNotifier entrega notificações do scheduler (pagamento
// automático, lembretes) no chat vinculado ao usuário.
type ChatNotifier struct {
	links     port.ChatLinkStore
	messenger botport.Messenger
	logger    *zap.Logger
}

// NewChatNotifier cria o notificador.
func NewChatNotifier(links port.ChatLinkStore, messenger botport.Messenger, logger *zap.Logger) *ChatNotifier {
	return &ChatNotifier{links: links, messenger: messenger, logger: logger}
}

// NotifyUser envia a mensagem para o chat vinculado ao usuário.
// Usuário sem chat vinculado não é erro: a notificação é descartada
// com um log.
func (n *ChatNotifier) NotifyUser(ctx context.Context, userID, message string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	chatID, err := n.links.ChatIDForUser(ctx, userID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			n.logger.Info("notification dropped, user has no linked chat",
				zap.String("user_id", userID),
			)
			return nil
		}
		return err
	}

	return n.messenger.SendMessage(ctx, chatID, &botdomain.Reply{Text: message})
}
