// Package port — messenger.go define a interface (port) para o client
// que envia mensagens de volta ao Telegram.
//
// O BotService depende dessa interface e NÃO do client concreto.
// Isso facilita testes e troca de implementação.
package port

import (
	"context"

	botdomain "github.com/dmoreira/financas-familia-go/internal/bot/domain"
)

// Messenger envia respostas para um chat do Telegram.
// O client concreto (TelegramClient) implementa essa interface.
type Messenger interface {
	// SendMessage envia uma resposta (texto + botões inline) ao chat.
	SendMessage(ctx context.Context, chatID int64, reply *botdomain.Reply) error

	// AnswerCallback confirma um clique de botão para o Telegram parar
	// de mostrar o spinner. O texto é opcional (toast curto).
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
