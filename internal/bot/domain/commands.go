// Package domain — commands.go define os tipos do fluxo conversacional
// de pagamento de fatura via Telegram.
//
// O fluxo é stateless: toda a informação que o bot precisa para agir
// está embutida no token do callback (ex: "pay_<cardId>"). Não há
// sessão nem estado de conversa no servidor — o clique no botão carrega
// tudo.
package domain

import (
	"fmt"
	"strings"
)

// ============================================================
// Comandos — o que o usuário digita
// ============================================================

// Comandos reconhecidos pelo bot.
const (
	CmdStatements = "/faturas"      // lista faturas pendentes (somente leitura)
	CmdPay        = "/pagar"        // inicia o fluxo de pagamento com botões
	CmdConfigCard = "/config_cartao" // configura pagamento automático por cartão
)

// ============================================================
// Callbacks — o que o clique num botão carrega
// ============================================================

// Action identifica a ação embutida num token de callback.
type Action string

const (
	ActionPay        Action = "pay"         // pay_<cardId> → paga a fatura do cartão
	ActionPayCancel  Action = "pay_cancel"  // cancela o fluxo de pagamento
	ActionConfig     Action = "config"      // config_<cardId> → abre configurações do cartão
	ActionConfigBack Action = "config_back" // volta para a lista de cartões
	ActionConfigExit Action = "config_cancel"
	ActionAutoOn     Action = "auto_on"  // auto_on_<cardId> → liga pagamento automático
	ActionAutoOff    Action = "auto_off" // auto_off_<cardId> → desliga pagamento automático
)

// Callback é um token de callback já decodificado.
type Callback struct {
	Action Action
	CardID string // vazio para ações sem cartão (cancel, back)
}

// Token serializa o callback de volta para a forma de fio.
// É o inverso exato de ParseCallback.
func (c Callback) Token() string {
	switch c.Action {
	case ActionPay:
		return "pay_" + c.CardID
	case ActionConfig:
		return "config_" + c.CardID
	case ActionAutoOn:
		return "auto_on_" + c.CardID
	case ActionAutoOff:
		return "auto_off_" + c.CardID
	default:
		return string(c.Action)
	}
}

// ParseCallback decodifica um token de callback vindo do Telegram.
//
// Gramática dos tokens:
//
//	pay_cancel            → cancela pagamento
//	pay_<cardId>          → paga a fatura do cartão
//	config_back           → volta à lista
//	config_cancel         → sai da configuração
//	config_<cardId>       → abre configurações do cartão
//	auto_on_<cardId>      → liga autopay
//	auto_off_<cardId>     → desliga autopay
//
// A ordem dos casos importa: os tokens fixos ("pay_cancel",
// "config_back") são verificados antes dos prefixos, senão
// "pay_cancel" viraria um pagamento do cartão "cancel".
func ParseCallback(token string) (Callback, error) {
	switch token {
	case "pay_cancel":
		return Callback{Action: ActionPayCancel}, nil
	case "config_back":
		return Callback{Action: ActionConfigBack}, nil
	case "config_cancel":
		return Callback{Action: ActionConfigExit}, nil
	}

	for _, p := range []struct {
		prefix string
		action Action
	}{
		{"auto_on_", ActionAutoOn},
		{"auto_off_", ActionAutoOff},
		{"pay_", ActionPay},
		{"config_", ActionConfig},
	} {
		if strings.HasPrefix(token, p.prefix) {
			cardID := strings.TrimPrefix(token, p.prefix)
			if cardID == "" {
				return Callback{}, fmt.Errorf("callback token %q has empty card id", token)
			}
			return Callback{Action: p.action, CardID: cardID}, nil
		}
	}

	return Callback{}, fmt.Errorf("unknown callback token %q", token)
}

// ============================================================
// Update / Reply — o contrato de fio com o Telegram
// ============================================================

// Update é a fatia do update do Telegram que o bot consome.
// Ou Message ou CallbackQuery está preenchido, nunca os dois.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message é uma mensagem de texto enviada pelo usuário.
type Message struct {
	Chat Chat   `json:"chat"`
	Text string `json:"text"`
}

// CallbackQuery é o clique num botão inline.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"` // o token de callback
}

// Chat identifica a conversa no Telegram.
type Chat struct {
	ID int64 `json:"id"`
}

// Button é um botão inline que o bot anexa a uma resposta.
type Button struct {
	Label string // texto visível
	Data  string // token de callback
}

// Reply é a resposta que o bot envia de volta ao chat.
// Buttons vazio → mensagem de texto simples.
type Reply struct {
	Text    string
	Buttons [][]Button // linhas de botões (inline keyboard)
}
