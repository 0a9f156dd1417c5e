package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/payoutbot/core/telegram/keyboard"
)

// Callback uniques for menu buttons. Flow choice buttons carry their own
// uniques defined in the flows package.
const (
	cbMenuBalance = "menu_balance"
	cbMenuSend    = "menu_send"
	cbMenuHistory = "menu_history"
	cbMenuProfile = "menu_profile"
	cbMenuDeposit = "menu_deposit"
	cbMenuHelp    = "menu_help"

	cbSendEmail  = "send_email"
	cbSendWallet = "send_wallet"
	cbSendBank   = "send_bank"
	cbSendBatch  = "send_batch"

	cbWalletDefault = "wallet_default"
	cbHistoryPage   = "history_page"
	cbRetry         = "retry"
)

// mainMenu is attached to greeting and flow-closing messages.
func mainMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "💰 Balance", Unique: cbMenuBalance},
			{Text: "📤 Send", Unique: cbMenuSend},
		},
		[]keyboard.InlineBtn{
			{Text: "📜 History", Unique: cbMenuHistory},
			{Text: "👤 Profile", Unique: cbMenuProfile},
		},
		[]keyboard.InlineBtn{
			{Text: "💵 Deposit", Unique: cbMenuDeposit},
			{Text: "❓ Help", Unique: cbMenuHelp},
		},
	)
}

// transferMenu offers the four ways to move funds out.
func transferMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "📧 To email", Unique: cbSendEmail},
			{Text: "👛 To wallet", Unique: cbSendWallet},
		},
		[]keyboard.InlineBtn{
			{Text: "🏦 To bank", Unique: cbSendBank},
			{Text: "📑 Batch send", Unique: cbSendBatch},
		},
	)
}

// retryMarkup attaches a retry button bound to the failed command.
func retryMarkup(command string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🔄 Retry", Unique: cbRetry, Data: command},
	})
}
