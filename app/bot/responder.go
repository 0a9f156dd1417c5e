package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/payoutbot/app/bot/flows"
	tghelpers "github.com/m3rciful/payoutbot/core/telegram/helpers"
	"github.com/m3rciful/payoutbot/core/telegram/keyboard"
)

// teleResponder renders flow output into the chat. Finish closes the
// conversation with the main menu attached so the user is never stranded.
type teleResponder struct {
	c tele.Context
}

func (r teleResponder) Say(text string, choices ...flows.Choice) error {
	if len(choices) == 0 {
		return tghelpers.SendText(r.c, text)
	}
	btns := make([]keyboard.InlineBtn, 0, len(choices))
	for _, ch := range choices {
		btns = append(btns, keyboard.InlineBtn{Text: ch.Label, Unique: ch.ID, Data: ch.Payload})
	}
	markup := keyboard.InlineButtonsNPerRow(btns, 2)
	return tghelpers.SendText(r.c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func (r teleResponder) Finish(text string) error {
	return tghelpers.SendText(r.c, text, &tele.SendOptions{ReplyMarkup: mainMenu()})
}
