package flows

import (
	"fmt"

	"github.com/m3rciful/payoutbot/app/format"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// FlowSendEmail sends funds to another Copperx user by email.
const FlowSendEmail state.Flow = "send_email"

const (
	stepSendEmailRecipient state.Step = "recipient"
	stepSendEmailAmount    state.Step = "amount"
	stepSendEmailConfirm   state.Step = "confirm"
)

const (
	ChoiceConfirm = "confirm"
	ChoiceCancel  = "cancel"
)

type sendEmailData struct {
	Recipient string
	Amount    string
}

func (e *Engine) sendEmailFlow() *flowDef {
	return &flowDef{
		id:      FlowSendEmail,
		initial: stepSendEmailRecipient,
		newData: func() any { return &sendEmailData{} },
		enter: func(t *turn) error {
			return t.out.Say("📤 Send to email\n\nEnter the recipient's email address:")
		},
		steps: map[state.Step]stepFunc{
			stepSendEmailRecipient: e.sendEmailRecipientStep,
			stepSendEmailAmount:    e.sendEmailAmountStep,
			stepSendEmailConfirm:   e.sendEmailConfirmStep,
		},
	}
}

func (e *Engine) sendEmailRecipientStep(t *turn) error {
	email, ok := t.text()
	if !ok || !ValidEmail(email) {
		return t.out.Say("That doesn't look like an email address. Please enter the recipient's email:")
	}
	convData[sendEmailData](t).Recipient = email
	t.next(stepSendEmailAmount)
	return t.out.Say("Enter the amount in USDC:")
}

func (e *Engine) sendEmailAmountStep(t *turn) error {
	raw, ok := t.text()
	amount, valid := ParseAmount(raw)
	if !ok || !valid {
		return t.out.Say("Please enter a positive amount, e.g. 10 or 15.50:")
	}
	d := convData[sendEmailData](t)
	d.Amount = amount
	t.next(stepSendEmailConfirm)
	return t.out.Say(
		fmt.Sprintf("Please confirm:\n\nSend %s to %s", format.USDC(amount), d.Recipient),
		Choice{Label: "✅ Confirm", ID: ChoiceConfirm},
		Choice{Label: "✖️ Cancel", ID: ChoiceCancel},
	)
}

func (e *Engine) sendEmailConfirmStep(t *turn) error {
	if t.ev.Kind != EventChoice {
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}
	switch t.ev.Choice {
	case ChoiceCancel:
		return t.cancel("Transfer cancelled.")
	case ChoiceConfirm:
	default:
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}

	d := convData[sendEmailData](t)
	transfer, err := e.api.SendToEmail(t.ctx, e.sessions.Token(t.chatID), d.Recipient, d.Amount)
	if err != nil {
		return t.fail(err)
	}
	return t.complete(fmt.Sprintf(
		"✅ Sent %s to %s\nTransfer ID: %s\nStatus: %s",
		format.USDC(d.Amount), d.Recipient, transfer.ID, format.TransferStatus(transfer.Status),
	))
}
