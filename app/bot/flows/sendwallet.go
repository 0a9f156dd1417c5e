package flows

import (
	"fmt"

	"github.com/m3rciful/payoutbot/app/format"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// FlowSendWallet sends funds to an external wallet address.
const FlowSendWallet state.Flow = "send_wallet"

const (
	stepSendWalletAddress state.Step = "address"
	stepSendWalletAmount  state.Step = "amount"
	stepSendWalletConfirm state.Step = "confirm"
)

type sendWalletData struct {
	Address string
	Amount  string
}

func (e *Engine) sendWalletFlow() *flowDef {
	return &flowDef{
		id:      FlowSendWallet,
		initial: stepSendWalletAddress,
		newData: func() any { return &sendWalletData{} },
		enter: func(t *turn) error {
			return t.out.Say("📤 Send to wallet\n\nEnter the destination wallet address:")
		},
		steps: map[state.Step]stepFunc{
			stepSendWalletAddress: e.sendWalletAddressStep,
			stepSendWalletAmount:  e.sendWalletAmountStep,
			stepSendWalletConfirm: e.sendWalletConfirmStep,
		},
	}
}

func (e *Engine) sendWalletAddressStep(t *turn) error {
	addr, ok := t.text()
	if !ok || !ValidWalletAddress(addr) {
		return t.out.Say("That doesn't look like a wallet address. Please enter the full address:")
	}
	convData[sendWalletData](t).Address = addr
	t.next(stepSendWalletAmount)
	return t.out.Say("Enter the amount in USDC:")
}

func (e *Engine) sendWalletAmountStep(t *turn) error {
	raw, ok := t.text()
	amount, valid := ParseAmount(raw)
	if !ok || !valid {
		return t.out.Say("Please enter a positive amount, e.g. 10 or 15.50:")
	}
	d := convData[sendWalletData](t)
	d.Amount = amount
	t.next(stepSendWalletConfirm)
	return t.out.Say(
		fmt.Sprintf("Please confirm:\n\nSend %s to %s", format.USDC(amount), format.WalletAddress(d.Address)),
		Choice{Label: "✅ Confirm", ID: ChoiceConfirm},
		Choice{Label: "✖️ Cancel", ID: ChoiceCancel},
	)
}

func (e *Engine) sendWalletConfirmStep(t *turn) error {
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

	d := convData[sendWalletData](t)
	transfer, err := e.api.SendToWallet(t.ctx, e.sessions.Token(t.chatID), d.Address, d.Amount)
	if err != nil {
		return t.fail(err)
	}
	return t.complete(fmt.Sprintf(
		"✅ Sent %s to %s\nTransfer ID: %s\nStatus: %s",
		format.USDC(d.Amount), format.WalletAddress(d.Address), transfer.ID, format.TransferStatus(transfer.Status),
	))
}
