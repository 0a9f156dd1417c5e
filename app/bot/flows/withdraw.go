package flows

import (
	"fmt"

	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/format"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// FlowWithdraw off-ramps funds to a saved bank payee.
const FlowWithdraw state.Flow = "withdraw"

const (
	stepWithdrawPayee   state.Step = "payee"
	stepWithdrawAmount  state.Step = "amount"
	stepWithdrawConfirm state.Step = "confirm"
)

// ChoicePayee carries the selected payee id in its payload.
const ChoicePayee = "payee"

type withdrawData struct {
	PayeeID   string
	PayeeName string
	Amount    string
	payees    []copperx.Payee
}

func (e *Engine) withdrawFlow() *flowDef {
	return &flowDef{
		id:      FlowWithdraw,
		initial: stepWithdrawPayee,
		newData: func() any { return &withdrawData{} },
		enter:   e.withdrawEnter,
		steps: map[state.Step]stepFunc{
			stepWithdrawPayee:   e.withdrawPayeeStep,
			stepWithdrawAmount:  e.withdrawAmountStep,
			stepWithdrawConfirm: e.withdrawConfirmStep,
		},
	}
}

// withdrawEnter fetches payees up front. Without at least one saved payee the
// flow has nothing to offer and ends before asking anything.
func (e *Engine) withdrawEnter(t *turn) error {
	payees, err := e.api.Payees(t.ctx, e.sessions.Token(t.chatID))
	if err != nil {
		return t.fail(err)
	}
	if len(payees) == 0 {
		return t.complete("ℹ️ You have no saved bank payees.\nAdd one in the Copperx web app, then run /withdraw again.")
	}

	convData[withdrawData](t).payees = payees
	choices := make([]Choice, 0, len(payees))
	for _, p := range payees {
		choices = append(choices, Choice{Label: payeeLabel(p), ID: ChoicePayee, Payload: p.ID})
	}
	return t.out.Say("🏦 Withdraw to bank\n\nChoose a payee:", choices...)
}

func (e *Engine) withdrawPayeeStep(t *turn) error {
	if t.ev.Kind != EventChoice || t.ev.Choice != ChoicePayee {
		return t.out.Say("Please choose a payee with the buttons above, or /cancel to stop.")
	}

	d := convData[withdrawData](t)
	var selected *copperx.Payee
	for i := range d.payees {
		if d.payees[i].ID == t.ev.Payload {
			selected = &d.payees[i]
			break
		}
	}
	if selected == nil {
		return t.out.Say("That payee is no longer available. Please choose again or /cancel.")
	}

	d.PayeeID = selected.ID
	d.PayeeName = payeeLabel(*selected)
	t.next(stepWithdrawAmount)
	return t.out.Say(fmt.Sprintf("Withdrawing to %s.\nEnter the amount in USDC:", d.PayeeName))
}

func (e *Engine) withdrawAmountStep(t *turn) error {
	raw, ok := t.text()
	amount, valid := ParseAmount(raw)
	if !ok || !valid {
		return t.out.Say("Please enter a positive amount, e.g. 10 or 15.50:")
	}
	d := convData[withdrawData](t)
	d.Amount = amount
	t.next(stepWithdrawConfirm)
	return t.out.Say(
		fmt.Sprintf("Please confirm:\n\nWithdraw %s to %s", format.USDC(amount), d.PayeeName),
		Choice{Label: "✅ Confirm", ID: ChoiceConfirm},
		Choice{Label: "✖️ Cancel", ID: ChoiceCancel},
	)
}

func (e *Engine) withdrawConfirmStep(t *turn) error {
	if t.ev.Kind != EventChoice {
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}
	switch t.ev.Choice {
	case ChoiceCancel:
		return t.cancel("Withdrawal cancelled.")
	case ChoiceConfirm:
	default:
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}

	d := convData[withdrawData](t)
	transfer, err := e.api.WithdrawToBank(t.ctx, e.sessions.Token(t.chatID), d.PayeeID, d.Amount)
	if err != nil {
		return t.fail(err)
	}
	return t.complete(fmt.Sprintf(
		"✅ Withdrawal of %s to %s initiated\nTransfer ID: %s\nStatus: %s",
		format.USDC(d.Amount), d.PayeeName, transfer.ID, format.TransferStatus(transfer.Status),
	))
}

func payeeLabel(p copperx.Payee) string {
	label := p.NickName
	if label == "" {
		label = p.BankName
	}
	if label == "" {
		label = p.ID
	}
	if p.BankName != "" && p.BankName != label {
		label += " (" + p.BankName + ")"
	}
	return label
}
