package flows

import (
	"fmt"
	"strings"

	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/format"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// FlowBatchSend sends funds to many email recipients in one API call.
const FlowBatchSend state.Flow = "batch_send"

const (
	stepBatchList    state.Step = "list"
	stepBatchConfirm state.Step = "confirm"
)

type batchData struct {
	Transfers []copperx.BatchTransfer
}

func (e *Engine) batchSendFlow() *flowDef {
	return &flowDef{
		id:      FlowBatchSend,
		initial: stepBatchList,
		newData: func() any { return &batchData{} },
		enter: func(t *turn) error {
			return t.out.Say("📤 Batch send\n\nSend one message with one transfer per line:\n\nemail,amount\n\nExample:\nalice@example.com,10\nbob@example.com,15.50")
		},
		steps: map[state.Step]stepFunc{
			stepBatchList:    e.batchListStep,
			stepBatchConfirm: e.batchConfirmStep,
		},
	}
}

// batchListStep validates the whole list and reports every problem at once,
// so the user fixes the message in a single pass.
func (e *Engine) batchListStep(t *turn) error {
	text, ok := t.text()
	if !ok {
		return t.out.Say("Please send the transfer list as text, one email,amount per line:")
	}

	transfers, problems := ParseBatch(text)
	if len(problems) > 0 {
		return t.out.Say("❌ The list has problems:\n\n" + strings.Join(problems, "\n") + "\n\nPlease send the corrected list:")
	}
	if len(transfers) == 0 {
		return t.out.Say("The list is empty. Send at least one line in the form email,amount:")
	}

	d := convData[batchData](t)
	d.Transfers = transfers

	var b strings.Builder
	total := 0.0
	fmt.Fprintf(&b, "Please confirm %d transfers:\n\n", len(transfers))
	for _, tr := range transfers {
		fmt.Fprintf(&b, "• %s → %s\n", tr.Email, format.USDC(tr.Amount))
		total += amountValue(tr.Amount)
	}
	fmt.Fprintf(&b, "\nTotal: %s", format.USDC(fmt.Sprintf("%g", total)))

	t.next(stepBatchConfirm)
	return t.out.Say(b.String(),
		Choice{Label: "✅ Confirm", ID: ChoiceConfirm},
		Choice{Label: "✖️ Cancel", ID: ChoiceCancel},
	)
}

func (e *Engine) batchConfirmStep(t *turn) error {
	if t.ev.Kind != EventChoice {
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}
	switch t.ev.Choice {
	case ChoiceCancel:
		return t.cancel("Batch cancelled.")
	case ChoiceConfirm:
	default:
		return t.out.Say("Please use the buttons above, or /cancel to stop.")
	}

	d := convData[batchData](t)
	result, err := e.api.SendBatch(t.ctx, e.sessions.Token(t.chatID), d.Transfers)
	if err != nil {
		return t.fail(err)
	}

	created := len(result.Transfers)
	if created == 0 {
		created = len(d.Transfers)
	}
	return t.complete(fmt.Sprintf("✅ Batch submitted: %d transfers created.", created))
}
