// Package flows implements the bot's multi-step conversations (login and the
// transfer wizards) as explicit finite-state machines. Each flow declares its
// steps and transitions; the engine owns per-chat conversation bookkeeping
// and dispatches decoded input events to the active step.
package flows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/session"
	"github.com/m3rciful/payoutbot/core/logger"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

// EventKind classifies a decoded inbound update.
type EventKind int

const (
	// EventText is a free-form text message.
	EventText EventKind = iota
	// EventChoice is an inline-button press.
	EventChoice
)

// Event is the input a step handler receives. Events are decoded once at the
// Telegram boundary; flows never parse callback strings themselves.
type Event struct {
	Kind    EventKind
	Text    string
	Choice  string
	Payload string
}

// Choice is one labeled option offered to the user. ID and Payload round-trip
// through the chat platform and come back as an EventChoice.
type Choice struct {
	Label   string
	ID      string
	Payload string
}

// Responder renders flow output. Say keeps the conversation open; Finish is
// the closing message of a flow (implementations typically attach the main
// menu to it).
type Responder interface {
	Say(text string, choices ...Choice) error
	Finish(text string) error
}

// ErrNoConversation is returned when input arrives for a chat without an
// active flow.
var ErrNoConversation = errors.New("flows: no active conversation")

type stepFunc func(t *turn) error

type flowDef struct {
	id      state.Flow
	initial state.Step
	newData func() any
	enter   stepFunc
	steps   map[state.Step]stepFunc
}

// Engine drives all registered flows.
type Engine struct {
	conv     state.Manager
	api      *copperx.Client
	sessions *session.Store
	defs     map[state.Flow]*flowDef

	// OnLogin runs after a session is persisted by the login flow; the app
	// hooks deposit notifications here.
	OnLogin func(ctx context.Context, sess session.Session)
}

// NewEngine wires the engine with every known flow registered.
func NewEngine(conv state.Manager, api *copperx.Client, sessions *session.Store) *Engine {
	e := &Engine{
		conv:     conv,
		api:      api,
		sessions: sessions,
		defs:     make(map[state.Flow]*flowDef),
	}
	e.register(e.loginFlow())
	e.register(e.sendEmailFlow())
	e.register(e.sendWalletFlow())
	e.register(e.withdrawFlow())
	e.register(e.batchSendFlow())
	return e
}

func (e *Engine) register(def *flowDef) {
	e.defs[def.id] = def
}

// InProgress reports whether the chat has an active conversation.
func (e *Engine) InProgress(chatID int64) bool {
	return e.conv.InProgress(chatID)
}

// Start begins a flow for the chat, replacing any active conversation.
// The flow's enter handler runs immediately and may already terminate
// (e.g. withdraw with no saved payees).
func (e *Engine) Start(ctx context.Context, out Responder, chatID int64, flow state.Flow) error {
	def, ok := e.defs[flow]
	if !ok {
		return errors.New("flows: unknown flow " + string(flow))
	}

	e.conv.Begin(chatID, def.id, def.initial, def.newData())
	logger.Flow.LogAttrs(ctx, slog.LevelInfo, "flow.start",
		slog.String("flow", string(def.id)),
		slog.Int64("chat_id", chatID),
	)

	t := &turn{ctx: ctx, eng: e, chatID: chatID, out: out}
	t.conv, _ = e.conv.Active(chatID)
	return def.enter(t)
}

// Handle advances the chat's active conversation by one event.
func (e *Engine) Handle(ctx context.Context, out Responder, chatID int64, ev Event) error {
	conv, ok := e.conv.Active(chatID)
	if !ok {
		return ErrNoConversation
	}
	def, ok := e.defs[conv.Flow]
	if !ok {
		e.conv.End(chatID)
		return errors.New("flows: conversation references unknown flow " + string(conv.Flow))
	}
	fn, ok := def.steps[conv.Step]
	if !ok {
		// Defect-grade: a step was registered in bookkeeping but not in the
		// transition table. Drop the conversation instead of wedging the chat.
		e.conv.End(chatID)
		logger.Flow.LogAttrs(ctx, slog.LevelError, "flow.step_missing",
			slog.String("flow", string(conv.Flow)),
			slog.String("step", string(conv.Step)),
			slog.Int64("chat_id", chatID),
		)
		return out.Finish("Something went wrong with this conversation. Please start over.")
	}

	t := &turn{ctx: ctx, eng: e, chatID: chatID, ev: ev, out: out, conv: conv}
	return fn(t)
}

// Cancel force-ends any active conversation for the chat.
func (e *Engine) Cancel(chatID int64) {
	e.conv.End(chatID)
}

// turn bundles everything one step execution needs.
type turn struct {
	ctx    context.Context
	eng    *Engine
	chatID int64
	ev     Event
	out    Responder
	conv   state.Conversation
}

// next transitions the conversation to the given step.
func (t *turn) next(step state.Step) {
	t.eng.conv.Transition(t.chatID, step)
}

// end closes the conversation with the given outcome.
func (t *turn) end(outcome string) {
	t.eng.conv.End(t.chatID)
	logger.Flow.LogAttrs(t.ctx, slog.LevelInfo, "flow.end",
		slog.String("flow", string(t.conv.Flow)),
		slog.String("step", string(t.conv.Step)),
		slog.String("outcome", outcome),
		slog.Int64("chat_id", t.chatID),
	)
}

// complete terminates the flow successfully.
func (t *turn) complete(text string) error {
	t.end("completed")
	return t.out.Finish(text)
}

// cancel terminates the flow at the user's request.
func (t *turn) cancel(text string) error {
	t.end("cancelled")
	return t.out.Finish(text)
}

// fail terminates the flow with an error shown to the user.
func (t *turn) fail(err error) error {
	logger.Flow.LogAttrs(t.ctx, slog.LevelWarn, "flow.failed",
		slog.String("flow", string(t.conv.Flow)),
		slog.String("step", string(t.conv.Step)),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.Int64("chat_id", t.chatID),
	)
	t.end("failed")
	return t.out.Finish("❌ " + copperx.UserMessage(err))
}

// text returns trimmed message text and whether the event carries any.
func (t *turn) text() (string, bool) {
	if t.ev.Kind != EventText || t.ev.Text == "" {
		return "", false
	}
	return t.ev.Text, true
}
