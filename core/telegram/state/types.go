package state

// Flow identifies a multi-step conversation kind.
type Flow string

// Step names a state inside a flow's transition table. Transitions are
// explicit edges chosen by step handlers, never positional indexes.
type Step string

// Conversation is one in-progress flow scoped to a single chat.
// Data holds flow-specific collected fields; each flow owns its own type.
type Conversation struct {
	Flow Flow
	Step Step
	Data any
}

// Manager owns per-chat conversation state. At most one conversation exists
// per chat; beginning a new one replaces any active flow.
type Manager interface {
	// Active returns the chat's conversation, if any.
	Active(chatID int64) (Conversation, bool)
	// Begin starts a conversation, replacing any existing one.
	Begin(chatID int64, flow Flow, step Step, data any)
	// Transition moves the active conversation to the given step.
	// No-op when the chat has no active conversation.
	Transition(chatID int64, step Step)
	// End removes the conversation for the chat.
	End(chatID int64)
	// InProgress reports whether the chat has an active conversation.
	InProgress(chatID int64) bool
}
