// Package state tracks multi-step conversations for Telegram chats.
// It is intentionally domain-agnostic: a conversation is a flow identifier,
// a named step, and a flow-owned data value. Flow engines decide what the
// steps mean; this package only guarantees per-chat atomic bookkeeping.
package state
