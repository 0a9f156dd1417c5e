package state

import "testing"

func TestBeginAndActive(t *testing.T) {
	m := NewMemoryManager()
	if m.InProgress(1) {
		t.Fatal("fresh manager should have no conversation")
	}

	type data struct{ Email string }
	m.Begin(1, "login", "email", &data{})

	conv, ok := m.Active(1)
	if !ok {
		t.Fatal("expected active conversation")
	}
	if conv.Flow != "login" || conv.Step != "email" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
}

func TestDataPointerSharedAcrossActive(t *testing.T) {
	m := NewMemoryManager()
	type data struct{ Email string }
	m.Begin(1, "login", "email", &data{})

	conv, _ := m.Active(1)
	conv.Data.(*data).Email = "a@b.com"

	again, _ := m.Active(1)
	if got := again.Data.(*data).Email; got != "a@b.com" {
		t.Fatalf("data mutation lost, got %q", got)
	}
}

func TestTransition(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(1, "login", "email", nil)
	m.Transition(1, "code")

	conv, _ := m.Active(1)
	if conv.Step != "code" {
		t.Fatalf("step = %q, want code", conv.Step)
	}

	// Transition on an unknown chat must not create a conversation.
	m.Transition(2, "code")
	if m.InProgress(2) {
		t.Fatal("transition created a conversation")
	}
}

func TestBeginReplacesExisting(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(1, "login", "email", nil)
	m.Begin(1, "send_email", "recipient", nil)

	conv, _ := m.Active(1)
	if conv.Flow != "send_email" {
		t.Fatalf("flow = %q, want send_email", conv.Flow)
	}
}

func TestEnd(t *testing.T) {
	m := NewMemoryManager()
	m.Begin(1, "login", "email", nil)
	m.End(1)
	if m.InProgress(1) {
		t.Fatal("conversation should be gone")
	}
	m.End(2) // ending a missing conversation is a no-op
}
