package chat

import (
	"fmt"
	"sync"

	"github.com/pokedex-chat/console/internal/interfaces"
)

// messageList is the optimistic message state machine for the active
// conversation. Entries are tagged Pending or Confirmed; a pending entry is
// atomically replaced, never mutated, when the server acknowledges it.
// Insertion order is preserved at all times.
type messageList struct {
	mu      sync.Mutex
	entries []interfaces.Message
}

// appendPending adds an optimistic entry. The list never holds two entries
// with the same temporary id.
func (l *messageList) appendPending(msg interfaces.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.entries {
		if existing.State == interfaces.MessagePending && existing.TempID == msg.TempID {
			return fmt.Errorf("duplicate pending message id %s", msg.TempID)
		}
	}
	msg.State = interfaces.MessagePending
	l.entries = append(l.entries, msg)
	return nil
}

// confirm replaces the pending entry identified by tempID with the
// server-confirmed user echo and assistant reply, preserving its position.
// Unrelated entries keep their order. It reports whether the entry was found.
func (l *messageList) confirm(tempID string, user, assistant interfaces.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfLocked(tempID)
	if idx < 0 {
		return false
	}

	user.State = interfaces.MessageConfirmed
	assistant.State = interfaces.MessageConfirmed

	replaced := make([]interfaces.Message, 0, len(l.entries)+1)
	replaced = append(replaced, l.entries[:idx]...)
	replaced = append(replaced, user, assistant)
	replaced = append(replaced, l.entries[idx+1:]...)
	l.entries = replaced
	return true
}

// rollback removes the pending entry identified by tempID, leaving the rest
// of the list untouched.
func (l *messageList) rollback(tempID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOfLocked(tempID)
	if idx < 0 {
		return false
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	return true
}

// replaceAll swaps the whole list for the server's ordered history.
func (l *messageList) replaceAll(msgs []interfaces.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]interfaces.Message, len(msgs))
	for i, msg := range msgs {
		msg.State = interfaces.MessageConfirmed
		l.entries[i] = msg
	}
}

// clear empties the list.
func (l *messageList) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// snapshot returns a copy of the current entries.
func (l *messageList) snapshot() []interfaces.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]interfaces.Message(nil), l.entries...)
}

func (l *messageList) indexOfLocked(tempID string) int {
	for i, msg := range l.entries {
		if msg.State == interfaces.MessagePending && msg.TempID == tempID {
			return i
		}
	}
	return -1
}
