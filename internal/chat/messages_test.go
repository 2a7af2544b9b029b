package chat

import (
	"testing"

	"github.com/pokedex-chat/console/internal/interfaces"
)

func pendingMessage(tempID, content string) interfaces.Message {
	return interfaces.Message{TempID: tempID, Content: content, Role: interfaces.RoleUser}
}

func TestAppendPendingTagsState(t *testing.T) {
	list := &messageList{}
	if err := list.appendPending(pendingMessage("tmp-1", "hello")); err != nil {
		t.Fatalf("appendPending failed: %v", err)
	}

	entries := list.snapshot()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].State != interfaces.MessagePending {
		t.Errorf("Expected pending state, got %v", entries[0].State)
	}
}

func TestAppendPendingRejectsDuplicateTempID(t *testing.T) {
	list := &messageList{}
	if err := list.appendPending(pendingMessage("tmp-1", "hello")); err != nil {
		t.Fatalf("First append failed: %v", err)
	}
	if err := list.appendPending(pendingMessage("tmp-1", "again")); err == nil {
		t.Fatalf("Expected duplicate temp id to be rejected")
	}
	if got := len(list.snapshot()); got != 1 {
		t.Errorf("Expected the list unchanged, got %d entries", got)
	}
}

func TestConfirmReplacesInPlace(t *testing.T) {
	list := &messageList{}
	list.replaceAll([]interfaces.Message{
		{ID: 1, Content: "earlier", Role: interfaces.RoleUser},
		{ID: 2, Content: "earlier reply", Role: interfaces.RoleAssistant},
	})
	if err := list.appendPending(pendingMessage("tmp-1", "what is pikachu")); err != nil {
		t.Fatalf("appendPending failed: %v", err)
	}

	ok := list.confirm("tmp-1",
		interfaces.Message{ID: 3, Content: "what is pikachu", Role: interfaces.RoleUser},
		interfaces.Message{ID: 4, Content: "an electric mouse", Role: interfaces.RoleAssistant},
	)
	if !ok {
		t.Fatalf("confirm reported the entry missing")
	}

	entries := list.snapshot()
	if len(entries) != 4 {
		t.Fatalf("Expected 4 entries after confirmation, got %d", len(entries))
	}
	wantIDs := []int64{1, 2, 3, 4}
	for i, want := range wantIDs {
		if entries[i].ID != want {
			t.Errorf("Position %d: expected id %d, got %d", i, want, entries[i].ID)
		}
		if entries[i].State != interfaces.MessageConfirmed {
			t.Errorf("Position %d: expected confirmed state", i)
		}
	}
	if entries[2].Role != interfaces.RoleUser || entries[3].Role != interfaces.RoleAssistant {
		t.Errorf("Confirmed pair has wrong roles: %v, %v", entries[2].Role, entries[3].Role)
	}
}

func TestConfirmPreservesPositionAmongLaterEntries(t *testing.T) {
	list := &messageList{}
	if err := list.appendPending(pendingMessage("tmp-1", "first")); err != nil {
		t.Fatal(err)
	}
	if err := list.appendPending(pendingMessage("tmp-2", "second")); err != nil {
		t.Fatal(err)
	}

	// Confirm the first pending entry while the second is still in flight.
	list.confirm("tmp-1",
		interfaces.Message{ID: 10, Content: "first", Role: interfaces.RoleUser},
		interfaces.Message{ID: 11, Content: "first reply", Role: interfaces.RoleAssistant},
	)

	entries := list.snapshot()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != 10 || entries[1].ID != 11 {
		t.Errorf("Confirmed pair must occupy the original position, got ids %d, %d", entries[0].ID, entries[1].ID)
	}
	if entries[2].TempID != "tmp-2" || entries[2].State != interfaces.MessagePending {
		t.Errorf("The later pending entry must be untouched, got %+v", entries[2])
	}
}

func TestConfirmUnknownTempID(t *testing.T) {
	list := &messageList{}
	list.replaceAll([]interfaces.Message{{ID: 1, Content: "kept"}})

	if list.confirm("missing", interfaces.Message{ID: 2}, interfaces.Message{ID: 3}) {
		t.Fatalf("confirm must report an unknown temp id")
	}
	if got := len(list.snapshot()); got != 1 {
		t.Errorf("List must be unchanged, got %d entries", got)
	}
}

func TestRollbackRemovesOnlyPendingEntry(t *testing.T) {
	list := &messageList{}
	list.replaceAll([]interfaces.Message{
		{ID: 1, Content: "kept"},
		{ID: 2, Content: "also kept"},
	})
	if err := list.appendPending(pendingMessage("tmp-1", "doomed")); err != nil {
		t.Fatal(err)
	}

	if !list.rollback("tmp-1") {
		t.Fatalf("rollback reported the entry missing")
	}

	entries := list.snapshot()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after rollback, got %d", len(entries))
	}
	if entries[0].ID != 1 || entries[1].ID != 2 {
		t.Errorf("Confirmed entries must survive rollback in order, got %+v", entries)
	}
}

func TestReplaceAllMarksConfirmed(t *testing.T) {
	list := &messageList{}
	if err := list.appendPending(pendingMessage("tmp-1", "stale")); err != nil {
		t.Fatal(err)
	}

	list.replaceAll([]interfaces.Message{
		{ID: 1, Content: "from server"},
		{ID: 2, Content: "also from server"},
	})

	entries := list.snapshot()
	if len(entries) != 2 {
		t.Fatalf("Expected the history to replace everything, got %d entries", len(entries))
	}
	for i, entry := range entries {
		if entry.State != interfaces.MessageConfirmed {
			t.Errorf("Entry %d must be confirmed, got %v", i, entry.State)
		}
	}
}
