package session_test

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/lectern/lectern/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStoreAppendAndHistory(t *testing.T) {
	store := session.NewStore(8)
	id := store.NewSessionID()

	if got := store.History(id); got != nil {
		t.Fatalf("History(new) = %v, want nil", got)
	}

	store.Append(id,
		session.Turn{Role: session.RoleUser, Text: "What is MCP?"},
		session.Turn{Role: session.RoleModel, Text: "A protocol."},
	)

	history := store.History(id)
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Role != session.RoleUser || history[1].Role != session.RoleModel {
		t.Errorf("history roles = %v", history)
	}
}

func TestStoreCapEvictsOldest(t *testing.T) {
	store := session.NewStore(4)
	id := "capped"

	for i := 0; i < 6; i++ {
		store.Append(id,
			session.Turn{Role: session.RoleUser, Text: fmt.Sprintf("question %d", i)},
			session.Turn{Role: session.RoleModel, Text: fmt.Sprintf("answer %d", i)},
		)
	}

	history := store.History(id)
	if len(history) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(history))
	}
	if history[0].Text != "question 4" || history[3].Text != "answer 5" {
		t.Errorf("kept turns = %v, want the newest four", history)
	}
}

func TestStoreZeroCapRetainsNothing(t *testing.T) {
	store := session.NewStore(0)
	id := "stateless"

	store.Append(id,
		session.Turn{Role: session.RoleUser, Text: "question"},
		session.Turn{Role: session.RoleModel, Text: "answer"},
	)

	if got := store.History(id); len(got) != 0 {
		t.Errorf("History() = %v, want empty for a zero cap", got)
	}
}

func TestStoreNegativeCapUsesDefault(t *testing.T) {
	store := session.NewStore(-1)
	id := "defaulted"

	for i := 0; i < session.DefaultMaxTurns+2; i++ {
		store.Append(id, session.Turn{Role: session.RoleUser, Text: fmt.Sprintf("turn %d", i)})
	}

	if got := len(store.History(id)); got != session.DefaultMaxTurns {
		t.Errorf("len(history) = %d, want %d", got, session.DefaultMaxTurns)
	}
}

func TestStoreDropsBlankTurns(t *testing.T) {
	store := session.NewStore(8)
	id := "blank"

	store.Append(id,
		session.Turn{Role: session.RoleUser, Text: "real"},
		session.Turn{Role: session.RoleModel, Text: "   "},
	)

	if got := store.History(id); len(got) != 1 {
		t.Errorf("len(history) = %d, want 1", len(got))
	}
}

func TestStoreHistoryIsCopy(t *testing.T) {
	store := session.NewStore(8)
	id := "copy"
	store.Append(id, session.Turn{Role: session.RoleUser, Text: "original"})

	history := store.History(id)
	history[0].Text = "mutated"

	if got := store.History(id); got[0].Text != "original" {
		t.Errorf("stored turn = %q, caller mutation leaked", got[0].Text)
	}
}

func TestStoreClear(t *testing.T) {
	store := session.NewStore(8)
	store.Append("a", session.Turn{Role: session.RoleUser, Text: "x"})
	store.Append("b", session.Turn{Role: session.RoleUser, Text: "y"})

	store.Clear("a")
	if got := store.History("a"); got != nil {
		t.Errorf("History(cleared) = %v", got)
	}
	if got := store.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	// Clearing an unknown session must not panic.
	store.Clear("missing")
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := session.NewStore(16)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", n%2)
			for j := 0; j < 50; j++ {
				store.Append(id, session.Turn{Role: session.RoleUser, Text: fmt.Sprintf("msg %d-%d", n, j)})
				store.History(id)
			}
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"session-0", "session-1"} {
		if got := len(store.History(id)); got != 16 {
			t.Errorf("len(History(%s)) = %d, want 16", id, got)
		}
	}
}
