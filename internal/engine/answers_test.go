package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
)

func TestAnswerStoreSetOverwritesAndQueues(t *testing.T) {
	persister := &fakePersister{}
	store := NewAnswerStore(uuid.New(), persister)
	qid := uuid.New()

	store.Set(qid, model.TextAnswer("first"))
	store.Set(qid, model.TextAnswer("second"))

	got, ok := store.Get(qid)
	if !ok || got.Text != "second" {
		t.Fatalf("Get() = %v, want overwritten value", got)
	}
	if persister.count() != 2 {
		t.Errorf("persist intents = %d, want 2 (one per mutation)", persister.count())
	}
}

func TestAnswerStoreIsAnswered(t *testing.T) {
	store := NewAnswerStore(uuid.New(), nil)
	qid := uuid.New()

	if store.IsAnswered(qid) {
		t.Error("unset question reported answered")
	}

	store.Set(qid, model.TextAnswer("   "))
	if store.IsAnswered(qid) {
		t.Error("whitespace-only answer reported answered")
	}

	store.Set(qid, model.PartsAnswer(map[string]string{"a": "", "b": ""}))
	if store.IsAnswered(qid) {
		t.Error("all-empty parts reported answered")
	}

	store.Set(qid, model.PartsAnswer(map[string]string{"a": "", "b": "x"}))
	if !store.IsAnswered(qid) {
		t.Error("partially filled parts not reported answered")
	}
}

func TestAnswerStoreFlagsToggleIndependently(t *testing.T) {
	store := NewAnswerStore(uuid.New(), nil)
	qid := uuid.New()

	if on := store.ToggleFlag(qid); !on {
		t.Error("first toggle = false, want true")
	}
	if !store.IsFlagged(qid) {
		t.Error("flag not set")
	}
	if on := store.ToggleFlag(qid); on {
		t.Error("second toggle = true, want false")
	}

	// Flagging never touches the answer.
	if _, ok := store.Get(qid); ok {
		t.Error("toggle created an answer value")
	}
}

func TestSnapshotFollowsOrderAndOmitsUnset(t *testing.T) {
	sessionID := uuid.New()
	store := NewAnswerStore(sessionID, nil)
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()

	store.Set(q3, model.TextAnswer("c"))
	store.Set(q1, model.TextAnswer("a"))

	snap := store.Snapshot([]uuid.UUID{q1, q2, q3})
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	if snap[0].QuestionID != q1 || snap[1].QuestionID != q3 {
		t.Errorf("snapshot order = [%s %s], want [q1 q3]", snap[0].QuestionID, snap[1].QuestionID)
	}
	if snap[0].SessionID != sessionID {
		t.Errorf("snapshot session = %s, want %s", snap[0].SessionID, sessionID)
	}

	// Mutations after the snapshot must not leak into it.
	store.Set(q1, model.TextAnswer("changed"))
	if snap[0].Value != "a" {
		t.Errorf("snapshot value mutated to %q", snap[0].Value)
	}
}

func TestRestoreSkipsFlagsAndBadIDs(t *testing.T) {
	store := NewAnswerStore(uuid.New(), nil)
	qid := uuid.New()

	store.Restore(map[string]string{
		qid.String(): "restored",
		"not-a-uuid": "dropped",
	})

	if got, ok := store.Get(qid); !ok || got.Text != "restored" {
		t.Fatalf("Get() = %v, want restored value", got)
	}
	if store.IsFlagged(qid) {
		t.Error("restore produced a flag")
	}
}
