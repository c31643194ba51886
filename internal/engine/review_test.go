package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
)

func newReviewFixture(t *testing.T, counts ...int) (*Reviewer, *AnswerStore, *Navigator, []uuid.UUID) {
	t.Helper()
	paper, order := testPaper(counts...)
	store := NewAnswerStore(uuid.New(), nil)
	nav := NewNavigator(paper.Sections)
	return NewReviewer(paper, store, nav), store, nav, order
}

func TestSummarizePartitionsQuestions(t *testing.T) {
	review, store, _, order := newReviewFixture(t, 3, 2)

	store.Set(order[0], model.TextAnswer("a"))
	store.Set(order[3], model.TextAnswer("b"))
	store.ToggleFlag(order[0]) // answered AND flagged
	store.ToggleFlag(order[4]) // unanswered and flagged

	sum := review.Summarize()
	if sum.Total != 5 {
		t.Errorf("Total = %d, want 5", sum.Total)
	}
	if sum.Answered != 2 || sum.Unanswered != 3 {
		t.Errorf("Answered/Unanswered = %d/%d, want 2/3", sum.Answered, sum.Unanswered)
	}
	if sum.Flagged != 2 {
		t.Errorf("Flagged = %d, want 2", sum.Flagged)
	}
	if sum.Answered+sum.Unanswered != sum.Total {
		t.Error("answered and unanswered do not partition the total")
	}
}

func TestSummarizeEmptyAnswerDoesNotCount(t *testing.T) {
	review, store, _, order := newReviewFixture(t, 2)

	store.Set(order[0], model.TextAnswer("  "))
	if sum := review.Summarize(); sum.Answered != 0 {
		t.Errorf("Answered = %d, want 0 for whitespace answer", sum.Answered)
	}
}

func TestJumpToMovesNavigator(t *testing.T) {
	review, _, nav, order := newReviewFixture(t, 2, 2)

	target, err := review.JumpTo(order[2])
	if err != nil {
		t.Fatalf("JumpTo() error = %v", err)
	}
	if target.QuestionID != order[2] {
		t.Errorf("target question = %s, want %s", target.QuestionID, order[2])
	}
	if nav.Current().ID != target.SectionID {
		t.Error("navigator not on the target section")
	}
	if focus, ok := nav.Focus(); !ok || focus != order[2] {
		t.Error("target question not focused")
	}
}

func TestQuestionOrderIsStable(t *testing.T) {
	review, _, _, order := newReviewFixture(t, 3, 2)

	got := review.QuestionOrder()
	if len(got) != len(order) {
		t.Fatalf("order len = %d, want %d", len(got), len(order))
	}
	for i := range order {
		if got[i] != order[i] {
			t.Fatalf("order[%d] = %s, want %s", i, got[i], order[i])
		}
	}
}
