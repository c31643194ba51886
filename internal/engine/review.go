package engine

import (
	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
)

// ReviewSummary partitions the exam's questions for the review dialog.
// Answered and unanswered are exhaustive (they sum to total); flagged is an
// independent overlay, so a flagged question may also be answered.
type ReviewSummary struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Flagged    int `json:"flagged"`
}

// JumpTarget is where the host UI should land for a jump-to-question
// request. The aggregator computes targets only; scroll and focus belong
// to the UI layer.
type JumpTarget struct {
	SectionID  uuid.UUID `json:"section_id"`
	QuestionID uuid.UUID `json:"question_id"`
}

// Reviewer computes review aggregates over the paper, the answer store,
// and the flag set. Pure reads: it holds no state of its own.
type Reviewer struct {
	questions []model.Question
	store     *AnswerStore
	nav       *Navigator
}

// NewReviewer builds a reviewer over all questions of the available
// sections in display order.
func NewReviewer(paper *model.ExamPaper, store *AnswerStore, nav *Navigator) *Reviewer {
	var qs []model.Question
	for i := range paper.Sections {
		qs = append(qs, paper.Sections[i].Questions()...)
	}
	return &Reviewer{questions: qs, store: store, nav: nav}
}

// Summarize counts answered, unanswered, and flagged questions.
func (r *Reviewer) Summarize() ReviewSummary {
	sum := ReviewSummary{Total: len(r.questions)}
	for _, q := range r.questions {
		if r.store.IsAnswered(q.ID) {
			sum.Answered++
		}
		if r.store.IsFlagged(q.ID) {
			sum.Flagged++
		}
	}
	sum.Unanswered = sum.Total - sum.Answered
	return sum
}

// JumpTo resolves a question into its navigation target and moves the
// navigator there with the question focused.
func (r *Reviewer) JumpTo(questionID uuid.UUID) (JumpTarget, error) {
	sectionID, err := r.nav.SectionOf(questionID)
	if err != nil {
		return JumpTarget{}, err
	}
	if err := r.nav.GoToQuestion(questionID); err != nil {
		return JumpTarget{}, err
	}
	return JumpTarget{SectionID: sectionID, QuestionID: questionID}, nil
}

// QuestionOrder returns the IDs of all questions in display order, used
// for deterministic answer snapshots.
func (r *Reviewer) QuestionOrder() []uuid.UUID {
	order := make([]uuid.UUID, len(r.questions))
	for i, q := range r.questions {
		order[i] = q.ID
	}
	return order
}
