package engine

import (
	"sync"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
)

// Navigator tracks which section of the exam is currently visible. Exactly
// one section is current at all times once constructed; transitions clamp
// at the boundaries instead of wrapping.
type Navigator struct {
	mu       sync.Mutex
	sections []model.Section
	idx      int

	// focus is the highlighted question within the current section, set
	// only by targeted jumps. Plain section switches clear it.
	focus uuid.UUID

	bySection  map[uuid.UUID]int
	byQuestion map[uuid.UUID]int
}

// NewNavigator builds a navigator over the available sections in exam
// order. The caller guarantees at least one section.
func NewNavigator(sections []model.Section) *Navigator {
	n := &Navigator{
		sections:   sections,
		bySection:  make(map[uuid.UUID]int, len(sections)),
		byQuestion: make(map[uuid.UUID]int),
	}
	for i := range sections {
		n.bySection[sections[i].ID] = i
		for _, q := range sections[i].Questions() {
			n.byQuestion[q.ID] = i
		}
	}
	return n
}

// Current returns the visible section.
func (n *Navigator) Current() model.Section {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sections[n.idx]
}

// Next advances to the following section; no-op on the last one.
func (n *Navigator) Next() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.idx < len(n.sections)-1 {
		n.idx++
		n.focus = uuid.Nil
	}
}

// Previous steps back one section; no-op on the first one.
func (n *Navigator) Previous() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.idx > 0 {
		n.idx--
		n.focus = uuid.Nil
	}
}

// GoTo jumps to a section by ID. Idempotent; jumping to the current
// section still clears the transient focus.
func (n *Navigator) GoTo(sectionID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.bySection[sectionID]
	if !ok {
		return ErrNotFound
	}
	n.idx = i
	n.focus = uuid.Nil
	return nil
}

// GoToQuestion jumps to the section owning the question and marks it as
// the focused question. Used by review navigation.
func (n *Navigator) GoToQuestion(questionID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.byQuestion[questionID]
	if !ok {
		return ErrNotFound
	}
	n.idx = i
	n.focus = questionID
	return nil
}

// Focus returns the targeted question of the last jump, if any.
func (n *Navigator) Focus() (uuid.UUID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focus, n.focus != uuid.Nil
}

// SectionOf returns the ID of the section owning a question.
func (n *Navigator) SectionOf(questionID uuid.UUID) (uuid.UUID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	i, ok := n.byQuestion[questionID]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return n.sections[i].ID, nil
}
