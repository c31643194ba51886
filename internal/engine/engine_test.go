package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linguaprep/examroom-backend/internal/model"
	"github.com/rs/zerolog"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type fakePersister struct {
	mu      sync.Mutex
	intents []PersistIntent
}

func (p *fakePersister) Queue(intent PersistIntent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents = append(p.intents, intent)
}

func (p *fakePersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.intents)
}

type fakeFinalizer struct {
	mu       sync.Mutex
	failures int // fail this many calls before succeeding
	calls    int
	got      []model.SessionAnswer
}

func (f *fakeFinalizer) Finalize(ctx context.Context, sessionID uuid.UUID, answers []model.SessionAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("storage unavailable")
	}
	f.got = answers
	return nil
}

func (f *fakeFinalizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFinalizer) answers() []model.SessionAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

type fakeRecording struct {
	mu        sync.Mutex
	data      []byte
	samples   chan float64
	stopped   bool
	discarded bool
}

func newFakeRecording(data []byte) *fakeRecording {
	return &fakeRecording{data: data, samples: make(chan float64)}
}

func (r *fakeRecording) Samples() <-chan float64 { return r.samples }

func (r *fakeRecording) Stop() ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped && !r.discarded {
		close(r.samples)
	}
	r.stopped = true
	return r.data, "audio/webm", nil
}

func (r *fakeRecording) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped && !r.discarded {
		close(r.samples)
	}
	r.discarded = true
}

func (r *fakeRecording) wasDiscarded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discarded
}

type fakeDevice struct {
	mu         sync.Mutex
	granted    bool
	permErr    error
	acquireErr error
	probes     int
	recordings []*fakeRecording
}

func (d *fakeDevice) RequestPermission(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.probes++
	return d.granted, d.permErr
}

func (d *fakeDevice) Acquire(ctx context.Context) (Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	rec := newFakeRecording([]byte("opus-frames"))
	d.recordings = append(d.recordings, rec)
	return rec, nil
}

func (d *fakeDevice) probeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probes
}

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	uploads int
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, mime string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.uploads++
	return fmt.Sprintf("/uploads/rec-%d.webm", u.uploads), nil
}

type fakeRecognizer struct {
	frags chan string
}

func (r *fakeRecognizer) Fragments(ctx context.Context) (<-chan string, error) {
	return r.frags, nil
}

// ─── Paper builder ──────────────────────────────────────────────────

// testPaper builds a paper with one section per entry, each holding the
// given number of SHORT_ANSWER questions in a single group.
func testPaper(questionsPerSection ...int) (*model.ExamPaper, []uuid.UUID) {
	examID := uuid.New()
	paper := &model.ExamPaper{
		ExamID:          examID,
		Title:           "Mock Test",
		DurationMinutes: 1,
	}

	var order []uuid.UUID
	for si, count := range questionsPerSection {
		section := model.Section{
			ID:         uuid.New(),
			ExamID:     examID,
			Type:       model.SectionTypeReading,
			Title:      fmt.Sprintf("Section %d", si+1),
			OrderIndex: si,
		}
		group := model.QuestionGroup{ID: uuid.New(), SectionID: section.ID}
		for qi := 0; qi < count; qi++ {
			q := model.Question{
				ID:         uuid.New(),
				Type:       model.QuestionTypeShortAnswer,
				Text:       fmt.Sprintf("Q%d.%d", si+1, qi+1),
				Points:     1,
				OrderIndex: qi,
			}
			group.Questions = append(group.Questions, q)
			order = append(order, q.ID)
		}
		section.Groups = []model.QuestionGroup{group}
		paper.Sections = append(paper.Sections, section)
	}
	return paper, order
}

// testSession returns an open session whose deadline lies remaining from
// now (the paper duration is one minute).
func testSession(remaining time.Duration) model.ExamSession {
	return model.ExamSession{
		ID:        uuid.New(),
		ExamID:    uuid.New(),
		StudentID: 7,
		Status:    model.SessionStatusInProgress,
		StartedAt: time.Now().Add(remaining - time.Minute),
	}
}

func testConfig(paper *model.ExamPaper, remaining time.Duration) Config {
	return Config{
		Session:      testSession(remaining),
		Paper:        paper,
		Persister:    &fakePersister{},
		Finalizer:    &fakeFinalizer{},
		Device:       &fakeDevice{granted: true},
		Uploader:     &fakeUploader{},
		TickInterval: 10 * time.Millisecond,
		Log:          zerolog.Nop(),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ─── Construction ───────────────────────────────────────────────────

func TestNewRejectsClosedSession(t *testing.T) {
	paper, _ := testPaper(3)
	cfg := testConfig(paper, time.Minute)
	cfg.Session.Status = model.SessionStatusSubmitted

	if _, err := New(cfg); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("New() error = %v, want ErrSessionClosed", err)
	}
}

func TestNewRejectsEmptyPaper(t *testing.T) {
	cfg := testConfig(&model.ExamPaper{DurationMinutes: 1}, time.Minute)

	if _, err := New(cfg); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("New() error = %v, want ErrEmptyContent", err)
	}
}

func TestRestorePreloadsAnswersWithoutPersisting(t *testing.T) {
	paper, order := testPaper(3)
	cfg := testConfig(paper, time.Minute)
	persister := &fakePersister{}
	cfg.Persister = persister
	cfg.SavedAnswers = map[string]string{
		order[0].String(): "saved text",
		order[1].String(): `{"a":"1","b":""}`,
	}

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got, _ := eng.Answers.Get(order[0]); got.Text != "saved text" {
		t.Errorf("restored text = %q, want %q", got.Text, "saved text")
	}
	if got, _ := eng.Answers.Get(order[1]); got.Parts["a"] != "1" {
		t.Errorf("restored parts = %v, want a=1", got.Parts)
	}
	if persister.count() != 0 {
		t.Errorf("restore queued %d persist intents, want 0", persister.count())
	}
}

// ─── Full session scenario ──────────────────────────────────────────

func TestSessionRunsToTimeoutSubmission(t *testing.T) {
	paper, order := testPaper(5, 3)
	cfg := testConfig(paper, 100*time.Millisecond)
	finalizer := &fakeFinalizer{}
	cfg.Finalizer = finalizer

	var triggers []SubmitTrigger
	var mu sync.Mutex
	cfg.OnSubmitted = func(trigger SubmitTrigger) {
		mu.Lock()
		triggers = append(triggers, trigger)
		mu.Unlock()
	}

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Answer four questions in section 1 and one in section 2.
	for _, qid := range order[:4] {
		if err := eng.SetAnswer(qid, model.TextAnswer("answer")); err != nil {
			t.Fatalf("SetAnswer() error = %v", err)
		}
	}
	if err := eng.SetAnswer(order[5], model.TextAnswer("late answer")); err != nil {
		t.Fatalf("SetAnswer() error = %v", err)
	}
	if _, err := eng.ToggleFlag(order[4]); err != nil {
		t.Fatalf("ToggleFlag() error = %v", err)
	}

	sum := eng.Review.Summarize()
	if sum.Total != 8 || sum.Answered != 5 || sum.Unanswered != 3 || sum.Flagged != 1 {
		t.Fatalf("summary = %+v, want total 8 answered 5 unanswered 3 flagged 1", sum)
	}

	eng.Start()
	waitFor(t, "timeout submission", func() bool { return eng.Coordinator.State() == SubmitDone })

	if finalizer.callCount() != 1 {
		t.Errorf("finalizer calls = %d, want 1", finalizer.callCount())
	}
	answers := finalizer.answers()
	if len(answers) != 5 {
		t.Fatalf("finalized answers = %d, want 5", len(answers))
	}
	// Snapshot follows display order.
	for i, want := range []uuid.UUID{order[0], order[1], order[2], order[3], order[5]} {
		if answers[i].QuestionID != want {
			t.Errorf("answers[%d].QuestionID = %s, want %s", i, answers[i].QuestionID, want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(triggers) != 1 || triggers[0] != TriggerTimeout {
		t.Errorf("triggers = %v, want exactly one timeout", triggers)
	}

	// Terminal state rejects further mutations.
	if err := eng.SetAnswer(order[6], model.TextAnswer("too late")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SetAnswer() after submit error = %v, want ErrSessionClosed", err)
	}
	if _, err := eng.ToggleFlag(order[6]); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ToggleFlag() after submit error = %v, want ErrSessionClosed", err)
	}
}

func TestManualAndTimeoutSubmitCoalesce(t *testing.T) {
	paper, order := testPaper(2)
	cfg := testConfig(paper, 50*time.Millisecond)
	finalizer := &fakeFinalizer{}
	cfg.Finalizer = finalizer

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = eng.SetAnswer(order[0], model.TextAnswer("x"))
	eng.Start()

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Let the timer pass the deadline; its expiry must coalesce.
	time.Sleep(150 * time.Millisecond)

	if finalizer.callCount() != 1 {
		t.Errorf("finalizer calls = %d, want 1", finalizer.callCount())
	}
}

func TestResumePastDeadlineSubmitsImmediately(t *testing.T) {
	paper, order := testPaper(2)
	cfg := testConfig(paper, -5*time.Second)
	finalizer := &fakeFinalizer{}
	cfg.Finalizer = finalizer
	cfg.SavedAnswers = map[string]string{order[0].String(): "from last time"}

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	eng.Start()

	waitFor(t, "immediate expiry", func() bool { return eng.Coordinator.State() == SubmitDone })
	if finalizer.callCount() != 1 {
		t.Errorf("finalizer calls = %d, want 1", finalizer.callCount())
	}
	if got := finalizer.answers(); len(got) != 1 || got[0].Value != "from last time" {
		t.Errorf("finalized answers = %v, want the restored one", got)
	}
}

func TestFailedSubmitCanBeRetried(t *testing.T) {
	paper, order := testPaper(2)
	cfg := testConfig(paper, time.Minute)
	finalizer := &fakeFinalizer{failures: 3}
	cfg.Finalizer = finalizer

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_ = eng.SetAnswer(order[0], model.TextAnswer("keep me"))

	for i := 0; i < 3; i++ {
		if err := eng.Submit(context.Background()); !errors.Is(err, ErrRetryablePersistence) {
			t.Fatalf("Submit() attempt %d error = %v, want ErrRetryablePersistence", i+1, err)
		}
		if eng.Coordinator.State() != SubmitIdle {
			t.Fatalf("state after failed attempt %d = %s, want idle", i+1, eng.Coordinator.State())
		}
		// Answers survive failed attempts.
		if _, ok := eng.Answers.Get(order[0]); !ok {
			t.Fatal("answer lost after failed submit")
		}
	}

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("final Submit() error = %v", err)
	}
	if eng.Coordinator.State() != SubmitDone {
		t.Fatalf("state = %s, want submitted", eng.Coordinator.State())
	}
	if finalizer.callCount() != 4 {
		t.Errorf("finalizer calls = %d, want 4", finalizer.callCount())
	}
}

func TestRecordingFlowBindsArtifactAnswer(t *testing.T) {
	paper, order := testPaper(2)
	cfg := testConfig(paper, time.Minute)
	device := &fakeDevice{granted: true}
	cfg.Device = device

	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := eng.StartRecording(context.Background(), order[0]); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	url, err := eng.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if url == "" {
		t.Fatal("StopRecording() returned empty URL")
	}

	got, ok := eng.Answers.Get(order[0])
	if !ok || got.Text != url {
		t.Errorf("answer = %v, want artifact URL %q", got, url)
	}
	if !eng.Answers.IsAnswered(order[0]) {
		t.Error("speaking question not counted as answered")
	}
}
