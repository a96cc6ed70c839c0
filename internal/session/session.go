package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/p-n-ai/stream-course/internal/certificate"
	"github.com/p-n-ai/stream-course/internal/course"
	"github.com/p-n-ai/stream-course/internal/navigation"
	"github.com/p-n-ai/stream-course/internal/notify"
	"github.com/p-n-ai/stream-course/internal/progress"
	"github.com/p-n-ai/stream-course/internal/quiz"
	"github.com/p-n-ai/stream-course/internal/team"
)

// State is whether a session has its course and progress resident.
type State int

const (
	NotReady State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "not_ready"
}

// MarshalText encodes the state as its string form.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is one signed-in user's application context. Operations run one
// at a time.
type Session struct {
	ctrl   *Controller
	userID string

	mu       sync.Mutex
	team     *team.Account
	course   *course.Course
	attempts map[string]*quiz.Attempt

	// recMu guards record separately: it is updated from inside
	// MarkComplete while mu is held.
	recMu  sync.Mutex
	record progress.Record
	ready  bool
}

func newSession(ctrl *Controller, userID string) *Session {
	return &Session{
		ctrl:     ctrl,
		userID:   userID,
		attempts: make(map[string]*quiz.Attempt),
	}
}

func (s *Session) setTeam(t team.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.team = &t
}

func (s *Session) setReady(c *course.Course, rec progress.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.course = c
	s.recMu.Lock()
	s.record = rec
	s.ready = true
	s.recMu.Unlock()
}

func (s *Session) apply(entityID string) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.ready {
		s.record = s.record.With(entityID)
	}
}

func (s *Session) snapshot() progress.Record {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	return s.record
}

// UserID returns the id of the signed-in account.
func (s *Session) UserID() string { return s.userID }

// State reports whether the session is ready.
func (s *Session) State() State {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.ready {
		return Ready
	}
	return NotReady
}

// Team returns the team record, if one was found at establishment.
func (s *Session) Team() (team.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.team == nil {
		return team.Account{}, false
	}
	return *s.team, true
}

// requireReady returns the resident course. s.mu must be held.
func (s *Session) requireReady() (*course.Course, error) {
	if s.State() != Ready {
		return nil, navigation.Refuse(navigation.CodeNotReady, ErrNotReady, "Your course is not loaded yet.")
	}
	return s.course, nil
}

func (s *Session) notify(ctx context.Context, level notify.Level, message string) {
	s.ctrl.notifier.Notify(ctx, s.userID, level, message)
}

// Overview is the dashboard content.
type Overview struct {
	State   State               `json:"state"`
	Team    *team.Account       `json:"team,omitempty"`
	Outline *navigation.Outline `json:"outline,omitempty"`
}

// Overview returns the dashboard. A NotReady session reports its state and,
// if loaded, its team, but no course.
func (s *Session) Overview() Overview {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := Overview{State: s.State(), Team: s.team}
	if o.State == Ready {
		outline := navigation.BuildOutline(s.course, s.snapshot())
		o.Outline = &outline
	}
	return o
}

// Outline returns the course outline with unlock and completion flags.
func (s *Session) Outline() (navigation.Outline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return navigation.Outline{}, err
	}
	return navigation.BuildOutline(c, s.snapshot()), nil
}

// ChapterView is a chapter as presented to the user. Quiz questions are
// served through Quiz so correct answers never leave the server.
type ChapterView struct {
	course.Chapter
	ModuleID   string `json:"moduleId"`
	ModuleName string `json:"moduleName"`
	Complete   bool   `json:"complete"`
	HasNext    bool   `json:"hasNext"`
}

// Chapter returns a chapter in an unlocked module.
func (s *Session) Chapter(chapterID string) (ChapterView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return ChapterView{}, err
	}
	rec := s.snapshot()
	pos, err := navigation.CheckAccess(c, rec, chapterID)
	if err != nil {
		return ChapterView{}, err
	}

	m := c.Modules[pos.Module]
	v := ChapterView{
		Chapter:    m.Chapters[pos.Chapter],
		ModuleID:   m.ID,
		ModuleName: m.Name,
		Complete:   rec.IsComplete(chapterID),
	}
	v.Questions = nil
	step, err := navigation.FindNext(c, rec, chapterID)
	v.HasNext = err == nil && step.Kind != navigation.StepEnd
	return v, nil
}

// Completion is the result of completing a chapter.
type Completion struct {
	ChapterID       string `json:"chapterId"`
	Changed         bool   `json:"changed"`
	ModuleCompleted bool   `json:"moduleCompleted"`
	CourseCompleted bool   `json:"courseCompleted"`
	Message         string `json:"message,omitempty"`
}

// CompleteChapter marks a non-quiz chapter complete, and its module when it
// is the module's last chapter.
func (s *Session) CompleteChapter(ctx context.Context, chapterID string) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return Completion{}, err
	}
	pos, err := navigation.CheckAccess(c, s.snapshot(), chapterID)
	if err != nil {
		s.notify(ctx, notify.Error, err.Error())
		return Completion{}, err
	}
	ch := c.Modules[pos.Module].Chapters[pos.Chapter]
	if ch.IsQuiz() {
		return Completion{}, navigation.Refuse(navigation.CodeQuizRequired, quiz.ErrInvalidTransition,
			"Pass the quiz %q to complete it.", ch.Title)
	}

	effects, err := navigation.CompletionEffects(c, chapterID)
	if err != nil {
		return Completion{}, err
	}

	out := Completion{ChapterID: chapterID}
	for _, id := range effects.Entities() {
		changed, err := s.ctrl.progress.MarkComplete(ctx, s.userID, id)
		if err != nil {
			slog.Error("failed to mark complete", "user_id", s.userID, "entity_id", id, "error", err)
			s.notify(ctx, notify.Error, msgSaveFailed)
			return Completion{}, fmt.Errorf("mark %s complete: %w", id, err)
		}
		if id == chapterID {
			out.Changed = changed
		}
	}

	rec := s.snapshot()
	out.ModuleCompleted = effects.CompletesModule()
	out.CourseCompleted = navigation.CourseComplete(c, rec)
	if out.Changed {
		out.Message = fmt.Sprintf("Chapter %q marked as complete!", ch.Title)
		s.notify(ctx, notify.Info, out.Message)
	}
	return out, nil
}

// Next returns where "next" leads from a completed non-quiz chapter.
func (s *Session) Next(ctx context.Context, chapterID string) (navigation.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return navigation.Intent{}, err
	}
	rec := s.snapshot()
	pos, err := navigation.CheckAccess(c, rec, chapterID)
	if err != nil {
		return navigation.Intent{}, err
	}
	ch := c.Modules[pos.Module].Chapters[pos.Chapter]
	if !rec.IsComplete(chapterID) {
		code := navigation.CodeIncomplete
		if ch.IsQuiz() {
			code = navigation.CodeQuizRequired
		}
		return navigation.Intent{}, navigation.Refuse(code, quiz.ErrInvalidTransition,
			"Complete %q before moving on.", ch.Title)
	}

	intent, err := navigation.Advance(c, rec, chapterID)
	switch {
	case errors.Is(err, navigation.ErrNoSuccessor):
		slog.Error("course data inconsistency", "user_id", s.userID, "course_id", c.ID, "chapter_id", chapterID)
		s.notify(ctx, notify.Error, err.Error())
		return navigation.Intent{}, err
	case err != nil:
		s.notify(ctx, notify.Error, err.Error())
		return navigation.Intent{}, err
	case intent.Finished:
		s.notify(ctx, notify.Info, "Congratulations! You've finished all the chapters.")
	}
	return intent, nil
}

// attempt returns the current attempt for a quiz chapter, starting one if
// needed. s.mu must be held.
func (s *Session) attempt(c *course.Course, chapterID string) (*quiz.Attempt, error) {
	pos, err := navigation.CheckAccess(c, s.snapshot(), chapterID)
	if err != nil {
		return nil, err
	}
	if a, ok := s.attempts[chapterID]; ok {
		return a, nil
	}
	a, err := quiz.NewAttempt(&c.Modules[pos.Module].Chapters[pos.Chapter])
	if err != nil {
		return nil, err
	}
	s.attempts[chapterID] = a
	return a, nil
}

// Quiz returns the current attempt of a quiz chapter.
func (s *Session) Quiz(chapterID string) (quiz.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return quiz.View{}, err
	}
	a, err := s.attempt(c, chapterID)
	if err != nil {
		return quiz.View{}, err
	}
	return a.View(), nil
}

// SelectAnswer records an answer on an unanswered attempt.
func (s *Session) SelectAnswer(chapterID string, index int, option string) (quiz.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return quiz.View{}, err
	}
	a, err := s.attempt(c, chapterID)
	if err != nil {
		return quiz.View{}, err
	}
	if err := a.Select(index, option); err != nil {
		return quiz.View{}, err
	}
	return a.View(), nil
}

// SubmitQuiz scores the attempt and applies a pass to progress.
func (s *Session) SubmitQuiz(ctx context.Context, chapterID string) (quiz.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return quiz.Outcome{}, err
	}
	a, err := s.attempt(c, chapterID)
	if err != nil {
		return quiz.Outcome{}, err
	}

	out, err := s.ctrl.quiz.Submit(ctx, s.userID, c, a)
	var refusal *navigation.Refusal
	switch {
	case errors.As(err, &refusal):
		s.notify(ctx, notify.Error, refusal.Message)
		return quiz.Outcome{}, err
	case err != nil && !errors.Is(err, quiz.ErrInvalidTransition):
		slog.Error("failed to record quiz pass", "user_id", s.userID, "chapter_id", chapterID, "error", err)
		s.notify(ctx, notify.Error, msgSaveFailed)
		return quiz.Outcome{}, err
	case err != nil:
		return quiz.Outcome{}, err
	}

	level := notify.Info
	if !out.Passed {
		level = notify.Error
	}
	s.notify(ctx, level, out.Message)
	return out, nil
}

// RetryQuiz clears a failed attempt.
func (s *Session) RetryQuiz(chapterID string) (quiz.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return quiz.View{}, err
	}
	a, err := s.attempt(c, chapterID)
	if err != nil {
		return quiz.View{}, err
	}
	if err := a.Retry(); err != nil {
		return quiz.View{}, err
	}
	return a.View(), nil
}

// QuizNext returns where "next" leads from a passed quiz.
func (s *Session) QuizNext(ctx context.Context, chapterID string) (navigation.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.requireReady()
	if err != nil {
		return navigation.Intent{}, err
	}
	a, err := s.attempt(c, chapterID)
	if err != nil {
		return navigation.Intent{}, err
	}
	intent, err := s.ctrl.quiz.NextAfterPass(c, s.snapshot(), a)
	if err != nil {
		s.notify(ctx, notify.Error, err.Error())
		return navigation.Intent{}, err
	}
	return intent, nil
}

// Certificates returns one certificate per student once the course is
// complete.
func (s *Session) Certificates() ([]certificate.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.certificates()
}

func (s *Session) certificates() ([]certificate.View, error) {
	c, err := s.requireReady()
	if err != nil {
		return nil, err
	}
	if !navigation.CourseComplete(c, s.snapshot()) {
		return nil, navigation.Refuse(navigation.CodeCourseIncomplete, ErrCourseIncomplete,
			"Complete every module to unlock your certificates.")
	}
	return certificate.Views(*s.team, c.Name, s.ctrl.now()), nil
}

// WriteCertificatePNG renders the certificate of student index.
func (s *Session) WriteCertificatePNG(w io.Writer, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	views, err := s.certificates()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(views) {
		return fmt.Errorf("certificate %d: %w", index, ErrNoCertificate)
	}
	return s.ctrl.renderer.RenderPNG(w, views[index])
}

// WriteCertificatesPDF writes every certificate as one PDF.
func (s *Session) WriteCertificatesPDF(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	views, err := s.certificates()
	if err != nil {
		return err
	}
	return certificate.ExportPDF(w, s.ctrl.renderer, views)
}

// WriteRoster writes the certificate roster workbook.
func (s *Session) WriteRoster(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	views, err := s.certificates()
	if err != nil {
		return err
	}
	return certificate.ExportRoster(w, views)
}
