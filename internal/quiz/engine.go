package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/p-n-ai/stream-course/internal/course"
	"github.com/p-n-ai/stream-course/internal/navigation"
	"github.com/p-n-ai/stream-course/internal/progress"
)

// Outcome is the result of submitting an attempt.
type Outcome struct {
	ChapterID       string  `json:"chapterId"`
	Score           float64 `json:"score"`
	Passed          bool    `json:"passed"`
	ModuleCompleted bool    `json:"moduleCompleted"`
	CourseCompleted bool    `json:"courseCompleted"`
	Message         string  `json:"message"`
}

// Engine applies quiz results to a progress store.
type Engine struct {
	store   progress.Store
	printer *message.Printer
}

// NewEngine creates a quiz engine writing to store.
func NewEngine(store progress.Store) *Engine {
	return &Engine{
		store:   store,
		printer: message.NewPrinter(language.English),
	}
}

// Submit scores the attempt. A pass marks the quiz chapter complete, then its
// module when the chapter is the module's last, and reports course completion
// when that module is the course's last. A fail mutates nothing. Navigation is
// never performed; see NextAfterPass.
func (e *Engine) Submit(ctx context.Context, userID string, c *course.Course, a *Attempt) (Outcome, error) {
	effects, err := navigation.CompletionEffects(c, a.ChapterID())
	if err != nil {
		return Outcome{}, err
	}

	score, err := a.submit()
	if errors.Is(err, ErrInvalidQuizDefinition) {
		return Outcome{}, navigation.Refuse(navigation.CodeInvalidQuiz, ErrInvalidQuizDefinition,
			"Quiz %q has no questions.", a.chapter.Title)
	}
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{ChapterID: a.ChapterID(), Score: score}
	if !Passes(score) {
		a.resolve(false)
		out.Message = e.printer.Sprintf("Quiz failed. Score: %.0f%%. Please review and retry.", score)
		return out, nil
	}

	for _, id := range effects.Entities() {
		if _, err := e.store.MarkComplete(ctx, userID, id); err != nil {
			// Back to Unanswered so the same answers can be resubmitted.
			a.state = Unanswered
			return Outcome{}, fmt.Errorf("marking %s complete: %w", id, err)
		}
	}
	a.resolve(true)

	out.Passed = true
	out.ModuleCompleted = effects.CompletesModule()
	out.CourseCompleted = effects.CompletesCourse()
	switch {
	case out.CourseCompleted:
		out.Message = "🎉 Congratulations! You have completed the entire course!"
	case out.ModuleCompleted:
		out.Message = fmt.Sprintf("🎉 Module %q complete! The next module is unlocked.", effects.ModuleName)
	default:
		out.Message = e.printer.Sprintf("Quiz passed! Score: %.0f%%", score)
	}

	slog.Info("quiz passed",
		"user_id", userID,
		"chapter_id", out.ChapterID,
		"score", score,
		"module_completed", out.ModuleCompleted,
		"course_completed", out.CourseCompleted,
	)
	return out, nil
}

// NextAfterPass returns where the "next" action of a passed quiz leads: the
// congratulations page for a quiz in the last module, otherwise the regular
// navigation successor.
func (e *Engine) NextAfterPass(c *course.Course, p navigation.Progress, a *Attempt) (navigation.Intent, error) {
	if a.State() != Passed {
		return navigation.Intent{}, navigation.Refuse(navigation.CodeQuizRequired, ErrInvalidTransition,
			"Pass the quiz %q to continue.", a.chapter.Title)
	}
	pos, ok := c.Locate(a.ChapterID())
	if !ok {
		return navigation.Intent{}, navigation.Refuse(navigation.CodeUnknownChapter, navigation.ErrUnknownChapter,
			"Chapter %q does not exist.", a.ChapterID())
	}
	if c.IsLastModule(pos.Module) {
		return navigation.Intent{Page: navigation.PageCongratulations, Finished: navigation.CourseComplete(c, p)}, nil
	}
	return navigation.Advance(c, p, a.ChapterID())
}
