package quiz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/stream-course/internal/course"
	"github.com/p-n-ai/stream-course/internal/navigation"
	"github.com/p-n-ai/stream-course/internal/progress"
	"github.com/p-n-ai/stream-course/internal/quiz"
)

var questions = []course.Question{
	{Prompt: "2+2", Options: []string{"3", "4"}, Correct: "4"},
	{Prompt: "Capital of Malaysia", Options: []string{"Kuala Lumpur", "Penang"}, Correct: "Kuala Lumpur"},
}

// twoModuleCourse: module A has one task chapter, module B one quiz chapter.
func twoModuleCourse() *course.Course {
	return &course.Course{
		ID:   "6",
		Name: "STREAM",
		Modules: []course.Module{
			{ID: "mod-a", Name: "A", Chapters: []course.Chapter{
				{ID: "task-a", Title: "Build", Type: course.TypeTask},
			}},
			{ID: "mod-b", Name: "B", Chapters: []course.Chapter{
				{ID: "quiz-b", Title: "Check", Type: course.TypeQuiz, Questions: questions},
			}},
		},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    float64
	}{
		{"all correct", []string{"4", "Kuala Lumpur"}, 100},
		{"none correct", []string{"3", "Penang"}, 0},
		{"half", []string{"4", "Penang"}, 50},
		{"unanswered counts wrong", []string{"4", ""}, 50},
		{"short answer slice", []string{"4"}, 50},
		{"no answers", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := quiz.Score(questions, tt.answers)
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	qs := make([]course.Question, 5)
	for i := range qs {
		qs[i] = course.Question{Options: []string{"x", "y"}, Correct: "y"}
	}
	prev := -1.0
	for n := 0; n <= len(qs); n++ {
		answers := make([]string, len(qs))
		for i := 0; i < n; i++ {
			answers[i] = "y"
		}
		got, _ := quiz.Score(qs, answers)
		if got <= prev {
			t.Errorf("Score with %d correct = %v, not above %v", n, got, prev)
		}
		prev = got
	}
}

func TestScore_ZeroQuestions(t *testing.T) {
	if _, err := quiz.Score(nil, nil); !errors.Is(err, quiz.ErrInvalidQuizDefinition) {
		t.Errorf("error = %v, want ErrInvalidQuizDefinition", err)
	}
}

func TestPasses(t *testing.T) {
	tests := []struct {
		score float64
		want  bool
	}{
		{79.99, false},
		{80, true},
		{100, true},
		{0, false},
	}
	for _, tt := range tests {
		if got := quiz.Passes(tt.score); got != tt.want {
			t.Errorf("Passes(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestNewAttempt_NotQuiz(t *testing.T) {
	c := twoModuleCourse()
	if _, err := quiz.NewAttempt(&c.Modules[0].Chapters[0]); !errors.Is(err, quiz.ErrNotQuiz) {
		t.Errorf("error = %v, want ErrNotQuiz", err)
	}
}

func TestAttempt_Select(t *testing.T) {
	c := twoModuleCourse()
	a, _ := quiz.NewAttempt(&c.Modules[1].Chapters[0])

	if err := a.Select(0, "4"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := a.Select(5, "4"); err == nil {
		t.Error("Select() out of range should error")
	}
	if err := a.Select(1, "Ipoh"); err == nil {
		t.Error("Select() with an option not offered should error")
	}
	if got := a.Answers(); got[0] != "4" || got[1] != "" {
		t.Errorf("Answers() = %v", got)
	}
}

func TestSubmit_Scenario(t *testing.T) {
	ctx := t.Context()
	c := twoModuleCourse()
	store := progress.NewMemoryStore()
	engine := quiz.NewEngine(store)

	effects, _ := navigation.CompletionEffects(c, "task-a")
	for _, id := range effects.Entities() {
		_, _ = store.MarkComplete(ctx, "u", id)
	}
	rec, _ := store.GetOrInit(ctx, "u")
	if !navigation.IsModuleUnlocked(c, rec, 1) {
		t.Fatal("completing A's only chapter should unlock B")
	}

	a, _ := quiz.NewAttempt(&c.Modules[1].Chapters[0])
	_ = a.Select(0, "4")
	_ = a.Select(1, "Penang")

	out, err := engine.Submit(ctx, "u", c, a)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out.Passed || out.Score != 50 || a.State() != quiz.Failed {
		t.Fatalf("outcome = %+v, state = %v; want failed at 50", out, a.State())
	}
	if out.Message != "Quiz failed. Score: 50%. Please review and retry." {
		t.Errorf("Message = %q", out.Message)
	}
	rec, _ = store.GetOrInit(ctx, "u")
	if rec.IsComplete("quiz-b") || navigation.CourseComplete(c, rec) {
		t.Fatal("a failed quiz must not complete anything")
	}

	if err := a.Retry(); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got := a.Answers(); got[0] != "" || got[1] != "" {
		t.Errorf("Retry() should clear answers, got %v", got)
	}
	_ = a.Select(0, "4")
	_ = a.Select(1, "Kuala Lumpur")

	out, err = engine.Submit(ctx, "u", c, a)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !out.Passed || !out.ModuleCompleted || !out.CourseCompleted {
		t.Errorf("outcome = %+v, want passed with module and course completed", out)
	}
	if out.Message != "🎉 Congratulations! You have completed the entire course!" {
		t.Errorf("Message = %q", out.Message)
	}
	rec, _ = store.GetOrInit(ctx, "u")
	if !rec.IsComplete("quiz-b") || !rec.IsComplete("mod-b") || !navigation.CourseComplete(c, rec) {
		t.Errorf("record = %v, want quiz-b and mod-b complete", rec.Completed())
	}

	if err := a.Retry(); !errors.Is(err, quiz.ErrInvalidTransition) {
		t.Errorf("Retry() after pass error = %v, want ErrInvalidTransition", err)
	}
	if err := a.Select(0, "3"); !errors.Is(err, quiz.ErrInvalidTransition) {
		t.Errorf("Select() after pass error = %v, want ErrInvalidTransition", err)
	}
}

func TestSubmit_Messages(t *testing.T) {
	c := &course.Course{ID: "x", Modules: []course.Module{
		{ID: "m1", Name: "Basics", Chapters: []course.Chapter{
			{ID: "q1", Title: "Warm up", Type: course.TypeQuiz, Questions: questions},
			{ID: "q2", Title: "Final", Type: course.TypeQuiz, Questions: questions},
		}},
		{ID: "m2", Name: "More", Chapters: []course.Chapter{{ID: "c3", Type: course.TypeVideo}}},
	}}

	tests := []struct {
		chapter int
		want    string
		module  bool
	}{
		{0, "Quiz passed! Score: 100%", false},
		{1, `🎉 Module "Basics" complete! The next module is unlocked.`, true},
	}

	engine := quiz.NewEngine(progress.NewMemoryStore())
	for _, tt := range tests {
		a, _ := quiz.NewAttempt(&c.Modules[0].Chapters[tt.chapter])
		_ = a.Select(0, "4")
		_ = a.Select(1, "Kuala Lumpur")
		out, err := engine.Submit(t.Context(), "u", c, a)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if out.Message != tt.want {
			t.Errorf("Message = %q, want %q", out.Message, tt.want)
		}
		if out.ModuleCompleted != tt.module || out.CourseCompleted {
			t.Errorf("outcome = %+v", out)
		}
	}
}

func TestSubmit_ZeroQuestions(t *testing.T) {
	c := &course.Course{ID: "x", Modules: []course.Module{
		{ID: "m1", Chapters: []course.Chapter{{ID: "q0", Title: "Empty", Type: course.TypeQuiz}}},
	}}
	store := progress.NewMemoryStore()
	a, _ := quiz.NewAttempt(&c.Modules[0].Chapters[0])

	_, err := quiz.NewEngine(store).Submit(t.Context(), "u", c, a)
	if !errors.Is(err, quiz.ErrInvalidQuizDefinition) {
		t.Fatalf("error = %v, want ErrInvalidQuizDefinition", err)
	}
	if navigation.CodeOf(err) != navigation.CodeInvalidQuiz {
		t.Errorf("code = %q, want invalid_quiz_definition", navigation.CodeOf(err))
	}
	if a.State() != quiz.Unanswered {
		t.Errorf("state = %v, want unanswered", a.State())
	}
	rec, _ := store.GetOrInit(t.Context(), "u")
	if rec.Len() != 0 {
		t.Errorf("record = %v, want empty", rec.Completed())
	}
}

type failingStore struct{ progress.Store }

func (failingStore) MarkComplete(context.Context, string, string) (bool, error) {
	return false, errors.New("store down")
}

func TestSubmit_StoreFailure(t *testing.T) {
	c := twoModuleCourse()
	a, _ := quiz.NewAttempt(&c.Modules[1].Chapters[0])
	_ = a.Select(0, "4")
	_ = a.Select(1, "Kuala Lumpur")

	engine := quiz.NewEngine(failingStore{progress.NewMemoryStore()})
	if _, err := engine.Submit(t.Context(), "u", c, a); err == nil {
		t.Fatal("Submit() should surface store errors")
	}
	if a.State() != quiz.Unanswered {
		t.Errorf("state = %v, want unanswered after a failed write", a.State())
	}
	if got := a.Answers(); got[1] != "Kuala Lumpur" {
		t.Errorf("answers should survive a failed write, got %v", got)
	}
}

func TestNextAfterPass(t *testing.T) {
	c := &course.Course{ID: "x", Modules: []course.Module{
		{ID: "m1", Name: "One", Chapters: []course.Chapter{{ID: "q1", Type: course.TypeQuiz, Questions: questions}}},
		{ID: "m2", Name: "Two", Chapters: []course.Chapter{
			{ID: "c2", Type: course.TypeVideo},
			{ID: "q2", Type: course.TypeQuiz, Questions: questions},
		}},
	}}
	store := progress.NewMemoryStore()
	engine := quiz.NewEngine(store)
	ctx := t.Context()

	pass := func(ch *course.Chapter) *quiz.Attempt {
		a, _ := quiz.NewAttempt(ch)
		_ = a.Select(0, "4")
		_ = a.Select(1, "Kuala Lumpur")
		if _, err := engine.Submit(ctx, "u", c, a); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		return a
	}

	fresh, _ := quiz.NewAttempt(&c.Modules[0].Chapters[0])
	rec, _ := store.GetOrInit(ctx, "u")
	if _, err := engine.NextAfterPass(c, rec, fresh); navigation.CodeOf(err) != navigation.CodeQuizRequired {
		t.Errorf("NextAfterPass() before passing code = %q, want quiz_required", navigation.CodeOf(err))
	}

	a := pass(&c.Modules[0].Chapters[0])
	rec, _ = store.GetOrInit(ctx, "u")
	intent, err := engine.NextAfterPass(c, rec, a)
	if err != nil {
		t.Fatalf("NextAfterPass() error = %v", err)
	}
	if intent.Page != navigation.PageChapter || intent.ChapterID != "c2" {
		t.Errorf("intent = %+v, want chapter c2", intent)
	}

	a = pass(&c.Modules[1].Chapters[1])
	rec, _ = store.GetOrInit(ctx, "u")
	intent, err = engine.NextAfterPass(c, rec, a)
	if err != nil {
		t.Fatalf("NextAfterPass() error = %v", err)
	}
	if intent.Page != navigation.PageCongratulations || !intent.Finished {
		t.Errorf("intent = %+v, want finished congratulations", intent)
	}
}

func TestAttempt_View(t *testing.T) {
	c := twoModuleCourse()
	a, _ := quiz.NewAttempt(&c.Modules[1].Chapters[0])
	_ = a.Select(0, "3")

	v := a.View()
	if v.Score != nil {
		t.Error("unsubmitted view should not carry a score")
	}
	if len(v.Questions) != 2 || v.Questions[0].Selected != "3" {
		t.Errorf("view = %+v", v)
	}
}
