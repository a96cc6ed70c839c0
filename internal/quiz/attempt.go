// Package quiz scores quiz chapters and applies the completion cascade of a
// passing attempt.
package quiz

import (
	"errors"
	"fmt"
	"slices"

	"github.com/p-n-ai/stream-course/internal/course"
)

// PassThreshold is the minimum percentage that passes a quiz.
const PassThreshold = 80.0

var (
	// ErrInvalidQuizDefinition is returned for a quiz with no questions.
	ErrInvalidQuizDefinition = errors.New("invalid quiz definition")

	// ErrNotQuiz is returned when an attempt is started on a non-quiz chapter.
	ErrNotQuiz = errors.New("chapter is not a quiz")

	// ErrInvalidTransition is returned for an operation the attempt's current
	// state does not allow.
	ErrInvalidTransition = errors.New("invalid quiz transition")
)

// Score returns the percentage of questions whose answer equals the correct
// option. Missing or empty answers count as incorrect.
func Score(questions []course.Question, answers []string) (float64, error) {
	if len(questions) == 0 {
		return 0, ErrInvalidQuizDefinition
	}
	correct := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] != "" && answers[i] == q.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(questions)) * 100, nil
}

// Passes reports whether score meets PassThreshold.
func Passes(score float64) bool {
	return score >= PassThreshold
}

// State is the state of one quiz attempt.
type State int

const (
	Unanswered State = iota
	Submitted
	Passed
	Failed
)

func (s State) String() string {
	switch s {
	case Unanswered:
		return "unanswered"
	case Submitted:
		return "submitted"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state as its string form.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Attempt is one pass through a quiz. It is not safe for concurrent use.
type Attempt struct {
	chapter *course.Chapter
	answers []string
	state   State
	score   float64
}

// NewAttempt starts an unanswered attempt on a quiz chapter.
func NewAttempt(ch *course.Chapter) (*Attempt, error) {
	if ch == nil || !ch.IsQuiz() {
		return nil, ErrNotQuiz
	}
	return &Attempt{
		chapter: ch,
		answers: make([]string, len(ch.Questions)),
	}, nil
}

// ChapterID returns the id of the quiz chapter.
func (a *Attempt) ChapterID() string { return a.chapter.ID }

// State returns the current state.
func (a *Attempt) State() State { return a.state }

// Score returns the score of the last submission.
func (a *Attempt) Score() float64 { return a.score }

// Answers returns a copy of the selected answers, "" for unanswered.
func (a *Attempt) Answers() []string { return slices.Clone(a.answers) }

// Select records option as the answer to question index.
func (a *Attempt) Select(index int, option string) error {
	if a.state != Unanswered {
		return fmt.Errorf("%w: cannot answer a %s quiz", ErrInvalidTransition, a.state)
	}
	if index < 0 || index >= len(a.chapter.Questions) {
		return fmt.Errorf("question %d out of range", index)
	}
	if !slices.Contains(a.chapter.Questions[index].Options, option) {
		return fmt.Errorf("option %q is not offered for question %d", option, index)
	}
	a.answers[index] = option
	return nil
}

// Retry returns a failed attempt to Unanswered and clears every answer.
func (a *Attempt) Retry() error {
	if a.state != Failed {
		return fmt.Errorf("%w: cannot retry a %s quiz", ErrInvalidTransition, a.state)
	}
	clear(a.answers)
	a.score = 0
	a.state = Unanswered
	return nil
}

// submit scores the attempt and resolves it to Passed or Failed. A quiz with
// no questions leaves the attempt untouched.
func (a *Attempt) submit() (float64, error) {
	if a.state != Unanswered {
		return 0, fmt.Errorf("%w: cannot submit a %s quiz", ErrInvalidTransition, a.state)
	}
	score, err := Score(a.chapter.Questions, a.answers)
	if err != nil {
		return 0, err
	}
	a.state = Submitted
	a.score = score
	return score, nil
}

func (a *Attempt) resolve(passed bool) {
	if passed {
		a.state = Passed
	} else {
		a.state = Failed
	}
}

// QuestionView is a question without its correct answer.
type QuestionView struct {
	Prompt   string   `json:"q"`
	Options  []string `json:"a"`
	Selected string   `json:"selected,omitempty"`
}

// View is the client-facing form of an attempt.
type View struct {
	ChapterID string         `json:"chapterId"`
	Title     string         `json:"title"`
	State     State          `json:"state"`
	Score     *float64       `json:"score,omitempty"`
	Questions []QuestionView `json:"questions"`
}

// View returns the attempt with correct answers withheld.
func (a *Attempt) View() View {
	v := View{
		ChapterID: a.chapter.ID,
		Title:     a.chapter.Title,
		State:     a.state,
		Questions: make([]QuestionView, len(a.chapter.Questions)),
	}
	if a.state == Passed || a.state == Failed {
		score := a.score
		v.Score = &score
	}
	for i, q := range a.chapter.Questions {
		v.Questions[i] = QuestionView{
			Prompt:   q.Prompt,
			Options:  slices.Clone(q.Options),
			Selected: a.answers[i],
		}
	}
	return v
}
