// Package navigation computes, from a course and a progress snapshot, which
// modules and chapters are reachable and where "next" leads. Every function
// here is pure: callers pass the current snapshot and perform the returned
// intent themselves.
package navigation

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleNavigation is returned for navigation into a module that is
	// not unlocked.
	ErrStaleNavigation = errors.New("stale navigation")

	// ErrNoSuccessor reports a chapter with no successor while the course is
	// not finished. It indicates malformed course data.
	ErrNoSuccessor = errors.New("chapter has no successor")

	// ErrUnknownChapter is returned for chapter ids not in the course.
	ErrUnknownChapter = errors.New("unknown chapter")
)

// Code is a stable reason code attached to a refusal.
type Code string

const (
	CodeStaleNavigation  Code = "stale_navigation"
	CodeModuleGated      Code = "module_gated"
	CodeQuizRequired     Code = "quiz_required"
	CodeInvalidQuiz      Code = "invalid_quiz_definition"
	CodeCourseIncomplete Code = "course_incomplete"
	CodeNoSuccessor      Code = "no_successor"
	CodeNotReady         Code = "not_ready"
	CodeUnknownChapter   Code = "unknown_chapter"
	CodeIncomplete       Code = "chapter_incomplete"
)

// Refusal is a core operation declined for a known reason. It wraps the
// sentinel error for the reason so callers can use errors.Is.
type Refusal struct {
	Code    Code
	Message string
	Err     error
}

// Refuse builds a refusal.
func Refuse(code Code, err error, format string, args ...any) *Refusal {
	return &Refusal{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (r *Refusal) Error() string {
	return r.Message
}

func (r *Refusal) Unwrap() error {
	return r.Err
}

// CodeOf returns the reason code carried by err, or "" if err is not a refusal.
func CodeOf(err error) Code {
	var r *Refusal
	if errors.As(err, &r) {
		return r.Code
	}
	return ""
}
