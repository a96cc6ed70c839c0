package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/stream-course/internal/identity"
	"github.com/p-n-ai/stream-course/internal/navigation"
	"github.com/p-n-ai/stream-course/internal/quiz"
	"github.com/p-n-ai/stream-course/internal/session"
	"github.com/p-n-ai/stream-course/internal/team"
)

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields []team.FieldError `json:"fields,omitempty"`
}

var refusalStatus = map[navigation.Code]int{
	navigation.CodeUnknownChapter:   http.StatusNotFound,
	navigation.CodeStaleNavigation:  http.StatusForbidden,
	navigation.CodeModuleGated:      http.StatusForbidden,
	navigation.CodeCourseIncomplete: http.StatusForbidden,
	navigation.CodeQuizRequired:     http.StatusConflict,
	navigation.CodeIncomplete:       http.StatusConflict,
	navigation.CodeNotReady:         http.StatusConflict,
	navigation.CodeInvalidQuiz:      http.StatusUnprocessableEntity,
	navigation.CodeNoSuccessor:      http.StatusInternalServerError,
}

// writeError maps err to a status code and the user-facing message.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: session.Message(err)}
	status := http.StatusInternalServerError

	var refusal *navigation.Refusal
	var invalid *team.ValidationError
	switch {
	case errors.As(err, &refusal):
		body.Code = string(refusal.Code)
		if s, ok := refusalStatus[refusal.Code]; ok {
			status = s
		}
	case errors.As(err, &invalid):
		body.Code = "invalid_team"
		body.Fields = invalid.Fields
		status = http.StatusUnprocessableEntity
	case errors.Is(err, identity.ErrAlreadyExists):
		body.Code = "account_exists"
		status = http.StatusConflict
	case errors.Is(err, identity.ErrInvalidCredentialsFormat):
		body.Code = "invalid_credentials_format"
		status = http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials):
		body.Code = "invalid_credentials"
		status = http.StatusUnauthorized
	case errors.Is(err, quiz.ErrInvalidTransition):
		body.Code = "invalid_transition"
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoCertificate):
		body.Code = "no_certificate"
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
