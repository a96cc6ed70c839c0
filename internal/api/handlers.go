package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/stream-course/internal/certificate"
	"github.com/p-n-ai/stream-course/internal/notify"
	"github.com/p-n-ai/stream-course/internal/session"
	"github.com/p-n-ai/stream-course/internal/team"
)

type registerRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Team     team.Account `json:"team"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid registration form.")
		return
	}
	res, err := s.ctrl.Register(r.Context(), req.Email, req.Password, req.Team)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid login form.")
		return
	}
	res, err := s.ctrl.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Logout(r.Context(), userID(r.Context())))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	state, err := s.ctrl.Reload(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]session.State{"state": state})
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Overview())
}

func (s *Server) handleOutline(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	o, err := sess.Outline()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v, err := sess.Chapter(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleCompleteChapter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	c, err := sess.CompleteChapter(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	intent, err := sess.Next(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v, err := sess.Quiz(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type answerRequest struct {
	Option string `json:"option"`
}

func (s *Server) handleSelectAnswer(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, "Invalid question number.")
		return
	}
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid answer.")
		return
	}
	v, err := sess.SelectAnswer(chi.URLParam(r, "id"), index, req.Option)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	out, err := sess.SubmitQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRetryQuiz(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	v, err := sess.RetryQuiz(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleQuizNext(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	intent, err := sess.QuizNext(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (s *Server) handleCertificates(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	views, err := sess.Certificates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCertificatePNG(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, "Invalid certificate number.")
		return
	}
	var buf bytes.Buffer
	if err := sess.WriteCertificatePNG(&buf, index); err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, "image/png", fmt.Sprintf("certificate-%d.png", index+1), buf.Bytes())
}

func (s *Server) handleCertificatesPDF(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	var buf bytes.Buffer
	if err := sess.WriteCertificatesPDF(&buf); err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, "application/pdf", certificate.PDFFileName, buf.Bytes())
}

func (s *Server) handleRoster(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	var buf bytes.Buffer
	if err := sess.WriteRoster(&buf); err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "certificates.xlsx", buf.Bytes())
}

// writeFile sends a rendered artifact as a single download. Rendering happens
// into a buffer first so a failure can still produce a JSON error.
func writeFile(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write download", "file", name, "error", err)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	active := s.notes.Active(userID(r.Context()))
	if active == nil {
		active = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, active)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.notes.Dismiss(userID(r.Context()), chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Notification not found.", Code: "not_found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := userID(r.Context())
	if err := s.ws.Serve(w, r, id); err != nil {
		slog.Warn("websocket closed with error", "user_id", id, "error", err)
	}
}
