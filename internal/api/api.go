// Package api exposes the course session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/p-n-ai/stream-course/internal/identity"
	"github.com/p-n-ai/stream-course/internal/notify"
	"github.com/p-n-ai/stream-course/internal/session"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

// Config holds the server's collaborators.
type Config struct {
	Controller     *session.Controller
	Verifier       TokenVerifier
	Notifications  *notify.Center
	WebSocket      *notify.WebSocketChannel // optional
	AllowedOrigins []string
}

// Server serves the JSON API.
type Server struct {
	ctrl     *session.Controller
	verifier TokenVerifier
	notes    *notify.Center
	ws       *notify.WebSocketChannel
	origins  []string
}

// New creates a server.
func New(cfg Config) *Server {
	return &Server{
		ctrl:     cfg.Controller,
		verifier: cfg.Verifier,
		notes:    cfg.Notifications,
		ws:       cfg.WebSocket,
		origins:  cfg.AllowedOrigins,
	}
}

// Routes returns the API router. Every route is relative to the mount point.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(s.authenticate)

		pr.Post("/logout", s.handleLogout)
		pr.Get("/me", s.withSession(s.handleOverview))
		pr.Post("/reload", s.handleReload)
		pr.Get("/course", s.withSession(s.handleOutline))

		pr.Route("/chapters/{id}", func(cr chi.Router) {
			cr.Get("/", s.withSession(s.handleChapter))
			cr.Post("/complete", s.withSession(s.handleCompleteChapter))
			cr.Get("/next", s.withSession(s.handleNext))
		})

		pr.Route("/quizzes/{id}", func(qr chi.Router) {
			qr.Get("/", s.withSession(s.handleQuiz))
			qr.Put("/answers/{index}", s.withSession(s.handleSelectAnswer))
			qr.Post("/submit", s.withSession(s.handleSubmitQuiz))
			qr.Post("/retry", s.withSession(s.handleRetryQuiz))
			qr.Post("/next", s.withSession(s.handleQuizNext))
		})

		pr.Get("/certificates", s.withSession(s.handleCertificates))
		pr.Get("/certificates/{index}.png", s.withSession(s.handleCertificatePNG))
		pr.Get("/certificates.pdf", s.withSession(s.handleCertificatesPDF))
		pr.Get("/certificates.xlsx", s.withSession(s.handleRoster))

		pr.Get("/notifications", s.handleNotifications)
		pr.Delete("/notifications/{id}", s.handleDismiss)
		if s.ws != nil {
			pr.Get("/ws", s.handleWebSocket)
		}
	})
	return r
}

type ctxKey struct{}

// userID returns the authenticated account id stored by authenticate.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// authenticate accepts a Bearer token, or an access_token query parameter
// for clients that cannot set headers on a websocket upgrade.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Please log in.", Code: "unauthenticated"})
			return
		}
		claims, err := s.verifier.Verify(token)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Your session has expired. Please log in again.", Code: "unauthenticated"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSession resolves the caller's session before calling fn.
func (s *Server) withSession(fn func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.ctrl.Session(userID(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		fn(w, r, sess)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
