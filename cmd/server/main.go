package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/stream-course/internal/api"
	"github.com/p-n-ai/stream-course/internal/certificate"
	"github.com/p-n-ai/stream-course/internal/course"
	"github.com/p-n-ai/stream-course/internal/identity"
	"github.com/p-n-ai/stream-course/internal/notify"
	"github.com/p-n-ai/stream-course/internal/platform/cache"
	"github.com/p-n-ai/stream-course/internal/platform/config"
	"github.com/p-n-ai/stream-course/internal/platform/database"
	"github.com/p-n-ai/stream-course/internal/progress"
	"github.com/p-n-ai/stream-course/internal/session"
	"github.com/p-n-ai/stream-course/internal/team"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	checks := map[string]func(context.Context) error{}

	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer closeStores()
	if stores.health != nil {
		checks["database"] = stores.health
	}

	courses, err := newCourseSource(cfg)
	if err != nil {
		slog.Error("failed to configure course source", "error", err)
		os.Exit(1)
	}
	if cfg.HasCache() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		courses = course.NewCachedSource(courses, c, cfg.Cache.CourseTTL)
		checks["cache"] = c.HealthCheck
		slog.Info("course cache enabled", "ttl", cfg.Cache.CourseTTL)
	}

	idp, err := identity.NewService(stores.accounts, identity.Config{
		Secret:      []byte(cfg.Auth.JWTSecret),
		TokenTTL:    cfg.TokenTTL(),
		MinPassword: cfg.Auth.MinPassword,
	})
	if err != nil {
		slog.Error("failed to create identity service", "error", err)
		os.Exit(1)
	}

	ws := notify.NewWebSocketChannel(originPatterns(cfg.Server.AllowedOrigins)...)
	gw := notify.NewGateway()
	gw.Register("websocket", ws)
	center := notify.NewCenter(cfg.Notification.TTL, gw)

	renderer, err := certificate.NewRenderer(cfg.Certificate.Issuer, cfg.Certificate.FontPath)
	if err != nil {
		slog.Error("failed to load certificate fonts", "error", err)
		os.Exit(1)
	}

	ctrl, err := session.NewController(session.ControllerConfig{
		Identity: idp,
		Teams:    stores.teams,
		Courses:  courses,
		Progress: stores.progress,
		Notifier: center,
		Renderer: renderer,
	})
	if err != nil {
		slog.Error("failed to create session controller", "error", err)
		os.Exit(1)
	}

	apiServer := api.New(api.Config{
		Controller:     ctrl,
		Verifier:       idp,
		Notifications:  center,
		WebSocket:      ws,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(apiServer.Routes(), checks),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type storeSet struct {
	accounts identity.AccountStore
	teams    team.Store
	progress progress.Store
	health   func(context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (storeSet, func(), error) {
	if cfg.Store != "postgres" {
		slog.Warn("using in-memory stores; data is lost on restart")
		return storeSet{
			accounts: identity.NewMemoryAccountStore(),
			teams:    team.NewMemoryStore(),
			progress: progress.NewMemoryStore(),
		}, func() {}, nil
	}

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return storeSet{}, nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return storeSet{}, nil, err
		}
	}

	accounts, err := identity.NewPostgresAccountStore(db.Pool)
	if err != nil {
		db.Close()
		return storeSet{}, nil, err
	}
	teams, err := team.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return storeSet{}, nil, err
	}
	prog, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return storeSet{}, nil, err
	}
	return storeSet{
		accounts: accounts,
		teams:    teams,
		progress: prog,
		health:   db.HealthCheck,
	}, db.Close, nil
}

func newCourseSource(cfg *config.Config) (course.Source, error) {
	if cfg.Course.URL != "" {
		slog.Info("fetching courses over HTTP", "url", cfg.Course.URL)
		return course.NewHTTPSource(cfg.Course.URL, &http.Client{Timeout: 10 * time.Second})
	}
	slog.Info("reading courses from disk", "path", cfg.Course.Path)
	return course.NewFileSource(cfg.Course.Path), nil
}

// originPatterns converts CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, o)
	}
	return out
}

// newRouter mounts the API under /api next to the health check endpoints.
func newRouter(apiHandler http.Handler, checks map[string]func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(checks))
	if apiHandler != nil {
		r.Mount("/api", apiHandler)
	}
	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("readiness check failed", "check", name, "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, `{"status":"unavailable","check":%q}`, name)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
