package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Source fetches the course document for a class level.
type Source interface {
	Fetch(ctx context.Context, classLevel string) (*Course, error)
}

var classLevelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func checkClassLevel(classLevel string) error {
	if !classLevelPattern.MatchString(classLevel) {
		return fmt.Errorf("%w: class level %q", ErrNotFound, classLevel)
	}
	return nil
}

// Load fetches and logs the course for a class level.
func Load(ctx context.Context, src Source, classLevel string) (*Course, error) {
	c, err := src.Fetch(ctx, classLevel)
	if err != nil {
		return nil, fmt.Errorf("loading course for class %s: %w", classLevel, err)
	}
	slog.Info("course loaded",
		"class", classLevel,
		"course_id", c.ID,
		"modules", len(c.Modules),
		"chapters", c.ChapterCount(),
	)
	return c, nil
}

// FileSource reads course documents named {classLevel}.json from a directory.
// {classLevel}.yaml and {classLevel}.yml are tried when no JSON file exists.
type FileSource struct {
	rootDir string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{rootDir: dir}
}

func (s *FileSource) Fetch(_ context.Context, classLevel string) (*Course, error) {
	if err := checkClassLevel(classLevel); err != nil {
		return nil, err
	}

	candidates := []struct {
		ext    string
		decode func([]byte) (*Course, error)
	}{
		{".json", Decode},
		{".yaml", DecodeYAML},
		{".yml", DecodeYAML},
	}

	for _, c := range candidates {
		path := filepath.Join(s.rootDir, classLevel+c.ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		course, err := c.decode(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return course, nil
	}

	return nil, fmt.Errorf("%w: no document for class %s in %s", ErrNotFound, classLevel, s.rootDir)
}

// HTTPSource fetches {baseURL}/{classLevel}.json. Failed fetches are not retried.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source for the given base URL. A nil client gets a
// default client with a 10 second timeout.
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid course base URL %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, classLevel string) (*Course, error) {
	if err := checkClassLevel(classLevel); err != nil {
		return nil, err
	}

	endpoint := s.baseURL + "/" + classLevel + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building course request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: status %d", endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", endpoint, err)
	}
	return Decode(data)
}

// BlobCache is the subset of the Redis cache used by CachedSource.
type BlobCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedSource keeps validated course documents in a shared cache.
// Cache failures are logged and bypassed; they never fail a fetch.
type CachedSource struct {
	inner Source
	cache BlobCache
	ttl   time.Duration
}

// NewCachedSource wraps inner with a cache.
func NewCachedSource(inner Source, cache BlobCache, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, cache: cache, ttl: ttl}
}

func (s *CachedSource) Fetch(ctx context.Context, classLevel string) (*Course, error) {
	key := "course:" + classLevel

	data, ok, err := s.cache.GetBytes(ctx, key)
	if err != nil {
		slog.Warn("course cache read failed", "class", classLevel, "error", err)
	}
	if ok {
		c, err := Decode(data)
		if err == nil {
			return c, nil
		}
		slog.Warn("discarding invalid cached course", "class", classLevel, "error", err)
	}

	c, err := s.inner.Fetch(ctx, classLevel)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(c); err == nil {
		if err := s.cache.SetBytes(ctx, key, raw, s.ttl); err != nil {
			slog.Warn("course cache write failed", "class", classLevel, "error", err)
		}
	}
	return c, nil
}
