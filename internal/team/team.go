// Package team holds the team account created at registration: the school,
// class level and the ordered list of students.
package team

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when no team record exists for an account.
var ErrNotFound = errors.New("team not found")

// School identifies the team's school.
type School struct {
	Name string `json:"name" validate:"notblank"`
}

// Account is a team's record. Students order is certificate order.
type Account struct {
	ID             string   `json:"id,omitempty"`
	School         School   `json:"school"`
	SchoolLocation string   `json:"schoolLocation" validate:"notblank"`
	ClassLevel     string   `json:"class" validate:"oneof=5 6 7 8 9 10"`
	TeamName       string   `json:"teamName" validate:"notblank"`
	Students       []string `json:"students" validate:"min=1,dive,notblank"`
}

// Normalize trims surrounding whitespace from every field.
func (a *Account) Normalize() {
	a.School.Name = strings.TrimSpace(a.School.Name)
	a.SchoolLocation = strings.TrimSpace(a.SchoolLocation)
	a.ClassLevel = strings.TrimSpace(a.ClassLevel)
	a.TeamName = strings.TrimSpace(a.TeamName)
	for i, s := range a.Students {
		a.Students[i] = strings.TrimSpace(s)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// FieldError names one invalid field of a team record.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every invalid field of a team record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid team record: " + strings.Join(names, ", ")
}

// Validate checks that every field is filled in, the class level is one of
// the offered levels and no student name is blank.
func (a Account) Validate() error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate team: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Account.")
		out.Fields = append(out.Fields, FieldError{Field: field, Rule: fe.Tag()})
	}
	return out
}

// Store persists team records keyed by account id.
type Store interface {
	Get(ctx context.Context, id string) (Account, error)
	Put(ctx context.Context, id string, acc Account) error
}

// MemoryStore is an in-memory Store. Records are copied in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	teams map[string][]byte
}

// NewMemoryStore creates an empty in-memory team store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{teams: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	data, ok := s.teams[id]
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrNotFound
	}
	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return Account{}, fmt.Errorf("decode team: %w", err)
	}
	acc.ID = id
	return acc, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, acc Account) error {
	if id == "" {
		return fmt.Errorf("team id is required")
	}
	acc.ID = ""
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[id] = data
	return nil
}
