// Package progress is the per-user completion ledger. It is the single source
// of truth for unlock decisions. Completion is monotonic: nothing is ever
// marked incomplete again.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Status is the completion state of a chapter or module.
type Status int

const (
	Incomplete Status = iota
	Complete
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	default:
		return "incomplete"
	}
}

// MarshalText encodes the status as its string form.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Record is an immutable snapshot of one user's progress. Entity ids without an
// entry are Incomplete; absence is a storage detail only.
type Record struct {
	UserID   string
	complete map[string]struct{}
}

// NewRecord builds a snapshot from the given completed entity ids.
func NewRecord(userID string, completed ...string) Record {
	r := Record{UserID: userID, complete: make(map[string]struct{}, len(completed))}
	for _, id := range completed {
		r.complete[id] = struct{}{}
	}
	return r
}

// Status returns the status of an entity.
func (r Record) Status(entityID string) Status {
	if _, ok := r.complete[entityID]; ok {
		return Complete
	}
	return Incomplete
}

// IsComplete reports whether an entity is Complete.
func (r Record) IsComplete(entityID string) bool {
	return r.Status(entityID) == Complete
}

// Completed returns the completed entity ids in sorted order.
func (r Record) Completed() []string {
	ids := make([]string, 0, len(r.complete))
	for id := range r.complete {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// With returns a copy of the record with entityID complete.
func (r Record) With(entityID string) Record {
	out := Record{UserID: r.UserID, complete: make(map[string]struct{}, len(r.complete)+1)}
	for id := range r.complete {
		out.complete[id] = struct{}{}
	}
	out.complete[entityID] = struct{}{}
	return out
}

// Len returns the number of completed entities.
func (r Record) Len() int {
	return len(r.complete)
}

// Store persists progress records.
type Store interface {
	// GetOrInit returns the user's record, creating an empty one if needed.
	GetOrInit(ctx context.Context, userID string) (Record, error)
	// MarkComplete sets an entity to Complete. It is idempotent; changed is
	// false when the entity was already complete.
	MarkComplete(ctx context.Context, userID, entityID string) (changed bool, err error)
	// IsComplete reports whether an entity is Complete. Unknown users and
	// entities are Incomplete.
	IsComplete(ctx context.Context, userID, entityID string) (bool, error)
}

type userRecord struct {
	mu       sync.Mutex
	complete map[string]struct{}
}

// MemoryStore is an in-memory implementation of Store. Mutations for one
// user are serialised by a per-user lock.
type MemoryStore struct {
	users map[string]*userRecord
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*userRecord),
	}
}

func (s *MemoryStore) user(userID string, create bool) *userRecord {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok || !create {
		return u
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u
	}
	u = &userRecord{complete: make(map[string]struct{})}
	s.users[userID] = u
	return u
}

func (s *MemoryStore) GetOrInit(_ context.Context, userID string) (Record, error) {
	if userID == "" {
		return Record{}, fmt.Errorf("user_id is required")
	}
	u := s.user(userID, true)

	u.mu.Lock()
	defer u.mu.Unlock()
	r := Record{UserID: userID, complete: make(map[string]struct{}, len(u.complete))}
	for id := range u.complete {
		r.complete[id] = struct{}{}
	}
	return r, nil
}

func (s *MemoryStore) MarkComplete(_ context.Context, userID, entityID string) (bool, error) {
	if userID == "" || entityID == "" {
		return false, fmt.Errorf("user_id and entity_id are required")
	}
	u := s.user(userID, true)

	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.complete[entityID]; ok {
		return false, nil
	}
	u.complete[entityID] = struct{}{}
	return true, nil
}

func (s *MemoryStore) IsComplete(_ context.Context, userID, entityID string) (bool, error) {
	u := s.user(userID, false)
	if u == nil {
		return false, nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.complete[entityID]
	return ok, nil
}

// Transition describes one Incomplete to Complete change.
type Transition struct {
	UserID   string
	EntityID string
}

// ObservedStore calls an observer synchronously after every state-changing
// MarkComplete, before MarkComplete returns.
type ObservedStore struct {
	Store
	observe func(context.Context, Transition)
}

// Observe wraps store so that fn sees every transition.
func Observe(store Store, fn func(context.Context, Transition)) *ObservedStore {
	return &ObservedStore{Store: store, observe: fn}
}

func (s *ObservedStore) MarkComplete(ctx context.Context, userID, entityID string) (bool, error) {
	changed, err := s.Store.MarkComplete(ctx, userID, entityID)
	if err != nil || !changed {
		return changed, err
	}
	s.observe(ctx, Transition{UserID: userID, EntityID: entityID})
	return true, nil
}
