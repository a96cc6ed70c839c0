package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 4 * time.Second

// Center keeps each user's active notifications and pushes new ones through
// the gateway.
type Center struct {
	ttl     time.Duration
	gateway *Gateway
	now     func() time.Time

	mu     sync.Mutex
	byUser map[string][]Notification
}

// NewCenter creates a notification center. A nil gateway keeps
// notifications pull-only.
func NewCenter(ttl time.Duration, gateway *Gateway) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if gateway == nil {
		gateway = NewGateway()
	}
	return &Center{
		ttl:     ttl,
		gateway: gateway,
		now:     time.Now,
		byUser:  make(map[string][]Notification),
	}
}

// Notify records a notification for userID and pushes it to every channel.
func (c *Center) Notify(ctx context.Context, userID string, level Level, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.byUser[userID] = append(c.prune(userID, now), n)
	c.mu.Unlock()

	c.gateway.Broadcast(ctx, n)
	return n
}

// Active returns the user's unexpired notifications, oldest first.
func (c *Center) Active(userID string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	active := c.prune(userID, c.now())
	if len(active) == 0 {
		delete(c.byUser, userID)
		return nil
	}
	c.byUser[userID] = active
	return append([]Notification(nil), active...)
}

// Dismiss removes one notification before it expires.
func (c *Center) Dismiss(userID, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.byUser[userID]
	for i, n := range list {
		if n.ID == id {
			c.byUser[userID] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// prune drops expired notifications. c.mu must be held.
func (c *Center) prune(userID string, now time.Time) []Notification {
	list := c.byUser[userID]
	kept := list[:0]
	for _, n := range list {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	return kept
}
