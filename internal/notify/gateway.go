// Package notify delivers transient, auto-dismissing user notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	Info  Level = "info"
	Error Level = "error"
)

// Notification is a short message shown to one user until it expires.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Channel is a push transport for notifications.
type Channel interface {
	Deliver(ctx context.Context, n Notification) error
}

// Gateway fans notifications out to registered channels.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates a new notification gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("notification channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Send delivers n on the named channel.
func (g *Gateway) Send(ctx context.Context, channel string, n Notification) error {
	g.mu.RLock()
	ch, ok := g.channels[channel]
	g.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown channel: %s", channel)
	}
	return ch.Deliver(ctx, n)
}

// Broadcast delivers n on every channel. Delivery failures are logged; a
// notification is never worth failing the operation that raised it.
func (g *Gateway) Broadcast(ctx context.Context, n Notification) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for name, ch := range g.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			slog.Warn("notification delivery failed", "channel", name, "user_id", n.UserID, "error", err)
		}
	}
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu        sync.Mutex
	Delivered []Notification
	Err       error
}

func (m *MockChannel) Deliver(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Delivered = append(m.Delivered, n)
	return nil
}

// Messages returns the delivered message texts in order.
func (m *MockChannel) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Delivered))
	for i, n := range m.Delivered {
		out[i] = n.Message
	}
	return out
}
