package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestGateway_RegisterChannel(t *testing.T) {
	gw := NewGateway()
	gw.Register("mock", &MockChannel{})

	if !gw.HasChannel("mock") {
		t.Error("HasChannel(mock) should be true after Register")
	}
	if gw.HasChannel("websocket") {
		t.Error("HasChannel(websocket) should be false when not registered")
	}
}

func TestGateway_Send(t *testing.T) {
	gw := NewGateway()
	mock := &MockChannel{}
	gw.Register("mock", mock)

	if err := gw.Send(context.Background(), "mock", Notification{UserID: "u", Message: "hi"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(mock.Delivered) != 1 {
		t.Errorf("Delivered = %d, want 1", len(mock.Delivered))
	}
	if err := gw.Send(context.Background(), "unknown", Notification{}); err == nil {
		t.Error("Send() should error for unknown channel")
	}
}

func TestGateway_BroadcastIgnoresFailures(t *testing.T) {
	gw := NewGateway()
	ok := &MockChannel{}
	gw.Register("broken", &MockChannel{Err: errors.New("down")})
	gw.Register("ok", ok)

	gw.Broadcast(context.Background(), Notification{UserID: "u", Message: "hi"})

	if got := ok.Messages(); len(got) != 1 || got[0] != "hi" {
		t.Errorf("Messages() = %v, want [hi]", got)
	}
}

func TestCenter_Expiry(t *testing.T) {
	clock := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c := NewCenter(4*time.Second, nil)
	c.now = func() time.Time { return clock }

	c.Notify(context.Background(), "u", Info, "first")
	clock = clock.Add(2 * time.Second)
	c.Notify(context.Background(), "u", Error, "second")

	if got := c.Active("u"); len(got) != 2 {
		t.Fatalf("Active() = %d notifications, want 2", len(got))
	}

	clock = clock.Add(3 * time.Second)
	got := c.Active("u")
	if len(got) != 1 || got[0].Message != "second" || got[0].Level != Error {
		t.Errorf("Active() after 5s = %+v, want only second", got)
	}

	clock = clock.Add(2 * time.Second)
	if got := c.Active("u"); got != nil {
		t.Errorf("Active() after 7s = %+v, want none", got)
	}
	if got := c.Active("other"); got != nil {
		t.Errorf("Active(other) = %+v, want none", got)
	}
}

func TestCenter_Dismiss(t *testing.T) {
	c := NewCenter(time.Minute, nil)
	a := c.Notify(context.Background(), "u", Info, "a")
	c.Notify(context.Background(), "u", Info, "b")

	if !c.Dismiss("u", a.ID) {
		t.Fatal("Dismiss() should find the notification")
	}
	if c.Dismiss("u", a.ID) {
		t.Error("second Dismiss() should report false")
	}
	if got := c.Active("u"); len(got) != 1 || got[0].Message != "b" {
		t.Errorf("Active() = %+v, want only b", got)
	}
}

func TestCenter_PushesThroughGateway(t *testing.T) {
	gw := NewGateway()
	mock := &MockChannel{}
	gw.Register("mock", mock)
	c := NewCenter(0, gw)

	n := c.Notify(context.Background(), "u", Info, "You have been logged out.")

	if n.ExpiresAt.Sub(n.CreatedAt) != DefaultTTL {
		t.Errorf("ttl = %v, want %v", n.ExpiresAt.Sub(n.CreatedAt), DefaultTTL)
	}
	if len(mock.Delivered) != 1 || mock.Delivered[0].UserID != "u" {
		t.Errorf("Delivered = %+v", mock.Delivered)
	}
}

func TestWebSocketChannel_Deliver(t *testing.T) {
	ch := NewWebSocketChannel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ch.Serve(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=u1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for ch.Connections("u1") == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("socket was never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := ch.Deliver(ctx, Notification{UserID: "u2", Message: "not yours"}); err != nil {
		t.Fatalf("Deliver() to another user error = %v", err)
	}
	if err := ch.Deliver(ctx, Notification{ID: "n1", UserID: "u1", Level: Info, Message: "hello"}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	var got Notification
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.ID != "n1" || got.Message != "hello" {
		t.Errorf("received %+v", got)
	}
}
