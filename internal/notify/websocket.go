package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// WebSocketChannel pushes notifications as JSON to every open socket of the
// notified user.
type WebSocketChannel struct {
	originPatterns []string

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

// NewWebSocketChannel creates a channel accepting sockets from the given
// origin patterns. No patterns means same-origin only.
func NewWebSocketChannel(originPatterns ...string) *WebSocketChannel {
	return &WebSocketChannel{
		originPatterns: originPatterns,
		conns:          make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Serve upgrades the request and holds the socket open for userID until
// the client disconnects or the request context ends.
func (w *WebSocketChannel) Serve(rw http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{
		OriginPatterns: w.originPatterns,
	})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}

	w.add(userID, conn)
	defer w.remove(userID, conn)

	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

func (w *WebSocketChannel) add(userID string, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.conns[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		w.conns[userID] = set
	}
	set[conn] = struct{}{}
	slog.Debug("websocket connected", "user_id", userID)
}

func (w *WebSocketChannel) remove(userID string, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.conns[userID], conn)
	if len(w.conns[userID]) == 0 {
		delete(w.conns, userID)
	}
}

// Connections returns the number of open sockets for userID.
func (w *WebSocketChannel) Connections(userID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.conns[userID])
}

func (w *WebSocketChannel) Deliver(ctx context.Context, n Notification) error {
	w.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(w.conns[n.UserID]))
	for c := range w.conns[n.UserID] {
		conns = append(conns, c)
	}
	w.mu.Unlock()

	var firstErr error
	for _, c := range conns {
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := wsjson.Write(wctx, c, n)
		cancel()
		if err != nil {
			w.remove(n.UserID, c)
			c.Close(websocket.StatusInternalError, "write failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("write notification: %w", err)
			}
		}
	}
	return firstErr
}
