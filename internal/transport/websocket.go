package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"signalbot/internal/domain"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures the bridge WebSocket transport.
type WebSocketConfig struct {
	URL         string
	Token       string // optional bearer token sent on the handshake
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// WebSocket sends each payload as one text frame to a Signal bridge.
type WebSocket struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebSocket{
		url:   cfg.URL,
		token: cfg.Token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger: cfg.Logger,
	}
}

func (w *WebSocket) Send(ctx context.Context, payload domain.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", payload.Kind(), err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		if err := w.dial(ctx); err != nil {
			return err
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		w.conn.SetWriteDeadline(deadline)
	} else {
		w.conn.SetWriteDeadline(time.Time{})
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		w.conn.Close()
		w.conn = nil
		return fmt.Errorf("%w: websocket write: %v", domain.ErrTransportUnavailable, err)
	}
	return nil
}

func (w *WebSocket) dial(ctx context.Context) error {
	header := http.Header{}
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: websocket dial %s: %v (status %d)", domain.ErrTransportUnavailable, w.url, err, resp.StatusCode)
		}
		return fmt.Errorf("%w: websocket dial %s: %v", domain.ErrTransportUnavailable, w.url, err)
	}
	w.logger.Info("connected to signal bridge", "url", w.url)
	w.conn = conn
	return nil
}

// Close sends a normal closure frame and drops the connection.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := w.conn.Close()
	w.conn = nil
	return err
}
