// Package transport delivers signald payloads over a unix/tcp socket, a
// WebSocket bridge or Redis pub/sub, with optional metrics and audit decorators.
package transport

import (
	"fmt"
	"log/slog"
	"time"

	"signalbot/internal/config"
	"signalbot/internal/domain"
	"signalbot/internal/metrics"
)

// Options are the optional decorators applied by New.
type Options struct {
	Recorder  DeliveryRecorder   // nil disables auditing
	Collector *metrics.Collector // nil disables instrumentation
	Logger    *slog.Logger
}

// New builds the transport selected by cfg.Kind and wraps it with the
// decorators present in opts.
func New(cfg config.TransportConfig, opts Options) (domain.Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var t domain.Transport
	switch cfg.Kind {
	case "socket":
		t = NewSocket(SocketConfig{
			Network:     cfg.Socket.Network,
			Address:     cfg.Socket.Address,
			DialTimeout: time.Duration(cfg.Socket.DialTimeoutSeconds) * time.Second,
			Logger:      logger,
		})
	case "websocket":
		t = NewWebSocket(WebSocketConfig{
			URL:         cfg.WebSocket.URL,
			Token:       cfg.WebSocket.Token,
			DialTimeout: time.Duration(cfg.WebSocket.DialTimeoutSeconds) * time.Second,
			Logger:      logger,
		})
	case "redis":
		r, err := NewRedis(cfg.Redis.URL, cfg.Redis.Channel, logger)
		if err != nil {
			return nil, err
		}
		t = r
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}

	if opts.Collector != nil {
		t = Instrument(t, opts.Collector)
	}
	if opts.Recorder != nil {
		t = Audit(t, opts.Recorder, logger)
	}
	return t, nil
}
