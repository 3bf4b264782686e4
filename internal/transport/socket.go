package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"signalbot/internal/domain"
)

// SocketConfig configures a signald-style stream socket.
type SocketConfig struct {
	Network     string // "unix" | "tcp"
	Address     string
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Socket writes one JSON object per line to a signald socket. The connection
// is dialed on first use and dropped after a failed write, so the next Send
// dials again. Writes are serialized.
type Socket struct {
	network     string
	address     string
	dialTimeout time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

func NewSocket(cfg SocketConfig) *Socket {
	if cfg.Network == "" {
		cfg.Network = "unix"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Socket{
		network:     cfg.Network,
		address:     cfg.Address,
		dialTimeout: cfg.DialTimeout,
		logger:      cfg.Logger,
	}
}

func (s *Socket) Send(ctx context.Context, payload domain.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", payload.Kind(), err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.dial(ctx); err != nil {
			return err
		}
	}

	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Time{})
	}

	if _, err := s.conn.Write(data); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("%w: write %s: %v", domain.ErrTransportUnavailable, s.address, err)
	}
	return nil
}

func (s *Socket) dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, s.network, s.address)
	if err != nil {
		return fmt.Errorf("%w: dial %s %s: %v", domain.ErrTransportUnavailable, s.network, s.address, err)
	}
	s.logger.Info("connected to signal daemon", "network", s.network, "address", s.address)
	s.conn = conn
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
