// Package sender turns an inbound message and a reply into a signald payload
// and hands it to a transport.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"signalbot/internal/domain"
)

// MessageSender sends bot replies and read receipts on behalf of one account.
// It holds no mutable state and is safe for concurrent use if its transport is.
type MessageSender struct {
	username  string
	transport domain.Transport
	logger    *slog.Logger
}

func New(username string, transport domain.Transport, logger *slog.Logger) *MessageSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageSender{
		username:  username,
		transport: transport,
		logger:    logger,
	}
}

// Username returns the bot account payloads are sent from.
func (s *MessageSender) Username() string { return s.username }

// SendMessage sends reply as a reaction to, or a message in answer of, message.
func (s *MessageSender) SendMessage(ctx context.Context, message domain.InboundMessage, reply domain.Reply) error {
	payload, err := BuildReply(s.username, message, reply)
	if err != nil {
		return err
	}
	return s.send(ctx, payload)
}

// MarkRead sends a read receipt for message to its author.
func (s *MessageSender) MarkRead(ctx context.Context, message domain.InboundMessage) error {
	payload, err := BuildMarkRead(s.username, message)
	if err != nil {
		return err
	}
	return s.send(ctx, payload)
}

func (s *MessageSender) send(ctx context.Context, payload domain.Payload) error {
	s.logger.Debug("sending payload",
		"kind", payload.Kind(),
		"recipient", payload.Recipient().Label(),
	)
	if err := s.transport.Send(ctx, payload); err != nil {
		return fmt.Errorf("send %s: %w", payload.Kind(), err)
	}
	return nil
}
