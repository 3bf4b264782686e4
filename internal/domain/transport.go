package domain

import (
	"context"
	"errors"
)

// ErrTransportUnavailable is wrapped by transports when the connection to the
// daemon cannot accept a payload.
var ErrTransportUnavailable = errors.New("transport unavailable")

// Transport delivers payloads to the Signal daemon. Implementations own
// connection lifecycle and write serialization.
type Transport interface {
	Send(ctx context.Context, payload Payload) error
	Close() error
}
