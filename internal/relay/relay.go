// Package relay feeds newline-delimited reply requests to a MessageSender.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"signalbot/internal/domain"
	"signalbot/internal/metrics"
)

const (
	ActionReply = "reply"
	ActionRead  = "read"
)

// maxLineBytes bounds a single request; attachment descriptors can be long.
const maxLineBytes = 1 << 20

// Request is one line of relay input.
type Request struct {
	Action  string                `json:"action"`
	Message domain.InboundMessage `json:"message"`
	Reply   *domain.Reply         `json:"reply,omitempty"`
}

// Sender is the subset of sender.MessageSender the relay drives.
type Sender interface {
	SendMessage(ctx context.Context, message domain.InboundMessage, reply domain.Reply) error
	MarkRead(ctx context.Context, message domain.InboundMessage) error
}

// Summary reports what a Run did.
type Summary struct {
	Processed int
	Failed    int
}

type Relay struct {
	sender    Sender
	collector *metrics.Collector
	logger    *slog.Logger
}

func New(sender Sender, collector *metrics.Collector, logger *slog.Logger) *Relay {
	if collector == nil {
		collector = metrics.Default
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{sender: sender, collector: collector, logger: logger}
}

// inputLine is one line read from the relay input. Data is nil when the line
// exceeded maxLineBytes; the rest of such a line is discarded.
type inputLine struct {
	num     int
	data    []byte
	tooLong bool
	err     error
}

// Run processes requests from r until EOF or ctx is cancelled. A bad line, an
// oversized line or a failed send is logged and counted; processing continues
// with the next line. On cancellation Run returns at once; a read blocked on r
// is abandoned and its goroutine exits when r yields or is closed.
func (rl *Relay) Run(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	requests := rl.collector.Counter(metrics.RelayRequestsName, metrics.RelayRequestsHelp, "")
	rejected := rl.collector.Counter(metrics.RelayRejectedName, metrics.RelayRejectedHelp, "")

	lines := make(chan inputLine)
	done := make(chan struct{})
	defer close(done)
	go readLines(r, lines, done)

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		var ln inputLine
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return sum, nil
			}
			ln = l
		}

		if ln.err != nil {
			return sum, fmt.Errorf("read relay input: %w", ln.err)
		}
		if !ln.tooLong && len(ln.data) == 0 {
			continue
		}

		requests.Inc()
		err := errLineTooLong
		if !ln.tooLong {
			err = rl.handle(ctx, ln.data)
		}
		if err != nil {
			sum.Failed++
			rejected.Inc()
			rl.logger.Warn("relay request failed", "line", ln.num, "err", err)
			continue
		}
		sum.Processed++
	}
}

var errLineTooLong = fmt.Errorf("%w: line exceeds %d bytes", domain.ErrInvalidInput, maxLineBytes)

// readLines sends every line of r to out and closes out at EOF. It stops
// early once done is closed.
func readLines(r io.Reader, out chan<- inputLine, done <-chan struct{}) {
	defer close(out)
	br := bufio.NewReaderSize(r, 64*1024)
	for num := 1; ; num++ {
		data, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			return
		}
		select {
		case out <- inputLine{num: num, data: data, tooLong: tooLong, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func readLine(br *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	tooLong := false
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !tooLong {
			if len(buf)+len(frag) > maxLineBytes {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, frag...)
			}
		}
		if !isPrefix {
			return buf, tooLong, nil
		}
	}
}

func (rl *Relay) handle(ctx context.Context, raw []byte) error {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: decode request: %v", domain.ErrInvalidInput, err)
	}

	switch req.Action {
	case ActionReply:
		if req.Reply == nil {
			return fmt.Errorf("%w: reply action without reply", domain.ErrInvalidInput)
		}
		return rl.sender.SendMessage(ctx, req.Message, *req.Reply)
	case ActionRead:
		return rl.sender.MarkRead(ctx, req.Message)
	default:
		return fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, req.Action)
	}
}
