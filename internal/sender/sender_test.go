package sender

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"signalbot/internal/domain"
)

const bot = "+10000000000"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// recordingTransport captures payloads instead of writing them anywhere.
type recordingTransport struct {
	mu       sync.Mutex
	payloads []domain.Payload
	err      error
}

func (r *recordingTransport) Send(_ context.Context, p domain.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) only(t *testing.T) domain.Payload {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.payloads) != 1 {
		t.Fatalf("expected exactly 1 payload, got %d", len(r.payloads))
	}
	return r.payloads[0]
}

func marshal(t *testing.T, p domain.Payload) string {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

var direct = domain.InboundMessage{Source: "+1555", Timestamp: 1000, Body: "hi"}

func TestSendMessage_TextDirect(t *testing.T) {
	tr := &recordingTransport{}
	s := New(bot, tr, testLogger())

	err := s.SendMessage(context.Background(), direct, domain.Reply{Body: "hello"})
	if err != nil {
		t.Fatal(err)
	}

	got := marshal(t, tr.only(t))
	want := `{"type":"send","username":"+10000000000","recipientAddress":{"number":"+1555"},"messageBody":"hello"}`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestSendMessage_ReactionDirect(t *testing.T) {
	tr := &recordingTransport{}
	s := New(bot, tr, testLogger())

	err := s.SendMessage(context.Background(), direct, domain.Reply{Reaction: true, Body: "👍"})
	if err != nil {
		t.Fatal(err)
	}

	p, ok := tr.only(t).(domain.ReactPayload)
	if !ok {
		t.Fatalf("expected ReactPayload, got %T", tr.only(t))
	}
	want := domain.Reaction{
		Emoji:               "👍",
		TargetAuthor:        domain.Address{Number: "+1555"},
		TargetSentTimestamp: 1000,
	}
	if p.Reaction != want {
		t.Errorf("reaction = %+v, want %+v", p.Reaction, want)
	}
	if p.Type != domain.KindReact {
		t.Errorf("type = %s", p.Type)
	}
	if p.Address == nil || p.Address.Number != "+1555" || p.GroupID != "" {
		t.Errorf("unexpected target: %+v", p.Target)
	}
}

func TestSendMessage_ReactionInGroupTargetsAuthor(t *testing.T) {
	tr := &recordingTransport{}
	s := New(bot, tr, testLogger())

	msg := domain.InboundMessage{Source: "+1555", Timestamp: 2000, GroupID: "G1"}
	if err := s.SendMessage(context.Background(), msg, domain.Reply{Reaction: true, Body: "🎉"}); err != nil {
		t.Fatal(err)
	}

	p := tr.only(t).(domain.ReactPayload)
	if p.GroupID != "G1" || p.Address != nil {
		t.Errorf("expected group target only, got %+v", p.Target)
	}
	if p.Reaction.TargetAuthor.Number != "+1555" {
		t.Errorf("reaction must target the author, got %s", p.Reaction.TargetAuthor.Number)
	}
}

func TestSendMessage_RecipientExclusive(t *testing.T) {
	cases := []domain.InboundMessage{
		{Source: "+1555", Timestamp: 1},
		{Source: "+1555", Timestamp: 1, GroupID: "G1"},
		{Timestamp: 1, GroupID: "G1"},
	}
	for _, msg := range cases {
		payload, err := BuildReply(bot, msg, domain.Reply{Body: "x"})
		if err != nil {
			t.Fatalf("%+v: %v", msg, err)
		}
		target := payload.Recipient()
		hasGroup := target.GroupID != ""
		hasAddr := target.Address != nil
		if hasGroup == hasAddr {
			t.Errorf("%+v: expected exactly one recipient field, got %+v", msg, target)
		}
		if hasGroup != (msg.GroupID != "") {
			t.Errorf("%+v: group targeting mismatch", msg)
		}
	}
}

func TestSendMessage_NoRecipient(t *testing.T) {
	tr := &recordingTransport{}
	s := New(bot, tr, testLogger())

	err := s.SendMessage(context.Background(), domain.InboundMessage{Timestamp: 1}, domain.Reply{Body: "x"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(tr.payloads) != 0 {
		t.Error("nothing should be sent for invalid input")
	}
}

func TestSendMessage_GroupReactionWithoutSource(t *testing.T) {
	_, err := BuildReply(bot, domain.InboundMessage{GroupID: "G1", Timestamp: 1}, domain.Reply{Reaction: true, Body: "👍"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendMessage_EmptyBody(t *testing.T) {
	if _, err := BuildReply(bot, direct, domain.Reply{Reaction: true}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("reaction without emoji: expected ErrInvalidInput, got %v", err)
	}
	if _, err := BuildReply(bot, direct, domain.Reply{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty send: expected ErrInvalidInput, got %v", err)
	}

	attachments := []domain.Attachment{{"filename": "/tmp/a.png"}}
	p, err := BuildReply(bot, direct, domain.Reply{Attachments: attachments})
	if err != nil {
		t.Fatalf("attachment-only send should be accepted: %v", err)
	}
	if p.Kind() != domain.KindSend {
		t.Errorf("expected send, got %s", p.Kind())
	}
}

func TestSendMessage_Attachments(t *testing.T) {
	attachments := []domain.Attachment{
		{"filename": "/tmp/a.png", "width": "100", "height": "80"},
		{"filename": "/tmp/b.jpg"},
	}
	p, err := BuildReply(bot, direct, domain.Reply{Body: "pics", Attachments: attachments})
	if err != nil {
		t.Fatal(err)
	}
	send := p.(domain.SendPayload)
	if !reflect.DeepEqual(send.Attachments, attachments) {
		t.Errorf("attachments changed: %v", send.Attachments)
	}

	p, err = BuildReply(bot, direct, domain.Reply{Body: "none", Attachments: []domain.Attachment{}})
	if err != nil {
		t.Fatal(err)
	}
	if got := marshal(t, p); p.(domain.SendPayload).Attachments != nil || strings.Contains(got, "attachments") {
		t.Errorf("empty attachments must be omitted: %s", got)
	}
}

func TestSendMessage_Quote(t *testing.T) {
	msg := domain.InboundMessage{Source: "+1555", Timestamp: 1000, GroupID: "G1", Body: "original"}
	want := &domain.Quote{ID: 1000, Author: "+1555", Text: "original"}

	for _, reaction := range []bool{false, true} {
		body := "text"
		if reaction {
			body = "👍"
		}
		p, err := BuildReply(bot, msg, domain.Reply{Reaction: reaction, Body: body, Quote: true})
		if err != nil {
			t.Fatal(err)
		}
		var quote *domain.Quote
		switch v := p.(type) {
		case domain.SendPayload:
			quote = v.Quote
		case domain.ReactPayload:
			quote = v.Quote
		}
		if quote == nil || *quote != *want {
			t.Errorf("reaction=%v: quote = %+v, want %+v", reaction, quote, want)
		}
	}

	p, err := BuildReply(bot, msg, domain.Reply{Body: "text"})
	if err != nil {
		t.Fatal(err)
	}
	if p.(domain.SendPayload).Quote != nil {
		t.Error("quote must be absent unless requested")
	}
}

func TestMarkRead_GroupMessageTargetsAuthor(t *testing.T) {
	tr := &recordingTransport{}
	s := New(bot, tr, testLogger())

	msg := domain.InboundMessage{Source: "+1555", Timestamp: 1000, GroupID: "G1"}
	if err := s.MarkRead(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	got := marshal(t, tr.only(t))
	want := `{"type":"mark_read","username":"+10000000000","recipientAddress":{"number":"+1555"},"timestamps":[1000]}`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestMarkRead_NoSource(t *testing.T) {
	err := New(bot, &recordingTransport{}, testLogger()).MarkRead(context.Background(), domain.InboundMessage{GroupID: "G1"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendMessage_TransportFailure(t *testing.T) {
	tr := &recordingTransport{err: domain.ErrTransportUnavailable}
	s := New(bot, tr, testLogger())

	err := s.SendMessage(context.Background(), direct, domain.Reply{Body: "hello"})
	if !errors.Is(err, domain.ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", err)
	}
}
