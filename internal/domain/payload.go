package domain

// Kind is the signald request type of an outbound payload.
type Kind string

const (
	KindReact    Kind = "react"
	KindSend     Kind = "send"
	KindMarkRead Kind = "mark_read"
)

// Payload is one of ReactPayload, SendPayload or MarkReadPayload.
// Payloads are built once, never mutated, and handed to a Transport.
type Payload interface {
	Kind() Kind
	Recipient() Target
}

// Header carries the fields shared by every payload.
type Header struct {
	Type     Kind   `json:"type"`
	Username string `json:"username"`
	Target
}

// Target is the wire form of a Recipient; exactly one field is set.
type Target struct {
	GroupID string   `json:"recipientGroupId,omitempty"`
	Address *Address `json:"recipientAddress,omitempty"`
}

// Label is a short human-readable form used in logs and the audit log.
func (t Target) Label() string {
	if t.GroupID != "" {
		return "group:" + t.GroupID
	}
	if t.Address != nil {
		return t.Address.Number
	}
	return ""
}

// Extras are the optional parts of a react or send payload.
type Extras struct {
	Attachments []Attachment `json:"attachments,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
}

type Quote struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

type Reaction struct {
	Emoji               string  `json:"emoji"`
	TargetAuthor        Address `json:"targetAuthor"`
	TargetSentTimestamp int64   `json:"targetSentTimestamp"`
}

type ReactPayload struct {
	Header
	Reaction Reaction `json:"reaction"`
	Extras
}

func (p ReactPayload) Kind() Kind        { return KindReact }
func (p ReactPayload) Recipient() Target { return p.Target }

type SendPayload struct {
	Header
	MessageBody string `json:"messageBody"`
	Extras
}

func (p SendPayload) Kind() Kind        { return KindSend }
func (p SendPayload) Recipient() Target { return p.Target }

type MarkReadPayload struct {
	Header
	Timestamps []int64 `json:"timestamps"`
}

func (p MarkReadPayload) Kind() Kind        { return KindMarkRead }
func (p MarkReadPayload) Recipient() Target { return p.Target }

// TargetTimestamp returns the inbound message timestamp a payload refers to, or 0.
func TargetTimestamp(p Payload) int64 {
	switch v := p.(type) {
	case ReactPayload:
		return v.Reaction.TargetSentTimestamp
	case MarkReadPayload:
		if len(v.Timestamps) > 0 {
			return v.Timestamps[0]
		}
	case SendPayload:
		if v.Quote != nil {
			return v.Quote.ID
		}
	}
	return 0
}
