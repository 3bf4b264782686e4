package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a message or reply cannot produce a well-formed payload.
var ErrInvalidInput = errors.New("invalid input")

// InboundMessage is a Signal message received by the bot, already parsed upstream.
// Timestamp doubles as the message identifier for quotes and reactions.
type InboundMessage struct {
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
	GroupID   string `json:"groupId,omitempty"`
	Body      string `json:"body,omitempty"`
}

// Recipient resolves where a reply to this message must go: the group when the
// message arrived in one, the sender's address otherwise.
func (m InboundMessage) Recipient() (Recipient, error) {
	if m.GroupID != "" {
		return GroupRecipient(m.GroupID), nil
	}
	if m.Source != "" {
		return DirectRecipient(m.Source), nil
	}
	return Recipient{}, fmt.Errorf("%w: message has neither group id nor source", ErrInvalidInput)
}

// Address returns the individual address of the sender.
func (m InboundMessage) Address() (Address, error) {
	if m.Source == "" {
		return Address{}, fmt.Errorf("%w: message has no source", ErrInvalidInput)
	}
	return Address{Number: m.Source}, nil
}

// Address identifies a single Signal account.
type Address struct {
	Number string `json:"number"`
}

type recipientKind uint8

const (
	recipientNone recipientKind = iota
	recipientGroup
	recipientDirect
)

// Recipient is either a group or an individual address, never both.
type Recipient struct {
	kind recipientKind
	id   string
}

func GroupRecipient(groupID string) Recipient {
	return Recipient{kind: recipientGroup, id: groupID}
}

func DirectRecipient(number string) Recipient {
	return Recipient{kind: recipientDirect, id: number}
}

func (r Recipient) IsGroup() bool { return r.kind == recipientGroup }

// IsZero reports whether the recipient was never resolved.
func (r Recipient) IsZero() bool { return r.kind == recipientNone }

func (r Recipient) String() string {
	switch r.kind {
	case recipientGroup:
		return "group:" + r.id
	case recipientDirect:
		return r.id
	default:
		return ""
	}
}

// Target converts the recipient into its wire form.
func (r Recipient) Target() Target {
	switch r.kind {
	case recipientGroup:
		return Target{GroupID: r.id}
	case recipientDirect:
		return Target{Address: &Address{Number: r.id}}
	default:
		return Target{}
	}
}

// Reply is what the bot wants to answer to an inbound message.
type Reply struct {
	Reaction    bool         `json:"isReaction"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Quote       bool         `json:"quote"`
}

// Attachment is an opaque attachment descriptor (filename, dimensions, ...)
// forwarded to the daemon untouched.
type Attachment map[string]any

// ParseAttachment accepts either a bare file path or a JSON object descriptor.
func ParseAttachment(s string) (Attachment, error) {
	if len(s) > 0 && s[0] == '{' {
		var a Attachment
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("%w: attachment descriptor: %v", ErrInvalidInput, err)
		}
		return a, nil
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty attachment", ErrInvalidInput)
	}
	return Attachment{"filename": s}, nil
}
