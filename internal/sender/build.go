package sender

import (
	"fmt"

	"signalbot/internal/domain"
)

// BuildReply constructs the react or send payload for reply without sending it.
func BuildReply(username string, message domain.InboundMessage, reply domain.Reply) (domain.Payload, error) {
	recipient, err := message.Recipient()
	if err != nil {
		return nil, err
	}

	extras := domain.Extras{}
	if len(reply.Attachments) > 0 {
		extras.Attachments = reply.Attachments
	}
	if reply.Quote {
		extras.Quote = &domain.Quote{
			ID:     message.Timestamp,
			Author: message.Source,
			Text:   message.Body,
		}
	}

	if reply.Reaction {
		if reply.Body == "" {
			return nil, fmt.Errorf("%w: reaction needs an emoji", domain.ErrInvalidInput)
		}
		// The reaction targets the author of the message, even inside a group.
		author, err := message.Address()
		if err != nil {
			return nil, err
		}
		return domain.ReactPayload{
			Header: header(domain.KindReact, username, recipient),
			Reaction: domain.Reaction{
				Emoji:               reply.Body,
				TargetAuthor:        author,
				TargetSentTimestamp: message.Timestamp,
			},
			Extras: extras,
		}, nil
	}

	if reply.Body == "" && len(extras.Attachments) == 0 {
		return nil, fmt.Errorf("%w: reply has neither body nor attachments", domain.ErrInvalidInput)
	}
	return domain.SendPayload{
		Header:      header(domain.KindSend, username, recipient),
		MessageBody: reply.Body,
		Extras:      extras,
	}, nil
}

// BuildMarkRead constructs a read receipt for message. Receipts always go to
// the author's address, also for group messages.
func BuildMarkRead(username string, message domain.InboundMessage) (domain.Payload, error) {
	author, err := message.Address()
	if err != nil {
		return nil, err
	}
	return domain.MarkReadPayload{
		Header:     header(domain.KindMarkRead, username, domain.DirectRecipient(author.Number)),
		Timestamps: []int64{message.Timestamp},
	}, nil
}

func header(kind domain.Kind, username string, recipient domain.Recipient) domain.Header {
	return domain.Header{
		Type:     kind,
		Username: username,
		Target:   recipient.Target(),
	}
}
