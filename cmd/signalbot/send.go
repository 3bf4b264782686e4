package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalbot/internal/domain"
	"signalbot/internal/sender"

	"github.com/spf13/cobra"
)

const sendTimeout = 30 * time.Second

// messageFlags describe the inbound message a command answers.
type messageFlags struct {
	source    string
	groupID   string
	timestamp int64
	body      string
	dryRun    bool
}

func (f *messageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "to", "", "Signal number of the original sender")
	cmd.Flags().StringVar(&f.groupID, "group", "", "group id when the original message was sent in a group")
	cmd.Flags().Int64Var(&f.timestamp, "timestamp", 0, "timestamp of the original message")
	cmd.Flags().StringVar(&f.body, "original-body", "", "text of the original message (used in quotes)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the payload instead of sending it")
}

func (f *messageFlags) message() (domain.InboundMessage, error) {
	if f.timestamp <= 0 {
		return domain.InboundMessage{}, fmt.Errorf("%w: --timestamp is required", domain.ErrInvalidInput)
	}
	return domain.InboundMessage{
		Source:    f.source,
		Timestamp: f.timestamp,
		GroupID:   f.groupID,
		Body:      f.body,
	}, nil
}

func sendCmd() *cobra.Command {
	var mf messageFlags
	var body string
	var attach []string
	var quote bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Reply to a message with text and attachments",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := mf.message()
			if err != nil {
				return err
			}
			reply := domain.Reply{Body: body, Quote: quote}
			for _, a := range attach {
				att, err := domain.ParseAttachment(a)
				if err != nil {
					return err
				}
				reply.Attachments = append(reply.Attachments, att)
			}
			return deliverReply(msg, reply, mf.dryRun)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&body, "body", "m", "", "message text")
	cmd.Flags().StringArrayVarP(&attach, "attach", "a", nil, "attachment path or JSON descriptor (repeatable)")
	cmd.Flags().BoolVar(&quote, "quote", false, "quote the original message")
	return cmd
}

func reactCmd() *cobra.Command {
	var mf messageFlags
	var emoji string
	var quote bool

	cmd := &cobra.Command{
		Use:   "react",
		Short: "React to a message with an emoji",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := mf.message()
			if err != nil {
				return err
			}
			return deliverReply(msg, domain.Reply{Reaction: true, Body: emoji, Quote: quote}, mf.dryRun)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&emoji, "emoji", "e", "", "reaction emoji")
	cmd.Flags().BoolVar(&quote, "quote", false, "quote the original message")
	return cmd
}

func readCmd() *cobra.Command {
	var mf messageFlags

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Send a read receipt for a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := mf.message()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if mf.dryRun {
				payload, err := sender.BuildMarkRead(cfg.Bot.Username, msg)
				if err != nil {
					return err
				}
				return printPayload(payload)
			}
			return withRuntime(func(ctx context.Context, rt *runtime) error {
				return rt.sender.MarkRead(ctx, msg)
			})
		},
	}
	mf.register(cmd)
	return cmd
}

func deliverReply(msg domain.InboundMessage, reply domain.Reply, dryRun bool) error {
	if dryRun {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		payload, err := sender.BuildReply(cfg.Bot.Username, msg, reply)
		if err != nil {
			return err
		}
		return printPayload(payload)
	}
	return withRuntime(func(ctx context.Context, rt *runtime) error {
		return rt.sender.SendMessage(ctx, msg, reply)
	})
}

// withRuntime loads config, opens the transport and runs fn with a bounded,
// signal-aware context.
func withRuntime(fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := fn(ctx, rt); err != nil {
		return err
	}
	logger.Info("payload sent", "transport", cfg.Transport.Kind)
	return nil
}

func printPayload(p domain.Payload) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
