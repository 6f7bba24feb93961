package slack

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
	"github.com/secmon-lab/stratagem/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// poster is the part of the Slack API the notifier uses
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts game and run summaries to one Slack channel
type Notifier struct {
	api     poster
	channel string
	title   string
}

var _ interfaces.Notifier = (*Notifier)(nil)

// Option is a functional option for Notifier configuration
type Option func(*Notifier)

// WithTitle sets the prefix of every message header
func WithTitle(title string) Option {
	return func(n *Notifier) {
		n.title = title
	}
}

// New creates a notifier with the provided bot token
func New(token, channel string, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	return newNotifier(slack.New(token), channel, opts...)
}

func newNotifier(api poster, channel string, opts ...Option) (*Notifier, error) {
	if channel == "" {
		return nil, goerr.New("Slack channel is required")
	}
	n := &Notifier{
		api:     api,
		channel: channel,
		title:   "stratagem",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Notifier) NotifyGame(ctx context.Context, summary *model.GameSummary) error {
	if summary == nil {
		return nil
	}
	blocks := buildGameBlocks(n.title, summary)
	return n.post(ctx, blocks, gameFallback(summary))
}

func (n *Notifier) NotifyRun(ctx context.Context, summary *model.RunSummary) error {
	if summary == nil {
		return nil
	}
	blocks := buildRunBlocks(n.title, summary)
	return n.post(ctx, blocks, runFallback(summary))
}

func (n *Notifier) post(ctx context.Context, blocks []slack.Block, text string) error {
	_, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post message", goerr.V("channel", n.channel))
	}
	logging.From(ctx).Debug("summary posted to Slack", slog.String("channel", n.channel), slog.String("ts", ts))
	return nil
}
