package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/stratagem/pkg/domain/interfaces"
	"github.com/secmon-lab/stratagem/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds CLI flags for the optional summary notifier
type Slack struct {
	token   string
	channel string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Usage:       "Slack Bot User OAuth Token for posting game summaries",
			Category:    "Slack",
			Destination: &x.token,
			Sources:     cli.EnvVars("STRATAGEM_SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID that receives game summaries",
			Category:    "Slack",
			Destination: &x.channel,
			Sources:     cli.EnvVars("STRATAGEM_SLACK_CHANNEL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("token.len", len(x.token)),
		slog.String("channel", x.channel),
	)
}

// Configure returns the notifier, or nil when Slack is not configured
func (x *Slack) Configure() (interfaces.Notifier, error) {
	if x.token == "" && x.channel == "" {
		return nil, nil
	}
	if x.token == "" || x.channel == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "both slack-token and slack-channel are required")
	}
	n, err := slack.New(x.token, x.channel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Slack notifier")
	}
	return n, nil
}
