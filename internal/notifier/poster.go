package notifier

import (
	"context"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Poster delivers a plain text message to a channel or user id.
type Poster interface {
	Post(ctx context.Context, channel, text string) error
}

// MessagePoster is the subset of *slack.Client used for delivery.
type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type SlackPoster struct {
	api MessagePoster
}

func NewSlackPoster(api MessagePoster) *SlackPoster {
	return &SlackPoster{api: api}
}

func (p *SlackPoster) Post(ctx context.Context, channel, text string) error {
	_, _, err := p.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	return err
}

// LogPoster writes messages to the log instead of delivering them.
type LogPoster struct {
	Logger *zap.SugaredLogger
}

func (p LogPoster) Post(_ context.Context, channel, text string) error {
	p.Logger.Infow("dry run message", "channel", channel, "text", text)
	return nil
}
