package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts a one-line summary of each event to a channel.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

// NewSlack creates a SlackNotifier. apiURL overrides the Slack endpoint and
// may be empty.
func NewSlack(token, channel, apiURL string) *SlackNotifier {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackNotifier{api: slack.New(token, opts...), channel: channel}
}

func (s *SlackNotifier) Notify(ctx context.Context, e Event) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(e.Summary(), false))
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}
