// Package notify implements the best-effort Slack notifier: it posts
// a summary when analyze surfaces one or more extreme anomalies, and
// never blocks or fails the analysis it's reporting on.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/sirupsen/logrus"

	"github.com/adinsight/adinsight/internal/config"
	"github.com/adinsight/adinsight/pkg/types"
)

const notifyTimeout = 5 * time.Second

// SessionInfo is the subset of Session identity a notification needs.
type SessionInfo struct {
	ID     string
	Tenant string
}

// Notifier posts a summary of a finished analysis. Implementations
// must be safe to call from a detached goroutine and must never
// return an error that the caller is expected to act on — the
// caller's job is only to log it.
type Notifier interface {
	NotifyAnomalies(ctx context.Context, info SessionInfo, anomalies []types.Anomaly) error
}

// NoopNotifier is the default when no Slack channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyAnomalies(context.Context, SessionInfo, []types.Anomaly) error { return nil }

// slackClient is the narrow slice of *slack.Client this package calls,
// so tests can substitute a fake without hitting the network.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts an extreme-anomaly summary to one configured
// channel.
type SlackNotifier struct {
	client  slackClient
	channel string
	logger  *logrus.Logger
}

// New selects NoopNotifier when cfg.SlackChannel is empty, otherwise a
// SlackNotifier authenticated with the bot token read once from
// config.SlackBotToken().
func New(cfg config.NotifyConfig, logger *logrus.Logger) Notifier {
	if cfg.SlackChannel == "" {
		return NoopNotifier{}
	}
	return &SlackNotifier{
		client:  slack.New(config.SlackBotToken()),
		channel: cfg.SlackChannel,
		logger:  logger,
	}
}

// NotifyAnomalies posts one message summarizing every extreme-severity
// anomaly in anomalies. A session with no extreme anomalies produces
// no message and no error.
func (n *SlackNotifier) NotifyAnomalies(ctx context.Context, info SessionInfo, anomalies []types.Anomaly) error {
	extreme := filterExtreme(anomalies)
	if len(extreme) == 0 {
		return nil
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(summaryText(info, extreme), false))
	return err
}

// NotifyAsync runs NotifyAnomalies in a detached goroutine with its
// own timeout, logging but never propagating a failure. Call sites in
// analyze should fire this and move on immediately.
func NotifyAsync(notifier Notifier, info SessionInfo, anomalies []types.Anomaly, logger *logrus.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := notifier.NotifyAnomalies(ctx, info, anomalies); err != nil {
			logger.WithFields(logrus.Fields{
				"session_id": info.ID,
				"tenant":     info.Tenant,
			}).WithError(err).Warn("slack notification failed")
		}
	}()
}

func filterExtreme(anomalies []types.Anomaly) []types.Anomaly {
	var out []types.Anomaly
	for _, a := range anomalies {
		if a.Severity == types.SeverityExtreme {
			out = append(out, a)
		}
	}
	return out
}

func summaryText(info SessionInfo, extreme []types.Anomaly) string {
	var b strings.Builder
	fmt.Fprintf(&b, "adinsight: %d extreme anomal%s for tenant %s (session %s)\n",
		len(extreme), plural(len(extreme)), info.Tenant, info.ID)
	for _, a := range extreme {
		fmt.Fprintf(&b, "- %s: %s %s (observed %.2f, baseline %.2f, z=%.2f)\n",
			a.AdSummary.AdID, a.Metric, a.Direction, a.Observed, a.Baseline, a.ZScore)
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
