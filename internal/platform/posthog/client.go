// Package posthog forwards comment events to PostHog for product analytics.
package posthog

import (
	"time"

	ph "github.com/posthog/posthog-go"
	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/events"
)

// Client wraps posthog-go.
type Client struct {
	ph  ph.Client
	log *zap.Logger
}

// New creates a PostHog client for the project apiKey at host.
func New(apiKey, host string, flushInterval time.Duration, batchSize int, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := ph.NewWithConfig(apiKey, ph.Config{
		Endpoint:  host,
		BatchSize: batchSize,
		Interval:  flushInterval,
		Logger:    &zapLogger{log: log},
	})
	if err != nil {
		return nil, err
	}
	return &Client{ph: client, log: log}, nil
}

// Publish captures ev as a PostHog event named after subject. Comments are
// anonymous, so the document id is the distinct id.
func (c *Client) Publish(subject string, ev events.Event) {
	if c == nil || c.ph == nil {
		return
	}
	p := ph.NewProperties().
		Set("document_id", ev.DocumentID).
		Set("section_id", ev.SectionID).
		Set("comment_id", ev.CommentID).
		Set("is_reply", ev.ParentID != nil)
	if err := c.ph.Enqueue(ph.Capture{
		DistinctId: ev.DocumentID,
		Event:      subject,
		Properties: p,
	}); err != nil {
		c.log.Warn("posthog: enqueue failed", zap.String("event", subject), zap.Error(err))
	}
}

// Close flushes buffered events and shuts down the client.
func (c *Client) Close() error {
	if c == nil || c.ph == nil {
		return nil
	}
	return c.ph.Close()
}

// zapLogger adapts zap to posthog-go's Logger interface.
type zapLogger struct {
	log *zap.Logger
}

func (z *zapLogger) Debugf(format string, args ...any) {
	z.log.Sugar().Debugf(format, args...)
}

func (z *zapLogger) Logf(format string, args ...any) {
	z.log.Sugar().Infof(format, args...)
}

func (z *zapLogger) Warnf(format string, args ...any) {
	z.log.Sugar().Warnf(format, args...)
}

func (z *zapLogger) Errorf(format string, args ...any) {
	z.log.Sugar().Errorf(format, args...)
}
