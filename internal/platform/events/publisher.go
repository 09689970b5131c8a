// Package events provides a fire-and-forget NATS JetStream publisher for
// comment lifecycle events.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects for every comment event type.
const (
	SubjectCommentCreated = "comments.created"
	SubjectCommentEdited  = "comments.edited"
	SubjectCommentDeleted = "comments.deleted"
)

// Event is the envelope sent to all comments.* subjects.
type Event struct {
	EventID    string    `json:"event_id"`
	Subject    string    `json:"subject"`
	DocumentID string    `json:"document_id"`
	SectionID  string    `json:"section_id"`
	CommentID  string    `json:"comment_id"`
	ParentID   *string   `json:"parent_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JetStream is the subset of nats.JetStreamContext the publisher needs.
type JetStream interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publisher publishes comment events.
// The zero value and a nil pointer are both safe no-op stubs.
type Publisher struct {
	js  JetStream
	log *zap.Logger
}

// New creates a Publisher. Pass js=nil for a no-op stub.
func New(js JetStream, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log}
}

// Publish sends ev asynchronously. Failures are logged and never surface to
// the caller.
func (p *Publisher) Publish(subject string, ev Event) {
	if p == nil || p.js == nil {
		return
	}
	ev.EventID = uuid.NewString()
	ev.Subject = subject
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
