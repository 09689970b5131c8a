package store

import (
	"context"
	"time"

	"github.com/example/quotation-comments/internal/platform/metrics"
)

// InstrumentedCommentStore records Prometheus metrics for every call.
type InstrumentedCommentStore struct {
	next    CommentStore
	metrics *metrics.Metrics
}

func NewInstrumentedCommentStore(next CommentStore, m *metrics.Metrics) *InstrumentedCommentStore {
	return &InstrumentedCommentStore{next: next, metrics: m}
}

func (s *InstrumentedCommentStore) Query(ctx context.Context, documentID, sectionID string) (out []Comment, err error) {
	defer s.observe("query", time.Now(), &err)
	return s.next.Query(ctx, documentID, sectionID)
}

func (s *InstrumentedCommentStore) QueryDocument(ctx context.Context, documentID string) (out []Comment, err error) {
	defer s.observe("query_document", time.Now(), &err)
	return s.next.QueryDocument(ctx, documentID)
}

func (s *InstrumentedCommentStore) Insert(ctx context.Context, in NewComment) (c Comment, err error) {
	defer s.observe("insert", time.Now(), &err)
	return s.next.Insert(ctx, in)
}

func (s *InstrumentedCommentStore) Update(ctx context.Context, id string, p CommentPatch) (c Comment, err error) {
	defer s.observe("update", time.Now(), &err)
	return s.next.Update(ctx, id, p)
}

func (s *InstrumentedCommentStore) SoftDelete(ctx context.Context, id string) (c Comment, stamped bool, err error) {
	defer s.observe("soft_delete", time.Now(), &err)
	return s.next.SoftDelete(ctx, id)
}

func (s *InstrumentedCommentStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *InstrumentedCommentStore) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveStore(op, start, *err)
}
