package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes NewBreakerCommentStore.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker. Default 5.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open. Default 30s.
	Timeout time.Duration
}

// BreakerCommentStore stops calling an unreachable store after repeated
// failures. While open, calls fail fast with gobreaker.ErrOpenState.
// ErrNotFound does not count as a failure.
type BreakerCommentStore struct {
	next CommentStore
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerCommentStore(next CommentStore, cfg BreakerSettings, log *zap.Logger) *BreakerCommentStore {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "comment-store",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &BreakerCommentStore{next: next, cb: cb}
}

// State reports the breaker state.
func (s *BreakerCommentStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *BreakerCommentStore) Query(ctx context.Context, documentID, sectionID string) ([]Comment, error) {
	return execute(s.cb, func() ([]Comment, error) { return s.next.Query(ctx, documentID, sectionID) })
}

func (s *BreakerCommentStore) QueryDocument(ctx context.Context, documentID string) ([]Comment, error) {
	return execute(s.cb, func() ([]Comment, error) { return s.next.QueryDocument(ctx, documentID) })
}

func (s *BreakerCommentStore) Insert(ctx context.Context, in NewComment) (Comment, error) {
	return execute(s.cb, func() (Comment, error) { return s.next.Insert(ctx, in) })
}

func (s *BreakerCommentStore) Update(ctx context.Context, id string, p CommentPatch) (Comment, error) {
	return execute(s.cb, func() (Comment, error) { return s.next.Update(ctx, id, p) })
}

func (s *BreakerCommentStore) SoftDelete(ctx context.Context, id string) (Comment, bool, error) {
	type deletion struct {
		c       Comment
		stamped bool
	}
	d, err := execute(s.cb, func() (deletion, error) {
		c, stamped, err := s.next.SoftDelete(ctx, id)
		return deletion{c, stamped}, err
	})
	return d.c, d.stamped, err
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (s *BreakerCommentStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	v, _ := res.(T)
	return v, err
}
