// Package idempotency deduplicates comment creation retries keyed by the
// client's Idempotency-Key header.
//
// Backend: Redis SETNX with TTL when REDIS_URL is set, otherwise an
// in-memory map (development only).
package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrInProgress is returned by Reserve while the first request with the
// same key has not completed.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

// Store remembers the response of the first request for each key.
type Store interface {
	// Reserve claims key. If the key already completed, the stored response
	// is returned with reserved=false; if it is still pending, ErrInProgress.
	Reserve(ctx context.Context, key string) (response []byte, reserved bool, err error)
	// Complete stores the response for a reserved key.
	Complete(ctx context.Context, key string, response []byte) error
	// Release forgets a reserved key after the request failed so it can be retried.
	Release(ctx context.Context, key string) error
}

const defaultTTL = 24 * time.Hour
