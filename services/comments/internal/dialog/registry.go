package dialog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/metrics"
	"github.com/example/quotation-comments/services/comments/internal/repository"
)

// ErrUnknownDialog is returned for ids that were never opened, were closed
// or expired.
var ErrUnknownDialog = errors.New("unknown dialog")

type entry struct {
	dialog   *Dialog
	lastUsed time.Time
}

// Registry keeps the open dialogs of all viewers keyed by a random id.
// Dialogs idle for longer than the TTL are closed by Sweep.
type Registry struct {
	repo    Repo
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	dialogs map[string]*entry
}

// NewRegistry creates a Registry. m and log may be nil.
func NewRegistry(repo Repo, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		repo:    repo,
		ttl:     ttl,
		metrics: m,
		log:     log,
		now:     time.Now,
		dialogs: make(map[string]*entry),
	}
}

// Open creates and loads a dialog. It is registered even when the initial
// load fails; the dialog then shows no comments and a notice.
func (r *Registry) Open(ctx context.Context, documentID, sectionID string) (string, *Dialog, error) {
	documentID = strings.TrimSpace(documentID)
	sectionID = strings.TrimSpace(sectionID)
	if documentID == "" {
		return "", nil, &repository.ValidationError{Field: "document_id", Reason: "must not be empty"}
	}
	if sectionID == "" {
		return "", nil, &repository.ValidationError{Field: "section_id", Reason: "must not be empty"}
	}

	d := New(r.repo, documentID, sectionID, r.log)
	if err := d.Open(ctx); err != nil {
		r.log.Warn("dialog opened without comments",
			zap.String("document_id", documentID), zap.String("section_id", sectionID), zap.Error(err))
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.dialogs[id] = &entry{dialog: d, lastUsed: r.now()}
	r.setGauge()
	r.mu.Unlock()
	return id, d, nil
}

// Get returns an open dialog and marks it as used.
func (r *Registry) Get(id string) (*Dialog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.dialogs[id]
	if !ok {
		return nil, ErrUnknownDialog
	}
	e.lastUsed = r.now()
	return e.dialog, nil
}

// Close closes and forgets a dialog.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	e, ok := r.dialogs[id]
	if ok {
		delete(r.dialogs, id)
		r.setGauge()
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownDialog
	}
	e.dialog.Close()
	return nil
}

// Len returns the number of open dialogs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dialogs)
}

// Sweep closes dialogs idle for longer than the TTL and returns how many
// were closed. A non-positive TTL disables expiry.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Dialog
	for id, e := range r.dialogs {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e.dialog)
			delete(r.dialogs, id)
		}
	}
	r.setGauge()
	r.mu.Unlock()

	for _, d := range expired {
		d.Close()
	}
	if len(expired) > 0 {
		r.log.Info("expired idle dialogs", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

// setGauge must be called with mu held.
func (r *Registry) setGauge() {
	if r.metrics == nil {
		return
	}
	r.metrics.DialogsOpen.Set(float64(len(r.dialogs)))
}
