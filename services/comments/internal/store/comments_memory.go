package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRow struct {
	Comment
	seq uint64
}

// InMemoryCommentStore is a development-only in-memory implementation.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	comments map[string]memoryRow // id -> row
	seq      uint64
	last     time.Time
	now      func() time.Time
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return NewInMemoryCommentStoreWithClock(func() time.Time { return time.Now().UTC() })
}

// NewInMemoryCommentStoreWithClock uses now for every timestamp. The store
// never hands out the same instant twice, so edits always move updated_at.
func NewInMemoryCommentStoreWithClock(now func() time.Time) *InMemoryCommentStore {
	return &InMemoryCommentStore{
		comments: make(map[string]memoryRow),
		now:      now,
	}
}

// tick must be called with mu held for writing.
func (s *InMemoryCommentStore) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *InMemoryCommentStore) Insert(_ context.Context, in NewComment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	s.seq++
	c := Comment{
		ID:         uuid.NewString(),
		DocumentID: in.DocumentID,
		SectionID:  in.SectionID,
		Text:       in.Text,
		AuthorName: cloneString(in.AuthorName),
		ParentID:   cloneString(in.ParentID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.comments[c.ID] = memoryRow{Comment: c, seq: s.seq}
	return c, nil
}

func (s *InMemoryCommentStore) Query(_ context.Context, documentID, sectionID string) ([]Comment, error) {
	return s.collect(func(c Comment) bool {
		return c.DocumentID == documentID && c.SectionID == sectionID
	}), nil
}

func (s *InMemoryCommentStore) QueryDocument(_ context.Context, documentID string) ([]Comment, error) {
	return s.collect(func(c Comment) bool { return c.DocumentID == documentID }), nil
}

func (s *InMemoryCommentStore) collect(match func(Comment) bool) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]memoryRow, 0)
	for _, r := range s.comments {
		if r.DeletedAt == nil && match(r.Comment) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})

	out := make([]Comment, len(rows))
	for i, r := range rows {
		out[i] = copyComment(r.Comment)
	}
	return out
}

func (s *InMemoryCommentStore) Update(_ context.Context, id string, p CommentPatch) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok || r.DeletedAt != nil {
		return Comment{}, ErrNotFound
	}
	if p.Text != nil {
		r.Text = *p.Text
	}
	if p.SetAuthor {
		r.AuthorName = cloneString(p.AuthorName)
	}
	r.UpdatedAt = s.tick()
	s.comments[id] = r
	return copyComment(r.Comment), nil
}

func (s *InMemoryCommentStore) SoftDelete(_ context.Context, id string) (Comment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return Comment{}, false, ErrNotFound
	}
	if r.DeletedAt != nil {
		return copyComment(r.Comment), false, nil
	}
	now := s.tick()
	r.DeletedAt = &now
	s.comments[id] = r
	return copyComment(r.Comment), true, nil
}

func (s *InMemoryCommentStore) Ping(context.Context) error { return nil }

func copyComment(c Comment) Comment {
	c.AuthorName = cloneString(c.AuthorName)
	c.ParentID = cloneString(c.ParentID)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		c.DeletedAt = &t
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
