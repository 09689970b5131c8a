package store

import (
	"context"
	"errors"
	"time"
)

// Comment represents a single quotation_comments row.
type Comment struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	SectionID  string     `json:"section_id"`
	Text       string     `json:"text"`
	AuthorName *string    `json:"author_name,omitempty"`
	ParentID   *string    `json:"parent_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// NewComment carries the caller-supplied fields of an insert.
type NewComment struct {
	DocumentID string
	SectionID  string
	Text       string
	AuthorName *string
	ParentID   *string
}

// CommentPatch is a partial update. Text is applied when non-nil; AuthorName
// is applied (nil clears it) only when SetAuthor is true.
type CommentPatch struct {
	Text       *string
	AuthorName *string
	SetAuthor  bool
}

// CommentStore defines the contract for comment persistence.
type CommentStore interface {
	// Query returns the non-deleted comments of one section, oldest first.
	Query(ctx context.Context, documentID, sectionID string) ([]Comment, error)
	// QueryDocument returns the non-deleted comments of every section, oldest first.
	QueryDocument(ctx context.Context, documentID string) ([]Comment, error)
	Insert(ctx context.Context, c NewComment) (Comment, error)
	// Update fails with ErrNotFound for unknown or soft-deleted ids.
	Update(ctx context.Context, id string, p CommentPatch) (Comment, error)
	// SoftDelete stamps deleted_at once; repeating it is a no-op success.
	// stamped reports whether this call set the tombstone.
	SoftDelete(ctx context.Context, id string) (c Comment, stamped bool, err error)
	Ping(ctx context.Context) error
}

// Sentinel errors
var ErrNotFound = errors.New("comment not found")
