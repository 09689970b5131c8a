// Package repository is the comment repository: validated reads and writes
// against the comment store, with no local cache and no optimistic state.
// Callers re-run List after every successful mutation.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/events"
	"github.com/example/quotation-comments/services/comments/internal/store"
)

// Publisher receives comment lifecycle events after successful mutations.
type Publisher interface {
	Publish(subject string, ev events.Event)
}

type Repository struct {
	store     store.CommentStore
	publisher Publisher
	log       *zap.Logger
}

// New creates a Repository. publisher and log may be nil.
func New(s store.CommentStore, publisher Publisher, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{store: s, publisher: publisher, log: log}
}

// List returns the non-deleted comments of one section, oldest first.
func (r *Repository) List(ctx context.Context, documentID, sectionID string) ([]store.Comment, error) {
	if err := requireScope(documentID, sectionID); err != nil {
		return nil, err
	}
	out, err := r.store.Query(ctx, documentID, sectionID)
	if err != nil {
		r.log.Warn("list comments failed",
			zap.String("document_id", documentID), zap.String("section_id", sectionID), zap.Error(err))
		return nil, fmt.Errorf("%w: list: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// ListDocument returns every non-deleted comment of a document across
// sections, oldest first, for review and export.
func (r *Repository) ListDocument(ctx context.Context, documentID string) ([]store.Comment, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, &ValidationError{Field: "document_id", Reason: "must not be empty"}
	}
	out, err := r.store.QueryDocument(ctx, documentID)
	if err != nil {
		r.log.Warn("list document comments failed", zap.String("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("%w: list document: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Create inserts a top-level comment, or a reply when parentID is set.
// Text and author are trimmed; a blank author is stored as absent.
func (r *Repository) Create(ctx context.Context, documentID, sectionID, text, authorName string, parentID *string) (store.Comment, error) {
	if err := requireScope(documentID, sectionID); err != nil {
		return store.Comment{}, err
	}
	text, err := cleanText(text)
	if err != nil {
		return store.Comment{}, err
	}
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		parentID = nil
	}

	c, err := r.store.Insert(ctx, store.NewComment{
		DocumentID: documentID,
		SectionID:  sectionID,
		Text:       text,
		AuthorName: cleanAuthor(authorName),
		ParentID:   parentID,
	})
	if err != nil {
		r.log.Warn("create comment failed",
			zap.String("document_id", documentID), zap.String("section_id", sectionID), zap.Error(err))
		return store.Comment{}, mapStoreErr("create", err)
	}

	r.publish(events.SubjectCommentCreated, c)
	return c, nil
}

// Edit replaces text and author of a live comment and bumps updated_at.
func (r *Repository) Edit(ctx context.Context, id, text, authorName string) error {
	text, err := cleanText(text)
	if err != nil {
		return err
	}
	c, err := r.store.Update(ctx, id, store.CommentPatch{
		Text:       &text,
		AuthorName: cleanAuthor(authorName),
		SetAuthor:  true,
	})
	if err != nil {
		r.log.Warn("edit comment failed", zap.String("comment_id", id), zap.Error(err))
		return mapStoreErr("edit", err)
	}

	r.publish(events.SubjectCommentEdited, c)
	return nil
}

// SoftDelete stamps deleted_at on the comment only, not its replies.
// Deleting an already-deleted comment succeeds without publishing again.
func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	c, stamped, err := r.store.SoftDelete(ctx, id)
	if err != nil {
		r.log.Warn("delete comment failed", zap.String("comment_id", id), zap.Error(err))
		return mapStoreErr("delete", err)
	}

	if stamped {
		r.publish(events.SubjectCommentDeleted, c)
	}
	return nil
}

func (r *Repository) publish(subject string, c store.Comment) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(subject, events.Event{
		DocumentID: c.DocumentID,
		SectionID:  c.SectionID,
		CommentID:  c.ID,
		ParentID:   c.ParentID,
	})
}

func mapStoreErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

func requireScope(documentID, sectionID string) error {
	if strings.TrimSpace(documentID) == "" {
		return &ValidationError{Field: "document_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(sectionID) == "" {
		return &ValidationError{Field: "section_id", Reason: "must not be empty"}
	}
	return nil
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	return text, nil
}

func cleanAuthor(name string) *string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &name
}
