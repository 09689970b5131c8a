package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/api"
	"github.com/example/quotation-comments/internal/platform/httpserver"
	"github.com/example/quotation-comments/services/comments/internal/handoff"
	"github.com/example/quotation-comments/services/comments/internal/idempotency"
	"github.com/example/quotation-comments/services/comments/internal/store"
	"github.com/example/quotation-comments/services/comments/internal/thread"
)

// CommentService is the comment repository as seen by the handlers.
type CommentService interface {
	List(ctx context.Context, documentID, sectionID string) ([]store.Comment, error)
	ListDocument(ctx context.Context, documentID string) ([]store.Comment, error)
	Create(ctx context.Context, documentID, sectionID, text, authorName string, parentID *string) (store.Comment, error)
	Edit(ctx context.Context, id, text, authorName string) error
	SoftDelete(ctx context.Context, id string) error
}

type createCommentRequest struct {
	Text       string  `json:"text" validate:"max=10000"`
	AuthorName string  `json:"author_name,omitempty" validate:"max=200"`
	ParentID   *string `json:"parent_id,omitempty" validate:"omitempty,max=128"`
}

type updateCommentRequest struct {
	Text       string `json:"text" validate:"max=10000"`
	AuthorName string `json:"author_name,omitempty" validate:"max=200"`
}

type threadResponse struct {
	DocumentID string            `json:"document_id"`
	SectionID  string            `json:"section_id"`
	Comments   []thread.ViewNode `json:"comments"`
}

// GetThread handles GET /v1/documents/{document_id}/sections/{section_id}/comments
func GetThread(cs CommentService, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		documentID, sectionID := scope(r)
		comments, err := cs.List(r.Context(), documentID, sectionID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if hidden := thread.Orphans(comments); len(hidden) > 0 {
			log.Debug("replies hidden under removed parents",
				zap.String("document_id", documentID),
				zap.String("section_id", sectionID),
				zap.Strings("comment_ids", hidden),
			)
		}
		api.WriteJSON(w, http.StatusOK, threadResponse{
			DocumentID: documentID,
			SectionID:  sectionID,
			Comments:   thread.View(thread.Build(comments)),
		})
	}
}

// IdempotencyHeader lets clients retry a create without duplicating it.
const IdempotencyHeader = "Idempotency-Key"

// CreateComment handles POST /v1/documents/{document_id}/sections/{section_id}/comments
//
// With an Idempotency-Key header, a repeated request returns the comment
// created by the first one. idem may be nil.
func CreateComment(cs CommentService, idem idempotency.Store, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		documentID, sectionID := scope(r)
		req, err := decodeJSON[createCommentRequest](w, r, false)
		if err != nil {
			writeError(w, r, log, err)
			return
		}

		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if len(key) > 255 {
			api.BadRequest(w, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key is too long", rid, nil)
			return
		}
		if key != "" && idem != nil {
			key = documentID + ":" + sectionID + ":" + key
			prev, reserved, err := idem.Reserve(r.Context(), key)
			switch {
			case errors.Is(err, idempotency.ErrInProgress):
				api.Conflict(w, "IN_PROGRESS", "The same request is still being processed.", rid, nil)
				return
			case err != nil:
				log.Warn("idempotency reserve failed", zap.String("request_id", rid), zap.Error(err))
				key = ""
			case !reserved:
				w.Header().Set("Idempotent-Replayed", "true")
				api.WriteJSON(w, http.StatusCreated, json.RawMessage(prev))
				return
			}
		} else {
			key = ""
		}

		created, err := cs.Create(r.Context(), documentID, sectionID, req.Text, req.AuthorName, req.ParentID)
		if err != nil {
			if key != "" {
				if rerr := idem.Release(r.Context(), key); rerr != nil {
					log.Warn("idempotency release failed", zap.String("request_id", rid), zap.Error(rerr))
				}
			}
			writeError(w, r, log, err)
			return
		}
		if key != "" {
			if body, err := json.Marshal(created); err == nil {
				if err := idem.Complete(r.Context(), key, body); err != nil {
					log.Warn("idempotency complete failed", zap.String("request_id", rid), zap.Error(err))
				}
			}
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(cs CommentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}
		req, err := decodeJSON[updateCommentRequest](w, r, false)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := cs.Edit(r.Context(), commentID, req.Text, req.AuthorName); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}
func DeleteComment(cs CommentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", httpserver.RequestIDFromContext(r.Context()), nil)
			return
		}
		if err := cs.SoftDelete(r.Context(), commentID); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetReview handles GET /v1/documents/{document_id}/comments
func GetReview(cs CommentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := strings.TrimSpace(chi.URLParam(r, "document_id"))
		comments, err := cs.ListDocument(r.Context(), documentID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, handoff.Summary(documentID, comments))
	}
}

// GetHandoff handles GET /v1/documents/{document_id}/handoff
func GetHandoff(b *handoff.Builder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := strings.TrimSpace(chi.URLParam(r, "document_id"))
		res, err := b.Build(r.Context(), documentID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

func scope(r *http.Request) (documentID, sectionID string) {
	return strings.TrimSpace(chi.URLParam(r, "document_id")), strings.TrimSpace(chi.URLParam(r, "section_id"))
}
