package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/api"
	"github.com/example/quotation-comments/services/comments/internal/dialog"
	"github.com/example/quotation-comments/services/comments/internal/thread"
)

type openDialogRequest struct {
	DocumentID string `json:"document_id" validate:"required,max=128"`
	SectionID  string `json:"section_id" validate:"required,max=128"`
}

type textRequest struct {
	Text       string `json:"text" validate:"max=10000"`
	AuthorName string `json:"author_name,omitempty" validate:"max=200"`
}

type submitRequest struct {
	Text       *string `json:"text,omitempty" validate:"omitempty,max=10000"`
	AuthorName *string `json:"author_name,omitempty" validate:"omitempty,max=200"`
}

type targetRequest struct {
	CommentID string `json:"comment_id" validate:"required,max=128"`
}

type draftRequest struct {
	// Form is "new" for the top-level comment form, "active" for the open
	// edit or reply form.
	Form       string `json:"form" validate:"required,oneof=new active"`
	Text       string `json:"text" validate:"max=10000"`
	AuthorName string `json:"author_name,omitempty" validate:"max=200"`
}

type dialogResponse struct {
	ID string `json:"id"`
	dialog.Snapshot
	Comments []thread.ViewNode `json:"comments"`
}

func renderDialog(w http.ResponseWriter, status int, id string, d *dialog.Dialog) {
	snap := d.Snapshot()
	api.WriteJSON(w, status, dialogResponse{
		ID:       id,
		Snapshot: snap,
		Comments: thread.View(snap.Tree),
	})
}

// OpenDialog handles POST /v1/dialogs
func OpenDialog(reg *dialog.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeJSON[openDialogRequest](w, r, false)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		id, d, err := reg.Open(r.Context(), req.DocumentID, req.SectionID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		renderDialog(w, http.StatusCreated, id, d)
	}
}

// GetDialog handles GET /v1/dialogs/{dialog_id}
func GetDialog(reg *dialog.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "dialog_id")
		d, err := reg.Get(id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		renderDialog(w, http.StatusOK, id, d)
	}
}

// CloseDialog handles DELETE /v1/dialogs/{dialog_id}
func CloseDialog(reg *dialog.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Close(chi.URLParam(r, "dialog_id")); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// dialogAction runs fn on the dialog named in the URL and responds with
// the resulting dialog view.
func dialogAction(reg *dialog.Registry, log *zap.Logger, fn func(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "dialog_id")
		d, err := reg.Get(id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := fn(w, r, d); err != nil {
			writeError(w, r, log, err)
			return
		}
		renderDialog(w, http.StatusOK, id, d)
	}
}

func withTarget(call func(d *dialog.Dialog, ctx context.Context, id string) error) func(http.ResponseWriter, *http.Request, *dialog.Dialog) error {
	return func(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) error {
		req, err := decodeJSON[targetRequest](w, r, false)
		if err != nil {
			return err
		}
		return call(d, r.Context(), strings.TrimSpace(req.CommentID))
	}
}

func createInDialog(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) error {
	req, err := decodeJSON[textRequest](w, r, false)
	if err != nil {
		return err
	}
	return d.Create(r.Context(), req.Text, req.AuthorName)
}

func setDraft(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) error {
	req, err := decodeJSON[draftRequest](w, r, false)
	if err != nil {
		return err
	}
	if req.Form == "new" {
		return d.SetNewDraft(req.Text, req.AuthorName)
	}
	return d.SetDraft(req.Text, req.AuthorName)
}

// submitWithDraft applies an optional draft in the body before submitting.
func submitWithDraft(submit func(d *dialog.Dialog, ctx context.Context) error) func(http.ResponseWriter, *http.Request, *dialog.Dialog) error {
	return func(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) error {
		req, err := decodeJSON[submitRequest](w, r, true)
		if err != nil {
			return err
		}
		if req.Text != nil {
			author := ""
			if req.AuthorName != nil {
				author = *req.AuthorName
			}
			if err := d.SetDraft(*req.Text, author); err != nil {
				return err
			}
		}
		return submit(d, r.Context())
	}
}

func noBody(call func(d *dialog.Dialog) error) func(http.ResponseWriter, *http.Request, *dialog.Dialog) error {
	return func(_ http.ResponseWriter, _ *http.Request, d *dialog.Dialog) error {
		return call(d)
	}
}
