package handlers

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/quotation-comments/services/comments/internal/dialog"
	"github.com/example/quotation-comments/services/comments/internal/handoff"
	"github.com/example/quotation-comments/services/comments/internal/idempotency"
)

// Deps are the collaborators of the comments HTTP API.
type Deps struct {
	Comments CommentService
	Dialogs  *dialog.Registry
	Handoff  *handoff.Builder
	// Idempotency is optional.
	Idempotency idempotency.Store
	Log         *zap.Logger
}

// Mount registers the comments API on r.
func Mount(r chi.Router, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r.Route("/v1/documents/{document_id}", func(r chi.Router) {
		r.Get("/comments", GetReview(d.Comments, log))
		r.Get("/handoff", GetHandoff(d.Handoff, log))
		r.Get("/sections/{section_id}/comments", GetThread(d.Comments, log))
		r.Post("/sections/{section_id}/comments", CreateComment(d.Comments, d.Idempotency, log))
	})
	r.Put("/v1/comments/{comment_id}", UpdateComment(d.Comments, log))
	r.Delete("/v1/comments/{comment_id}", DeleteComment(d.Comments, log))

	reg := d.Dialogs
	r.Post("/v1/dialogs", OpenDialog(reg, log))
	r.Route("/v1/dialogs/{dialog_id}", func(r chi.Router) {
		r.Get("/", GetDialog(reg, log))
		r.Delete("/", CloseDialog(reg, log))

		r.Post("/create", dialogAction(reg, log, createInDialog))
		r.Post("/draft", dialogAction(reg, log, setDraft))
		r.Post("/delete", dialogAction(reg, log, withTarget((*dialog.Dialog).Delete)))

		r.Post("/edit/start", dialogAction(reg, log, withTarget(func(d *dialog.Dialog, _ context.Context, id string) error {
			return d.StartEdit(id)
		})))
		r.Post("/edit/cancel", dialogAction(reg, log, noBody((*dialog.Dialog).CancelEdit)))
		r.Post("/edit/submit", dialogAction(reg, log, submitWithDraft((*dialog.Dialog).SubmitEdit)))

		r.Post("/reply/start", dialogAction(reg, log, withTarget(func(d *dialog.Dialog, _ context.Context, id string) error {
			return d.StartReply(id)
		})))
		r.Post("/reply/cancel", dialogAction(reg, log, noBody((*dialog.Dialog).CancelReply)))
		r.Post("/reply/submit", dialogAction(reg, log, submitWithDraft((*dialog.Dialog).SubmitReply)))
	})
}
