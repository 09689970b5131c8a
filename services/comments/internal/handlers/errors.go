package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/quotation-comments/internal/platform/api"
	"github.com/example/quotation-comments/internal/platform/httpserver"
	"github.com/example/quotation-comments/services/comments/internal/dialog"
	"github.com/example/quotation-comments/services/comments/internal/handoff"
	"github.com/example/quotation-comments/services/comments/internal/repository"
)

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = 5

// writeError maps domain errors onto the JSON error envelope.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	if log == nil {
		log = zap.NewNop()
	}

	var (
		berr *bindError
		verr *repository.ValidationError
	)
	switch {
	case errors.As(err, &berr):
		api.Validation(w, berr.code, berr.field, berr.message, rid)
	case errors.As(err, &verr):
		api.Validation(w, "VALIDATION", verr.Field, repository.UserMessage(err), rid)
	case errors.Is(err, repository.ErrValidation):
		api.BadRequest(w, "VALIDATION", repository.UserMessage(err), rid, nil)
	case errors.Is(err, dialog.ErrBusy):
		api.Conflict(w, "BUSY", "Another change is still being saved.", rid, nil)
	case errors.Is(err, dialog.ErrNoForm):
		api.Conflict(w, "NO_FORM", "No edit or reply form is open.", rid, nil)
	case errors.Is(err, dialog.ErrUnknownDialog), errors.Is(err, dialog.ErrClosed):
		api.NotFound(w, "DIALOG_NOT_FOUND", "dialog not found", rid)
	case errors.Is(err, handoff.ErrNoComments):
		api.Unprocessable(w, "NO_COMMENTS", handoff.NoCommentsMessage, rid)
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrStoreUnavailable):
		api.Unavailable(w, "STORE_UNAVAILABLE", repository.UserMessage(err), rid, retryAfterSeconds)
	default:
		log.Error("unhandled error", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}
