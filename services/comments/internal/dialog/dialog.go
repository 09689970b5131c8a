package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/quotation-comments/services/comments/internal/repository"
	"github.com/example/quotation-comments/services/comments/internal/store"
	"github.com/example/quotation-comments/services/comments/internal/thread"
)

var (
	// ErrBusy is returned while another mutation of the dialog is in flight.
	ErrBusy = errors.New("dialog busy")
	// ErrClosed is returned by actions on a dialog that is not open.
	ErrClosed = errors.New("dialog closed")
	// ErrNoForm is returned when submitting without the matching form open.
	ErrNoForm = errors.New("no form open")
)

// Repo is the subset of the comment repository a dialog uses.
type Repo interface {
	List(ctx context.Context, documentID, sectionID string) ([]store.Comment, error)
	Create(ctx context.Context, documentID, sectionID, text, authorName string, parentID *string) (store.Comment, error)
	Edit(ctx context.Context, id, text, authorName string) error
	SoftDelete(ctx context.Context, id string) error
}

// Snapshot is a consistent copy of what a dialog shows.
type Snapshot struct {
	DocumentID string        `json:"document_id"`
	SectionID  string        `json:"section_id"`
	Open       bool          `json:"open"`
	Tree       []thread.Node `json:"-"`
	State      State         `json:"state"`
	NewDraft   Draft         `json:"new_draft"`
	Notice     string        `json:"notice,omitempty"`
	Busy       bool          `json:"busy"`
}

// Dialog is the comment dialog of one (document, section).
//
// The tree is fetched on Open and after every successful mutation, never
// otherwise. One mutation may be in flight at a time. Results that arrive
// after Close are dropped.
type Dialog struct {
	repo       Repo
	log        *zap.Logger
	documentID string
	sectionID  string

	mu       sync.Mutex
	gen      uint64
	open     bool
	busy     bool
	tree     []thread.Node
	state    State
	newDraft Draft
	notice   string
}

// New returns a closed dialog; call Open to load it.
func New(repo Repo, documentID, sectionID string, log *zap.Logger) *Dialog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dialog{
		repo:       repo,
		log:        log,
		documentID: documentID,
		sectionID:  sectionID,
		tree:       []thread.Node{},
	}
}

// Open resets the dialog and loads the section's comments. A failed load
// leaves the dialog open with no comments and a notice; the error is
// returned for logging only.
func (d *Dialog) Open(ctx context.Context) error {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.open = true
	d.busy = false
	d.state = State{}
	d.newDraft = Draft{}
	d.notice = ""
	d.tree = []thread.Node{}
	d.mu.Unlock()

	comments, err := d.repo.List(ctx, d.documentID, d.sectionID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return ErrClosed
	}
	d.applyList(comments, err)
	return err
}

// Close tears the dialog down. In-flight calls still reach the store but
// their results are not applied.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.open = false
	d.busy = false
	d.state = State{}
	d.newDraft = Draft{}
	d.notice = ""
	d.tree = []thread.Node{}
}

// SetNewDraft stores the input of the new top-level comment form.
func (d *Dialog) SetNewDraft(text, author string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}
	d.newDraft = Draft{Text: text, Author: author}
	return nil
}

// SetDraft stores the input of the open edit or reply form.
func (d *Dialog) SetDraft(text, author string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}
	if d.state.Mode == Idle {
		return ErrNoForm
	}
	d.state = d.state.WithDraft(Draft{Text: text, Author: author})
	return nil
}

// StartEdit opens the edit form on a visible comment, closing any other form.
func (d *Dialog) StartEdit(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}
	c, ok := thread.Find(d.tree, id)
	if !ok {
		return fmt.Errorf("start edit %s: %w", id, repository.ErrNotFound)
	}
	d.state = d.state.StartEdit(c)
	d.notice = ""
	return nil
}

// StartReply opens the reply form under a visible comment, closing any other form.
func (d *Dialog) StartReply(parentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}
	if _, ok := thread.Find(d.tree, parentID); !ok {
		return fmt.Errorf("start reply %s: %w", parentID, repository.ErrNotFound)
	}
	d.state = d.state.StartReply(parentID)
	d.notice = ""
	return nil
}

func (d *Dialog) CancelEdit() error {
	return d.cancel(Editing)
}

func (d *Dialog) CancelReply() error {
	return d.cancel(Replying)
}

func (d *Dialog) cancel(mode Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}
	if d.state.Mode == mode {
		d.state = d.state.Cancel()
	}
	return nil
}

// Create adds a top-level comment. The input is kept as the new-comment
// draft until the store accepts it.
func (d *Dialog) Create(ctx context.Context, text, author string) error {
	draft := Draft{Text: text, Author: author}
	return d.mutate(ctx, func(d *Dialog) error {
		d.newDraft = draft
		return validateDraft(draft)
	}, func(ctx context.Context) error {
		_, err := d.repo.Create(ctx, d.documentID, d.sectionID, draft.Text, draft.Author, nil)
		return err
	}, func(d *Dialog) {
		if d.newDraft == draft {
			d.newDraft = Draft{}
		}
	})
}

// SubmitEdit saves the open edit form.
func (d *Dialog) SubmitEdit(ctx context.Context) error {
	return d.submit(ctx, Editing, func(ctx context.Context, s State) error {
		return d.repo.Edit(ctx, s.TargetID, s.Draft.Text, s.Draft.Author)
	})
}

// SubmitReply saves the open reply form as a reply to its target.
func (d *Dialog) SubmitReply(ctx context.Context) error {
	return d.submit(ctx, Replying, func(ctx context.Context, s State) error {
		parentID := s.TargetID
		_, err := d.repo.Create(ctx, d.documentID, d.sectionID, s.Draft.Text, s.Draft.Author, &parentID)
		return err
	})
}

func (d *Dialog) submit(ctx context.Context, mode Mode, call func(context.Context, State) error) error {
	var submitted State
	return d.mutate(ctx, func(d *Dialog) error {
		if d.state.Mode != mode {
			return ErrNoForm
		}
		submitted = d.state
		return validateDraft(submitted.Draft)
	}, func(ctx context.Context) error {
		return call(ctx, submitted)
	}, func(d *Dialog) {
		// A form opened while the call was in flight stays open.
		if d.state.Same(submitted) {
			d.state = d.state.Cancel()
		}
	})
}

// Delete soft-deletes a visible comment of this dialog. Its replies
// disappear from the tree with it.
func (d *Dialog) Delete(ctx context.Context, id string) error {
	return d.mutate(ctx, func(d *Dialog) error {
		if _, ok := thread.Find(d.tree, id); !ok {
			return fmt.Errorf("delete %s: %w", id, repository.ErrNotFound)
		}
		return nil
	}, func(ctx context.Context) error {
		return d.repo.SoftDelete(ctx, id)
	}, func(*Dialog) {})
}

// mutate runs one store mutation. check runs under the lock and may reject
// the action locally; call runs unlocked; done runs under the lock after a
// successful call, before the list is re-fetched. On failure the state and
// drafts are left as they were and a notice is set.
func (d *Dialog) mutate(ctx context.Context, check func(*Dialog) error, call func(context.Context) error, done func(*Dialog)) error {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.busy {
		d.mu.Unlock()
		return ErrBusy
	}
	if err := check(d); err != nil {
		if !errors.Is(err, ErrNoForm) {
			d.notice = repository.UserMessage(err)
		}
		d.mu.Unlock()
		return err
	}
	d.busy = true
	d.notice = ""
	gen := d.gen
	d.mu.Unlock()

	err := call(ctx)
	var (
		comments []store.Comment
		listErr  error
	)
	if err == nil {
		comments, listErr = d.repo.List(ctx, d.documentID, d.sectionID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		d.log.Debug("dropping result of closed dialog",
			zap.String("document_id", d.documentID), zap.String("section_id", d.sectionID))
		return nil
	}
	d.busy = false
	if err != nil {
		d.notice = repository.UserMessage(err)
		return err
	}
	done(d)
	d.applyList(comments, listErr)
	return nil
}

// applyList must be called with mu held.
func (d *Dialog) applyList(comments []store.Comment, err error) {
	if err != nil {
		d.tree = []thread.Node{}
		d.notice = repository.UserMessage(err)
		d.log.Warn("load comments failed",
			zap.String("document_id", d.documentID), zap.String("section_id", d.sectionID), zap.Error(err))
		return
	}
	d.tree = thread.Build(comments)
	if hidden := thread.Orphans(comments); len(hidden) > 0 {
		d.log.Debug("hiding replies of deleted comments",
			zap.String("document_id", d.documentID), zap.String("section_id", d.sectionID), zap.Strings("comment_ids", hidden))
	}
	// The form's target may have been deleted meanwhile.
	if d.state.Mode != Idle {
		if _, ok := thread.Find(d.tree, d.state.TargetID); !ok {
			d.state = d.state.Cancel()
		}
	}
}

// Snapshot returns the current view of the dialog.
func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		DocumentID: d.documentID,
		SectionID:  d.sectionID,
		Open:       d.open,
		Tree:       d.tree,
		State:      d.state,
		NewDraft:   d.newDraft,
		Notice:     d.notice,
		Busy:       d.busy,
	}
}
