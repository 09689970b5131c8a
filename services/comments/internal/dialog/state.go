// Package dialog holds the interaction state of an open comment dialog: the
// comment tree of one section and the single edit or reply form that may be
// open on it.
package dialog

import (
	"strings"

	"github.com/example/quotation-comments/services/comments/internal/repository"
	"github.com/example/quotation-comments/services/comments/internal/store"
)

// Mode tags the active variant of State.
type Mode int

const (
	Idle Mode = iota
	Editing
	Replying
)

func (m Mode) String() string {
	switch m {
	case Editing:
		return "editing"
	case Replying:
		return "replying"
	default:
		return "idle"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Draft is the transient input of a form.
type Draft struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// State is Idle, Editing(TargetID, Draft) or Replying(TargetID, Draft).
// TargetID is the edited comment or the parent receiving the reply; both it
// and Draft are empty in Idle. At most one form is open at a time because
// there is only one State per dialog.
type State struct {
	Mode     Mode   `json:"mode"`
	TargetID string `json:"target_id,omitempty"`
	Draft    Draft  `json:"draft"`
}

// StartEdit opens the edit form on c, seeded with its current values.
// Any other open form is discarded.
func (s State) StartEdit(c store.Comment) State {
	author := ""
	if c.AuthorName != nil {
		author = *c.AuthorName
	}
	return State{Mode: Editing, TargetID: c.ID, Draft: Draft{Text: c.Text, Author: author}}
}

// StartReply opens an empty reply form under parentID.
// Any other open form is discarded.
func (s State) StartReply(parentID string) State {
	return State{Mode: Replying, TargetID: parentID}
}

// Cancel closes the open form and drops its draft.
func (s State) Cancel() State {
	return State{}
}

// WithDraft replaces the draft of the open form. Idle ignores it.
func (s State) WithDraft(d Draft) State {
	if s.Mode == Idle {
		return s
	}
	s.Draft = d
	return s
}

// Same reports whether o is the same form on the same target.
func (s State) Same(o State) bool {
	return s.Mode == o.Mode && s.TargetID == o.TargetID
}

// validateDraft rejects a draft whose text trims to empty.
func validateDraft(d Draft) error {
	if strings.TrimSpace(d.Text) == "" {
		return &repository.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	return nil
}
