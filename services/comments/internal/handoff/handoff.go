// Package handoff builds the review panel of a document's comments and the
// pre-filled messaging link used to send them for review.
package handoff

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/quotation-comments/services/comments/internal/store"
	"github.com/example/quotation-comments/services/comments/internal/thread"
)

// DefaultMessage is the text pre-filled into the hand-off message.
const DefaultMessage = "I added comments, please review and get back"

const linkBase = "https://wa.me/"

// NoCommentsMessage is shown when a hand-off is requested for a document
// without comments.
const NoCommentsMessage = "Please add at least one comment before sending."

var (
	// ErrNoComments is returned when there is nothing to hand off.
	ErrNoComments = errors.New("no comments to send")
	// ErrNoPhone is returned when no recipient number is configured.
	ErrNoPhone = errors.New("handoff phone number not configured")
)

// Entry is one comment in the review panel.
type Entry struct {
	ID        string    `json:"id"`
	SectionID string    `json:"section_id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Edited    bool      `json:"edited"`
	Reply     bool      `json:"reply"`
}

// Review lists a document's comments newest first.
type Review struct {
	DocumentID string  `json:"document_id"`
	Count      int     `json:"count"`
	Entries    []Entry `json:"comments"`
}

// Summary projects comments into the review panel. Replies are listed as
// well; the panel is flat.
func Summary(documentID string, comments []store.Comment) Review {
	entries := make([]Entry, 0, len(comments))
	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		entries = append(entries, Entry{
			ID:        c.ID,
			SectionID: c.SectionID,
			Text:      c.Text,
			Author:    thread.DisplayAuthor(c),
			CreatedAt: c.CreatedAt,
			Edited:    thread.Edited(c),
			Reply:     c.ParentID != nil,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return Review{DocumentID: documentID, Count: len(entries), Entries: entries}
}

// Link builds the messaging link for phone with message pre-filled.
// Everything but digits is stripped from phone.
func Link(phone, message string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoPhone
	}
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return linkBase + b.String() + "?text=" + text, nil
}

// Lister loads every live comment of a document.
type Lister interface {
	ListDocument(ctx context.Context, documentID string) ([]store.Comment, error)
}

// Builder produces hand-off links for documents.
type Builder struct {
	lister  Lister
	phone   string
	message string
	log     *zap.Logger
}

func NewBuilder(l Lister, phone, message string, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	return &Builder{lister: l, phone: phone, message: message, log: log}
}

// Result is a built hand-off link.
type Result struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// Build returns the hand-off link for documentID. It fails with
// ErrNoComments when the document has no live comments.
func (b *Builder) Build(ctx context.Context, documentID string) (Result, error) {
	comments, err := b.lister.ListDocument(ctx, documentID)
	if err != nil {
		return Result{}, err
	}
	if len(comments) == 0 {
		return Result{}, ErrNoComments
	}
	u, err := Link(b.phone, b.message)
	if err != nil {
		b.log.Error("handoff link", zap.Error(err))
		return Result{}, err
	}
	return Result{URL: u, Count: len(comments)}, nil
}
