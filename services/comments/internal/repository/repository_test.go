package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/example/quotation-comments/internal/platform/events"
	"github.com/example/quotation-comments/services/comments/internal/store"
)

// spyStore counts calls and can be switched to fail every operation.
type spyStore struct {
	*store.InMemoryCommentStore
	calls int
	fail  error
}

func newSpy() *spyStore {
	return &spyStore{InMemoryCommentStore: store.NewInMemoryCommentStore()}
}

func (s *spyStore) Query(ctx context.Context, d, sec string) ([]store.Comment, error) {
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	return s.InMemoryCommentStore.Query(ctx, d, sec)
}

func (s *spyStore) QueryDocument(ctx context.Context, d string) ([]store.Comment, error) {
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	return s.InMemoryCommentStore.QueryDocument(ctx, d)
}

func (s *spyStore) Insert(ctx context.Context, c store.NewComment) (store.Comment, error) {
	s.calls++
	if s.fail != nil {
		return store.Comment{}, s.fail
	}
	return s.InMemoryCommentStore.Insert(ctx, c)
}

func (s *spyStore) Update(ctx context.Context, id string, p store.CommentPatch) (store.Comment, error) {
	s.calls++
	if s.fail != nil {
		return store.Comment{}, s.fail
	}
	return s.InMemoryCommentStore.Update(ctx, id, p)
}

func (s *spyStore) SoftDelete(ctx context.Context, id string) (store.Comment, bool, error) {
	s.calls++
	if s.fail != nil {
		return store.Comment{}, false, s.fail
	}
	return s.InMemoryCommentStore.SoftDelete(ctx, id)
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, _ events.Event) {
	p.subjects = append(p.subjects, subject)
}

func TestCreate_RejectsBlankTextWithoutStoreCall(t *testing.T) {
	spy := newSpy()
	r := New(spy, nil, nil)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := r.Create(context.Background(), "doc-1", "sec-A", text, "Bob", nil)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", text, err)
		}
	}
	if spy.calls != 0 {
		t.Fatalf("expected no store calls, got %d", spy.calls)
	}
}

func TestCreate_TrimsAndNormalizesAuthor(t *testing.T) {
	r := New(newSpy(), nil, nil)

	c, err := r.Create(context.Background(), "doc-1", "sec-A", "  hello  ", "   ", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Text != "hello" {
		t.Fatalf("expected trimmed text, got %q", c.Text)
	}
	if c.AuthorName != nil {
		t.Fatalf("expected absent author, got %q", *c.AuthorName)
	}
	if !c.CreatedAt.Equal(c.UpdatedAt) || c.DeletedAt != nil {
		t.Fatalf("unexpected timestamps: %+v", c)
	}

	c, _ = r.Create(context.Background(), "doc-1", "sec-A", "hi", " Bob ", nil)
	if c.AuthorName == nil || *c.AuthorName != "Bob" {
		t.Fatalf("expected author Bob, got %v", c.AuthorName)
	}
}

func TestCreate_RequiresScope(t *testing.T) {
	r := New(newSpy(), nil, nil)
	if _, err := r.Create(context.Background(), "", "sec-A", "hi", "", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := r.List(context.Background(), "doc-1", " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	pub := &recordingPublisher{}
	r := New(newSpy(), pub, nil)
	ctx := context.Background()

	c, err := r.Create(ctx, "doc-1", "sec-A", "hello", "Bob", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list, _ := r.List(ctx, "doc-1", "sec-A")
	if len(list) != 1 || list[0].ID != c.ID {
		t.Fatalf("expected created comment exactly once, got %+v", list)
	}

	if err := r.Edit(ctx, c.ID, " changed ", ""); err != nil {
		t.Fatalf("edit: %v", err)
	}
	list, _ = r.List(ctx, "doc-1", "sec-A")
	if list[0].Text != "changed" || list[0].AuthorName != nil {
		t.Fatalf("unexpected edited comment: %+v", list[0])
	}
	if !list[0].UpdatedAt.After(list[0].CreatedAt) {
		t.Fatal("expected updated_at > created_at after edit")
	}

	if err := r.SoftDelete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = r.List(ctx, "doc-1", "sec-A")
	if len(list) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(list))
	}

	// Deleting again is a no-op success and publishes nothing.
	if err := r.SoftDelete(ctx, c.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	want := []string{events.SubjectCommentCreated, events.SubjectCommentEdited, events.SubjectCommentDeleted}
	if len(pub.subjects) != len(want) {
		t.Fatalf("expected %v, got %v", want, pub.subjects)
	}
	for i := range want {
		if pub.subjects[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, pub.subjects)
		}
	}
}

func TestEdit_Validation(t *testing.T) {
	spy := newSpy()
	r := New(spy, nil, nil)

	err := r.Edit(context.Background(), "any", "  ", "Bob")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "text" {
		t.Fatalf("expected text ValidationError, got %v", err)
	}
	if spy.calls != 0 {
		t.Fatalf("expected no store calls, got %d", spy.calls)
	}
}

func TestEdit_NotFound(t *testing.T) {
	r := New(newSpy(), nil, nil)
	ctx := context.Background()

	if err := r.Edit(ctx, "missing", "text", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c, _ := r.Create(ctx, "doc-1", "sec-A", "hello", "", nil)
	_ = r.SoftDelete(ctx, c.ID)
	if err := r.Edit(ctx, c.ID, "text", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound editing deleted comment, got %v", err)
	}
	if err := r.SoftDelete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	spy := newSpy()
	spy.fail = errors.New("dial tcp: connection refused")
	pub := &recordingPublisher{}
	r := New(spy, pub, nil)
	ctx := context.Background()

	if _, err := r.List(ctx, "doc-1", "sec-A"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("list: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := r.ListDocument(ctx, "doc-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("list document: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := r.Create(ctx, "doc-1", "sec-A", "hi", "", nil); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("create: expected ErrStoreUnavailable, got %v", err)
	}
	if err := r.Edit(ctx, "id", "hi", ""); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("edit: expected ErrStoreUnavailable, got %v", err)
	}
	if err := r.SoftDelete(ctx, "id"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("delete: expected ErrStoreUnavailable, got %v", err)
	}
	if len(pub.subjects) != 0 {
		t.Fatalf("failed mutations must not publish, got %v", pub.subjects)
	}
}

func TestListDocument_AcrossSections(t *testing.T) {
	r := New(newSpy(), nil, nil)
	ctx := context.Background()

	_, _ = r.Create(ctx, "doc-1", "gf-living", "one", "", nil)
	_, _ = r.Create(ctx, "doc-1", "ff-gym", "two", "", nil)
	_, _ = r.Create(ctx, "doc-2", "ff-gym", "elsewhere", "", nil)

	all, err := r.ListDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("list document: %v", err)
	}
	if len(all) != 2 || all[0].Text != "one" || all[1].Text != "two" {
		t.Fatalf("unexpected document list: %+v", all)
	}
}

func TestUserMessage(t *testing.T) {
	notFound := UserMessage(ErrNotFound)
	unavailable := UserMessage(ErrStoreUnavailable)
	if notFound != unavailable {
		t.Fatalf("expected not-found and unavailable to share a message: %q vs %q", notFound, unavailable)
	}
	if UserMessage(&ValidationError{Field: "text", Reason: "empty"}) == unavailable {
		t.Fatal("validation should have its own message")
	}
	if UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil")
	}
}
