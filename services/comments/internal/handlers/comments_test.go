package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/example/quotation-comments/internal/platform/api"
	"github.com/example/quotation-comments/internal/platform/httpserver"
	"github.com/example/quotation-comments/services/comments/internal/handoff"
	"github.com/example/quotation-comments/services/comments/internal/idempotency"
	"github.com/example/quotation-comments/services/comments/internal/repository"
	"github.com/example/quotation-comments/services/comments/internal/store"
)

// setupReq builds a request with chi URL params and a request id in context.
func setupReq(method, url string, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = httpserver.WithRequestID(ctx, "req-test")
	return req.WithContext(ctx)
}

func newRepo() *repository.Repository {
	return repository.New(store.NewInMemoryCommentStore(), nil, nil)
}

var sectionParams = map[string]string{"document_id": "doc-1", "section_id": "sec-A"}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) api.APIError {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return resp.Error
}

func TestCreateComment(t *testing.T) {
	repo := newRepo()
	handler := CreateComment(repo, nil, nil)

	req := setupReq(http.MethodPost, "/v1/documents/doc-1/sections/sec-A/comments",
		`{"text":"  hello ","author_name":"Bob"}`, sectionParams)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var c store.Comment
	if err := json.NewDecoder(rr.Body).Decode(&c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Text != "hello" || c.AuthorName == nil || *c.AuthorName != "Bob" {
		t.Fatalf("unexpected comment: %+v", c)
	}
	if c.DocumentID != "doc-1" || c.SectionID != "sec-A" {
		t.Fatalf("unexpected scope: %+v", c)
	}
}

func TestCreateComment_EmptyText(t *testing.T) {
	handler := CreateComment(newRepo(), nil, nil)

	req := setupReq(http.MethodPost, "/", `{"text":"   "}`, sectionParams)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	e := decodeErr(t, rr)
	if e.Code != "VALIDATION" || e.RequestID != "req-test" || e.Details["field"] != "text" {
		t.Fatalf("unexpected error: %+v", e)
	}
}

func TestCreateComment_InvalidJSON(t *testing.T) {
	handler := CreateComment(newRepo(), nil, nil)

	for _, body := range []string{`{bad`, `{"text":"x","unknown":1}`} {
		req := setupReq(http.MethodPost, "/", body, sectionParams)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
		if e := decodeErr(t, rr); e.Code != "INVALID_JSON" {
			t.Fatalf("expected INVALID_JSON, got %s", e.Code)
		}
	}
}

func TestCreateComment_AuthorTooLong(t *testing.T) {
	handler := CreateComment(newRepo(), nil, nil)

	body := `{"text":"x","author_name":"` + strings.Repeat("a", 201) + `"}`
	req := setupReq(http.MethodPost, "/", body, sectionParams)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Details["field"] != "author_name" {
		t.Fatalf("expected author_name field, got %+v", e)
	}
}

func TestGetThread_NestsReplies(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	a, _ := repo.Create(ctx, "doc-1", "sec-A", "hello", "Bob", nil)
	_, _ = repo.Create(ctx, "doc-1", "sec-A", "hi back", "", &a.ID)
	_, _ = repo.Create(ctx, "doc-1", "sec-B", "elsewhere", "", nil)

	req := setupReq(http.MethodGet, "/", "", sectionParams)
	rr := httptest.NewRecorder()
	GetThread(repo, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Comments []struct {
			ID      string `json:"id"`
			Author  string `json:"author"`
			Replies []struct {
				Author string `json:"author"`
				Text   string `json:"text"`
			} `json:"replies"`
		} `json:"comments"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Comments) != 1 || resp.Comments[0].ID != a.ID || resp.Comments[0].Author != "Bob" {
		t.Fatalf("unexpected thread: %+v", resp.Comments)
	}
	if len(resp.Comments[0].Replies) != 1 || resp.Comments[0].Replies[0].Author != "Anonymous" {
		t.Fatalf("unexpected replies: %+v", resp.Comments[0].Replies)
	}
}

func TestUpdateAndDeleteComment(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	a, _ := repo.Create(ctx, "doc-1", "sec-A", "hello", "", nil)
	params := map[string]string{"comment_id": a.ID}

	rr := httptest.NewRecorder()
	UpdateComment(repo, nil).ServeHTTP(rr, setupReq(http.MethodPut, "/", `{"text":"changed"}`, params))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	list, _ := repo.List(ctx, "doc-1", "sec-A")
	if len(list) != 1 || list[0].Text != "changed" || !list[0].UpdatedAt.After(list[0].CreatedAt) {
		t.Fatalf("edit not applied: %+v", list)
	}

	for i := 0; i < 2; i++ {
		rr = httptest.NewRecorder()
		DeleteComment(repo, nil).ServeHTTP(rr, setupReq(http.MethodDelete, "/", "", params))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("delete #%d: expected 204, got %d", i+1, rr.Code)
		}
	}

	// Editing a deleted comment reads like an unavailable store.
	rr = httptest.NewRecorder()
	UpdateComment(repo, nil).ServeHTTP(rr, setupReq(http.MethodPut, "/", `{"text":"again"}`, params))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "STORE_UNAVAILABLE" || e.Message != repository.UserMessage(repository.ErrStoreUnavailable) {
		t.Fatalf("unexpected error: %+v", e)
	}
}

type downService struct{ CommentService }

func (downService) List(context.Context, string, string) ([]store.Comment, error) {
	return nil, repository.ErrStoreUnavailable
}

func (downService) ListDocument(context.Context, string) ([]store.Comment, error) {
	return nil, repository.ErrStoreUnavailable
}

func TestGetThread_StoreUnavailable(t *testing.T) {
	rr := httptest.NewRecorder()
	GetThread(downService{}, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "", sectionParams))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestGetReviewAndHandoff(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	docParams := map[string]string{"document_id": "doc-1"}
	b := handoff.NewBuilder(repo, "+1 555 0100", "", nil)

	rr := httptest.NewRecorder()
	GetHandoff(b, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "", docParams))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if e := decodeErr(t, rr); e.Code != "NO_COMMENTS" || e.Message != handoff.NoCommentsMessage {
		t.Fatalf("unexpected error: %+v", e)
	}

	_, _ = repo.Create(ctx, "doc-1", "intro", "first", "", nil)
	_, _ = repo.Create(ctx, "doc-1", "pricing", "second", "Ann", nil)

	rr = httptest.NewRecorder()
	GetReview(repo, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "", docParams))
	var review handoff.Review
	if err := json.NewDecoder(rr.Body).Decode(&review); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if review.Count != 2 || review.Entries[0].Text != "second" || review.Entries[0].SectionID != "pricing" {
		t.Fatalf("unexpected review: %+v", review)
	}

	rr = httptest.NewRecorder()
	GetHandoff(b, nil).ServeHTTP(rr, setupReq(http.MethodGet, "/", "", docParams))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res handoff.Result
	_ = json.NewDecoder(rr.Body).Decode(&res)
	if !strings.HasPrefix(res.URL, "https://wa.me/15550100?text=") || res.Count != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestWriteError_Unknown(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, setupReq(http.MethodGet, "/", "", nil), zapNop(), errors.New("boom"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestCreateComment_IdempotentReplay(t *testing.T) {
	repo := newRepo()
	handler := CreateComment(repo, idempotency.NewMemoryStore(0), zapNop())

	send := func() (*httptest.ResponseRecorder, store.Comment) {
		req := setupReq(http.MethodPost, "/", `{"text":"hello"}`, sectionParams)
		req.Header.Set(IdempotencyHeader, "abc")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		var c store.Comment
		_ = json.NewDecoder(rr.Body).Decode(&c)
		return rr, c
	}

	rr1, first := send()
	rr2, second := send()
	if rr1.Code != http.StatusCreated || rr2.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", rr1.Code, rr2.Code)
	}
	if rr2.Header().Get("Idempotent-Replayed") != "true" || first.ID != second.ID {
		t.Fatalf("expected replay of %s, got %s", first.ID, second.ID)
	}
	list, _ := repo.List(context.Background(), "doc-1", "sec-A")
	if len(list) != 1 {
		t.Fatalf("expected one stored comment, got %d", len(list))
	}
}

func TestCreateComment_IdempotencyReleasedOnFailure(t *testing.T) {
	idem := idempotency.NewMemoryStore(0)
	req := setupReq(http.MethodPost, "/", `{"text":"hello"}`, sectionParams)
	req.Header.Set(IdempotencyHeader, "abc")
	rr := httptest.NewRecorder()
	CreateComment(failingCreate{}, idem, zapNop()).ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	if _, reserved, err := idem.Reserve(context.Background(), "doc-1:sec-A:abc"); err != nil || !reserved {
		t.Fatalf("key should be free after a failed create: %v", err)
	}
}

type failingCreate struct{ CommentService }

func (failingCreate) Create(context.Context, string, string, string, string, *string) (store.Comment, error) {
	return store.Comment{}, repository.ErrStoreUnavailable
}
