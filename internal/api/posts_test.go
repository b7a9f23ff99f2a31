package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/reclaimhq/reclaim/internal/api"
	"github.com/reclaimhq/reclaim/internal/embeddings"
	"github.com/reclaimhq/reclaim/internal/encryption"
	"github.com/reclaimhq/reclaim/internal/matching"
	"github.com/reclaimhq/reclaim/internal/store"
)

// stubStore serves canned posts and matches.
type stubStore struct {
	posts   map[uuid.UUID]*store.Post
	matches []store.PostMatch
}

func (s *stubStore) GetPost(_ context.Context, id uuid.UUID) (*store.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *stubStore) UpdatePostEmbedding(_ context.Context, p *store.Post) error {
	cp := *p
	s.posts[p.ID] = &cp
	return nil
}

func (s *stubStore) QueryByVector(_ context.Context, _ pgvector.Vector, _ store.VectorFilter, _ float64, limit int) ([]store.PostMatch, error) {
	if len(s.matches) > limit {
		return s.matches[:limit], nil
	}
	return s.matches, nil
}

func (s *stubStore) QueryByVectorPaged(_ context.Context, _ pgvector.Vector, _ store.VectorFilter, _ float64, _, _ int) ([]store.PostMatch, int, error) {
	return s.matches, len(s.matches), nil
}

func (s *stubStore) RevertStaleProcessing(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type stubProvider struct {
	err error
}

func (p *stubProvider) Embed(_ context.Context, _ string) (pgvector.Vector, error) {
	if p.err != nil {
		return pgvector.Vector{}, p.err
	}
	return pgvector.NewVector([]float32{1, 0, 0}), nil
}

func (p *stubProvider) Name() string { return "stub" }

func newTestRouter(t *testing.T, posts *stubStore, provider *stubProvider) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := matching.Config{
		SimilarThreshold:  0.70,
		SemanticThreshold: 0.15,
		SimilarRadiusKm:   20,
		MaxPageSize:       50,
	}
	engine := matching.NewEngine(posts, provider, nil, cfg, logger)
	refresher := matching.NewRefresher(posts, provider, nil, nil, logger)

	key, err := encryption.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	encryptor, err := encryption.NewEncryptor(key.Encode())
	if err != nil {
		t.Fatal(err)
	}

	h := api.NewPostsHandler(engine, refresher, encryptor, nil, logger)
	r := chi.NewRouter()
	r.Get("/posts/{id}/similar", h.Similar)
	r.Post("/posts/{id}/refresh", h.Refresh)
	r.Post("/posts/search", h.Search)
	return r
}

func readyPost() *store.Post {
	vec := pgvector.NewVector([]float32{1, 0, 0})
	return &store.Post{
		ID:              uuid.New(),
		AuthorID:        uuid.New(),
		Type:            store.PostLost,
		ItemName:        "black wallet",
		Embedding:       &vec,
		EmbeddingStatus: store.EmbeddingReady,
	}
}

func TestSimilar_InvalidID(t *testing.T) {
	r := newTestRouter(t, &stubStore{posts: map[uuid.UUID]*store.Post{}}, &stubProvider{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/not-a-uuid/similar", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSimilar_NotFound(t *testing.T) {
	r := newTestRouter(t, &stubStore{posts: map[uuid.UUID]*store.Post{}}, &stubProvider{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/"+uuid.NewString()+"/similar", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSimilar_NotReady(t *testing.T) {
	post := readyPost()
	post.EmbeddingStatus = store.EmbeddingProcessing
	post.Embedding = nil
	posts := &stubStore{posts: map[uuid.UUID]*store.Post{post.ID: post}}
	r := newTestRouter(t, posts, &stubProvider{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/"+post.ID.String()+"/similar", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("not-ready must not error, got %d", rec.Code)
	}

	var body struct {
		Data struct {
			IsReady bool   `json:"is_ready"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Data.IsReady {
		t.Error("expected is_ready=false")
	}
	if body.Data.Status != "processing" {
		t.Errorf("expected status processing, got %s", body.Data.Status)
	}
}

func TestSimilar_ReturnsMatchesWithContactTokens(t *testing.T) {
	source := readyPost()
	candidate := readyPost()
	candidate.Type = store.PostFound
	posts := &stubStore{
		posts:   map[uuid.UUID]*store.Post{source.ID: source},
		matches: []store.PostMatch{{Post: candidate, Similarity: 0.91}},
	}
	r := newTestRouter(t, posts, &stubProvider{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/"+source.ID.String()+"/similar", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data struct {
			IsReady bool `json:"is_ready"`
			Items   []struct {
				Similarity   float64 `json:"similarity"`
				ContactToken string  `json:"contact_token"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Data.IsReady {
		t.Error("expected is_ready=true")
	}
	if len(body.Data.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Data.Items))
	}
	if body.Data.Items[0].Similarity != 0.91 {
		t.Errorf("expected similarity 0.91, got %f", body.Data.Items[0].Similarity)
	}
	if body.Data.Items[0].ContactToken == "" {
		t.Error("expected a contact token on each match")
	}
}

func TestSearch_ValidationError(t *testing.T) {
	r := newTestRouter(t, &stubStore{posts: map[uuid.UUID]*store.Post{}}, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/posts/search", strings.NewReader(`{"text":""}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestSearch_ReturnsPage(t *testing.T) {
	candidate := readyPost()
	posts := &stubStore{
		posts:   map[uuid.UUID]*store.Post{},
		matches: []store.PostMatch{{Post: candidate, Similarity: 0.42}},
	}
	r := newTestRouter(t, posts, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/posts/search", strings.NewReader(`{"text":"black wallet"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data struct {
			Items      []json.RawMessage `json:"items"`
			TotalCount int               `json:"total_count"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data.Items) != 1 || body.Data.TotalCount != 1 {
		t.Errorf("expected 1 item and total 1, got %d and %d", len(body.Data.Items), body.Data.TotalCount)
	}
}

func TestSearch_ProviderUnavailable(t *testing.T) {
	r := newTestRouter(t, &stubStore{posts: map[uuid.UUID]*store.Post{}}, &stubProvider{err: embeddings.ErrProviderUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/posts/search", strings.NewReader(`{"text":"black wallet"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestRefresh_ProviderFailure(t *testing.T) {
	post := readyPost()
	post.EmbeddingStatus = store.EmbeddingPending
	post.Embedding = nil
	posts := &stubStore{posts: map[uuid.UUID]*store.Post{post.ID: post}}
	r := newTestRouter(t, posts, &stubProvider{err: embeddings.ErrRateLimited})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posts/"+post.ID.String()+"/refresh", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for rate limited provider, got %d", rec.Code)
	}

	if posts.posts[post.ID].EmbeddingStatus != store.EmbeddingFailed {
		t.Errorf("expected failed status persisted, got %s", posts.posts[post.ID].EmbeddingStatus)
	}
}

func TestRefresh_Success(t *testing.T) {
	post := readyPost()
	post.EmbeddingStatus = store.EmbeddingPending
	post.Embedding = nil
	posts := &stubStore{posts: map[uuid.UUID]*store.Post{post.ID: post}}
	r := newTestRouter(t, posts, &stubProvider{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posts/"+post.ID.String()+"/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if posts.posts[post.ID].EmbeddingStatus != store.EmbeddingReady {
		t.Errorf("expected ready status persisted, got %s", posts.posts[post.ID].EmbeddingStatus)
	}
}
