package matching_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/reclaimhq/reclaim/internal/matching"
	"github.com/reclaimhq/reclaim/internal/store"
)

// fakePostStore is an in-memory PostStore that mirrors the SQL semantics of the
// real store: Ready-only candidates, cosine similarity ordering, and the
// skip-when-unlocated geo policy.
type fakePostStore struct {
	mu      sync.Mutex
	posts   map[uuid.UUID]*store.Post
	updates []store.Post // every UpdatePostEmbedding call, in order
}

func newFakePostStore(posts ...*store.Post) *fakePostStore {
	f := &fakePostStore{posts: make(map[uuid.UUID]*store.Post)}
	for _, p := range posts {
		cp := *p
		f.posts[p.ID] = &cp
	}
	return f
}

func (f *fakePostStore) GetPost(_ context.Context, id uuid.UUID) (*store.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePostStore) UpdatePostEmbedding(_ context.Context, p *store.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.posts[p.ID] = &cp
	f.updates = append(f.updates, cp)
	return nil
}

func (f *fakePostStore) matches(vec pgvector.Vector, filter store.VectorFilter, minSimilarity float64) []store.PostMatch {
	var out []store.PostMatch
	for _, p := range f.posts {
		if p.EmbeddingStatus != store.EmbeddingReady || p.Embedding == nil {
			continue
		}
		if filter.PostType != nil && p.Type != *filter.PostType {
			continue
		}
		if filter.ExcludeAuthorID != nil && p.AuthorID == *filter.ExcludeAuthorID {
			continue
		}
		if filter.Geo != nil && p.Location != nil {
			center := store.GeoPoint{Latitude: filter.Geo.Latitude, Longitude: filter.Geo.Longitude}
			if matching.HaversineMeters(center, *p.Location) > filter.Geo.RadiusMeters {
				continue
			}
		}
		sim := cosineSimilarity(vec.Slice(), p.Embedding.Slice())
		if sim < minSimilarity {
			continue
		}
		cp := *p
		out = append(out, store.PostMatch{Post: &cp, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}

func (f *fakePostStore) QueryByVector(_ context.Context, vec pgvector.Vector, filter store.VectorFilter, minSimilarity float64, limit int) ([]store.PostMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.matches(vec, filter, minSimilarity)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePostStore) QueryByVectorPaged(_ context.Context, vec pgvector.Vector, filter store.VectorFilter, minSimilarity float64, page, pageSize int) ([]store.PostMatch, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.matches(vec, filter, minSimilarity)
	total := len(out)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (f *fakePostStore) RevertStaleProcessing(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.posts {
		if p.EmbeddingStatus == store.EmbeddingProcessing && p.ProcessingStartedAt != nil && p.ProcessingStartedAt.Before(cutoff) {
			p.EmbeddingStatus = store.EmbeddingFailed
			p.ProcessingStartedAt = nil
			n++
		}
	}
	return n, nil
}

// fakeProvider counts Embed calls and returns a fixed vector or error.
type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	lastText string
	vec      []float32
	err      error
	block    chan struct{} // when non-nil, Embed waits on it after registering the call
	started  chan struct{} // signalled once per Embed entry
}

func (p *fakeProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	p.mu.Lock()
	p.calls++
	p.lastText = text
	block := p.block
	started := p.started
	p.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if p.err != nil {
		return pgvector.Vector{}, p.err
	}
	return pgvector.NewVector(p.vec), nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func vecOf(vs ...float32) *pgvector.Vector {
	v := pgvector.NewVector(vs)
	return &v
}

func testConfig() matching.Config {
	return matching.Config{
		SimilarThreshold:  0.70,
		SemanticThreshold: 0.15,
		SimilarRadiusKm:   20,
		MaxPageSize:       50,
		SweepInterval:     time.Minute,
		ProcessingTimeout: 5 * time.Minute,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
