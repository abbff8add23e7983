// Package retrieval implements C7: the hybrid query engine that fuses text,
// vector, and graph sub-queries into one ranked result set.
package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/graphtraversal"
	"github.com/amp-memory/amp/internal/metrics"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

const defaultQueryTimeout = 5 * time.Second

// Request describes one hybrid query. A sub-query is skipped (not errored)
// when its inputs are absent: no Text and no Vector skips the vector leg,
// no Text skips the text leg, no GraphSeedID skips the graph leg.
type Request struct {
	Text        string
	Vector      []float32
	ProjectID   string
	Type        model.ObjectType
	GraphSeedID string
	GraphDepth  int
	Limit       int
	Timeout     time.Duration
}

// Result is one ranked object with its fused and per-leg scores.
type Result struct {
	Object      *model.Object
	Score       float64
	TextScore   float64
	VectorScore float64
	GraphScore  float64
}

// Engine runs C7 hybrid queries over an object store, embeddings provider,
// and graph traverser.
type Engine struct {
	objects   *storage.ObjectStore
	embedder  embeddings.Provider
	traverser *graphtraversal.Traverser
	weights   config.RetrievalConfig
}

// New builds an Engine. traverser may be nil, in which case graph
// sub-queries are always skipped.
func New(objects *storage.ObjectStore, embedder embeddings.Provider, traverser *graphtraversal.Traverser, weights config.RetrievalConfig) *Engine {
	return &Engine{objects: objects, embedder: embedder, traverser: traverser, weights: weights}
}

// Query runs the text, vector, and graph sub-queries concurrently under one
// deadline and returns objects ranked by weighted score fusion.
func (e *Engine) Query(ctx context.Context, req Request) ([]Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	var mu sync.Mutex
	scores := make(map[string]*Result)

	getOrCreate := func(o *model.Object) *Result {
		mu.Lock()
		defer mu.Unlock()
		r, ok := scores[o.ID]
		if !ok {
			r = &Result{Object: o}
			scores[o.ID] = r
		}
		return r
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runTextQuery(ctx, req, limit, getOrCreate)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runVectorQuery(ctx, req, limit, getOrCreate)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runGraphQuery(ctx, req, getOrCreate)
	}()

	wg.Wait()

	out := make([]Result, 0, len(scores))
	for _, r := range scores {
		r.Score = e.weights.TextWeight*r.TextScore +
			e.weights.VectorWeight*r.VectorScore +
			e.weights.GraphWeight*r.GraphScore
		out = append(out, *r)
	}
	sortResultsDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (e *Engine) runTextQuery(ctx context.Context, req Request, limit int, getOrCreate func(*model.Object) *Result) {
	if req.Text == "" {
		return
	}
	start := time.Now()
	matches, err := e.objects.TextScan(ctx, req.Text, storage.ScanFilter{
		Type: req.Type, ProjectID: req.ProjectID, Limit: limit,
	})
	metrics.QueryDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QuerySubqueryErrorsTotal.WithLabelValues("text").Inc()
		return
	}
	for _, m := range matches {
		getOrCreate(m.Object).TextScore = m.Score
	}
}

// resolveVector implements spec.md §4.7 step 1's vector leg: use req.Vector
// if the caller supplied one outright, otherwise derive one from req.Text
// when embeddings are enabled, otherwise there is nothing to search with.
func (e *Engine) resolveVector(ctx context.Context, req Request) ([]float32, error) {
	if len(req.Vector) > 0 {
		return req.Vector, nil
	}
	if req.Text == "" || e.embedder == nil || !e.embedder.Enabled() {
		return nil, nil
	}
	vecs, err := e.embedder.Embed(ctx, []string{req.Text})
	if err != nil || len(vecs) == 0 {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Engine) runVectorQuery(ctx context.Context, req Request, limit int, getOrCreate func(*model.Object) *Result) {
	start := time.Now()
	vector, err := e.resolveVector(ctx, req)
	if err != nil || len(vector) == 0 {
		if err != nil {
			metrics.QuerySubqueryErrorsTotal.WithLabelValues("vector").Inc()
		}
		return
	}
	matches, err := e.objects.VectorScan(ctx, vector, storage.ScanFilter{
		Type: req.Type, ProjectID: req.ProjectID, Limit: limit,
	})
	metrics.QueryDuration.WithLabelValues("vector").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QuerySubqueryErrorsTotal.WithLabelValues("vector").Inc()
		return
	}
	for _, m := range matches {
		getOrCreate(m.Object).VectorScore = m.Score
	}
}

func (e *Engine) runGraphQuery(ctx context.Context, req Request, getOrCreate func(*model.Object) *Result) {
	if req.GraphSeedID == "" || e.traverser == nil {
		return
	}
	depth := req.GraphDepth
	if depth <= 0 {
		depth = 2
	}
	start := time.Now()
	nodes, err := e.traverser.Collect(ctx, req.GraphSeedID, graphtraversal.Query{MaxDepth: depth})
	metrics.QueryDuration.WithLabelValues("graph").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QuerySubqueryErrorsTotal.WithLabelValues("graph").Inc()
		return
	}
	for _, n := range nodes {
		obj, err := e.objects.Get(ctx, n.ID)
		if err != nil {
			continue
		}
		getOrCreate(obj).GraphScore = 1.0
	}
}

func sortResultsDesc(r []Result) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].Score > r[j-1].Score; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}
