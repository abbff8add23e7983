// Package cache implements C10: the episodic cache. Each scope (typically
// an agent+run+project triple chosen by the caller) accumulates cache items
// with semantic dedup, importance/TTL eviction, and a rolling frame summary
// that get_pack assembles into a token-budgeted context pack.
package cache

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/model"
	"github.com/amp-memory/amp/internal/storage"
)

const defaultDedupThreshold = 0.92

// TTLMirror mirrors cache item/frame TTLs into a fast external store (C10's
// Redis leg) so expiry checks don't always have to hit SQLite. Implemented
// by internal/leases.RedisTTLMirror; a nil TTLMirror just skips mirroring.
type TTLMirror interface {
	SetItemTTL(ctx context.Context, itemID string, ttl time.Duration) error
	SetFrameTTL(ctx context.Context, scopeID string, ttl time.Duration) error
}

// Service implements C10's operations.
type Service struct {
	items   *storage.CacheStore
	embedder embeddings.Provider
	cfg     config.CacheConfig
	ttl     TTLMirror
}

// New builds a cache Service. ttl may be nil to skip the Redis TTL mirror.
func New(items *storage.CacheStore, embedder embeddings.Provider, cfg config.CacheConfig, ttl TTLMirror) *Service {
	return &Service{items: items, embedder: embedder, cfg: cfg, ttl: ttl}
}

// NewItem is a caller-supplied cache write request.
type NewItem struct {
	Kind       model.CacheItemKind
	Preview    string
	Facts      []string
	ArtifactID string
	Importance float64
	Provenance model.Provenance
}

// WriteResult reports how many items were freshly inserted vs. merged into
// an existing near-duplicate.
type WriteResult struct {
	Written int
	Merged  int
}

// WriteItems inserts items into scope, deduplicating against existing items
// whose embedding cosine similarity exceeds cfg.DedupThreshold (default
// defaultDedupThreshold). A
// deduplicated hit bumps the existing item's importance and access count
// rather than creating a new row.
func (s *Service) WriteItems(ctx context.Context, scopeID string, newItems []NewItem) (WriteResult, error) {
	var result WriteResult
	if len(newItems) == 0 {
		return result, nil
	}

	existing, err := s.items.ItemsByScope(ctx, scopeID)
	if err != nil {
		return result, err
	}

	now := time.Now().UTC()
	ttl := time.Duration(s.cfg.DefaultTTLMin) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	for _, ni := range newItems {
		var embedding []float32
		if s.embedder != nil && s.embedder.Enabled() && strings.TrimSpace(ni.Preview) != "" {
			vecs, embErr := s.embedder.Embed(ctx, []string{ni.Preview})
			if embErr == nil && len(vecs) == 1 {
				embedding = vecs[0]
			}
		}

		threshold := s.cfg.DedupThreshold
		if threshold <= 0 {
			threshold = defaultDedupThreshold
		}
		if match := bestMatch(existing, embedding, threshold); match != nil {
			match.Importance += s.cfg.ImportanceBump
			if match.Importance > 1 {
				match.Importance = 1
			}
			match.AccessCount++
			match.UpdatedAt = now
			if err := s.items.PutItem(ctx, match); err != nil {
				return result, err
			}
			result.Merged++
			continue
		}

		importance := ni.Importance
		switch {
		case importance < 0:
			importance = 0
		case importance > 1:
			importance = 1
		}

		item := &model.CacheItem{
			ID:           uuid.NewString(),
			ScopeID:      scopeID,
			ArtifactID:   ni.ArtifactID,
			Kind:         ni.Kind,
			Preview:      ni.Preview,
			Facts:        ni.Facts,
			Importance:   importance,
			Provenance:   ni.Provenance,
			CreatedAt:    now,
			UpdatedAt:    now,
			TTLExpiresAt: now.Add(ttl),
		}
		if len(embedding) > 0 {
			item.Embedding = embedding
			item.HasEmbedding = true
		}
		if err := s.items.PutItem(ctx, item); err != nil {
			return result, err
		}
		existing = append(existing, item)
		if s.ttl != nil {
			_ = s.ttl.SetItemTTL(ctx, item.ID, ttl)
		}
		result.Written++
	}

	if err := s.touchFrame(ctx, scopeID, now); err != nil {
		return result, err
	}
	return result, nil
}

func bestMatch(existing []*model.CacheItem, embedding []float32, threshold float64) *model.CacheItem {
	if len(embedding) == 0 {
		return nil
	}
	var best *model.CacheItem
	var bestScore float64
	for _, item := range existing {
		if !item.HasEmbedding {
			continue
		}
		score := storage.CosineSimilarity(embedding, item.Embedding)
		if score > threshold && score > bestScore {
			best, bestScore = item, score
		}
	}
	return best
}

// touchFrame ensures a frame row exists for scopeID and bumps its
// updated_at, creating one with an empty summary on first write.
func (s *Service) touchFrame(ctx context.Context, scopeID string, now time.Time) error {
	ttl := time.Duration(s.cfg.DefaultTTLMin) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	_, err := s.items.GetFrame(ctx, scopeID)
	if err != nil {
		if amperr.Is(err, amperr.KindNotFound) {
			frame := &model.CacheFrame{
				ScopeID: scopeID, Version: 1, Summary: "", TokenCount: 0,
				UpdatedAt: now, TTLExpiresAt: now.Add(ttl),
			}
			return s.items.PutFrame(ctx, frame)
		}
		return err
	}
	return s.items.TouchFrameUpdatedAt(ctx, scopeID, now)
}

// estimateTokens approximates token count as ceil(chars/4), matching C4's
// token-budget conventions closely enough for pack assembly.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4))
}

// Pack is get_pack's token-budgeted assembly result.
type Pack struct {
	Summary          string
	Facts            []string
	Decisions        []string
	Snippets         []string
	Warnings         []string
	ArtifactPointers []string
	TokenCount       int
	Version          int
	IsFresh          bool
}

// GetPack assembles a token-budgeted context pack for scopeID. query, when
// non-empty and embeddings are enabled, ranks items by cosine similarity;
// otherwise items rank by (importance desc, updated_at desc).
func (s *Service) GetPack(ctx context.Context, scopeID string, tokenBudget int, query string) (Pack, error) {
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}

	var pack Pack
	frame, err := s.items.GetFrame(ctx, scopeID)
	staleAfter := time.Duration(s.cfg.FrameStaleAfterM) * time.Minute
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	switch {
	case amperr.Is(err, amperr.KindNotFound):
		pack.IsFresh = false
	case err != nil:
		return pack, err
	default:
		pack.Version = frame.Version
		pack.IsFresh = time.Since(frame.UpdatedAt) <= staleAfter

		summaryBudget := tokenBudget * 20 / 100
		summary := frame.Summary
		maxChars := summaryBudget * 4
		if maxChars > 0 && len(summary) > maxChars {
			summary = summary[:maxChars]
		}
		pack.Summary = summary
	}

	items, err := s.items.ItemsByScope(ctx, scopeID)
	if err != nil {
		return pack, err
	}

	rankItems(ctx, s.embedder, items, query)

	limit := s.cfg.PackItemLimit
	if limit <= 0 {
		limit = 50
	}
	if len(items) > limit {
		items = items[:limit]
	}

	// Items get the 80% of the budget not reserved for the summary.
	summaryTokens := estimateTokens(pack.Summary)
	itemBudget := tokenBudget - tokenBudget*20/100
	remaining := itemBudget
	seenArtifacts := make(map[string]bool)

	for _, item := range items {
		cost := estimateTokens(item.Preview)
		if remaining-cost < 0 {
			continue
		}
		switch item.Kind {
		case model.CacheItemFact:
			pack.Facts = append(pack.Facts, item.Preview)
		case model.CacheItemDecision:
			pack.Decisions = append(pack.Decisions, item.Preview)
		case model.CacheItemSnippet:
			pack.Snippets = append(pack.Snippets, item.Preview)
		case model.CacheItemWarning:
			pack.Warnings = append(pack.Warnings, item.Preview)
		}
		remaining -= cost
		if item.ArtifactID != "" && !seenArtifacts[item.ArtifactID] {
			seenArtifacts[item.ArtifactID] = true
			pack.ArtifactPointers = append(pack.ArtifactPointers, item.ArtifactID)
		}
	}

	pack.TokenCount = summaryTokens + itemBudget - remaining
	return pack, nil
}

func rankItems(ctx context.Context, embedder embeddings.Provider, items []*model.CacheItem, query string) {
	if query != "" && embedder != nil && embedder.Enabled() {
		vecs, err := embedder.Embed(ctx, []string{query})
		if err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			qvec := vecs[0]
			sort.SliceStable(items, func(i, j int) bool {
				return storage.CosineSimilarity(qvec, items[i].Embedding) > storage.CosineSimilarity(qvec, items[j].Embedding)
			})
			return
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Importance != items[j].Importance {
			return items[i].Importance > items[j].Importance
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}

// Compact closes the current frame (incrementing its version) and writes a
// fresh summary derived from the scope's current item set, resetting
// staleness tracking for the next accumulation window.
func (s *Service) Compact(ctx context.Context, scopeID string) error {
	items, err := s.items.ItemsByScope(ctx, scopeID)
	if err != nil {
		return err
	}

	version := 1
	if frame, err := s.items.GetFrame(ctx, scopeID); err == nil {
		version = frame.Version + 1
	} else if !amperr.Is(err, amperr.KindNotFound) {
		return err
	}

	summary := buildSummary(items)
	now := time.Now().UTC()
	ttl := time.Duration(s.cfg.DefaultTTLMin) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	frame := &model.CacheFrame{
		ScopeID: scopeID, Version: version, Summary: summary,
		TokenCount: estimateTokens(summary), UpdatedAt: now, TTLExpiresAt: now.Add(ttl),
	}
	if err := s.items.PutFrame(ctx, frame); err != nil {
		return err
	}
	if s.ttl != nil {
		_ = s.ttl.SetFrameTTL(ctx, scopeID, ttl)
	}
	return nil
}

func buildSummary(items []*model.CacheItem) string {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Importance > items[j].Importance })
	var parts []string
	for i, item := range items {
		if i >= 10 {
			break
		}
		parts = append(parts, item.Preview)
	}
	return strings.Join(parts, "; ")
}

// FrameMatch is a Search result.
type FrameMatch struct {
	ScopeID string
	Summary string
	Score   float64
}

// Search does a two-phase lookup: rank frame summaries against query, then
// (for the caller's later drill-down) items within the winning frame are
// reachable via GetPack. Search itself returns only the top-5 frames.
func (s *Service) Search(ctx context.Context, frames []*model.CacheFrame, query string) []FrameMatch {
	terms := strings.Fields(strings.ToLower(query))
	var matches []FrameMatch
	for _, f := range frames {
		haystack := strings.ToLower(f.Summary)
		var hits int
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				hits++
			}
		}
		if hits == 0 && len(terms) > 0 {
			continue
		}
		score := 0.0
		if len(terms) > 0 {
			score = float64(hits) / float64(len(terms))
		}
		matches = append(matches, FrameMatch{ScopeID: f.ScopeID, Summary: f.Summary, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > 5 {
		matches = matches[:5]
	}
	return matches
}

// GC reclaims expired cache items and stale frames.
func (s *Service) GC(ctx context.Context) (itemsReclaimed, framesReclaimed int64, err error) {
	now := time.Now().UTC()
	itemsReclaimed, err = s.items.DeleteExpiredItems(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	framesReclaimed, err = s.items.DeleteStaleFrames(ctx, now)
	if err != nil {
		return itemsReclaimed, 0, err
	}
	return itemsReclaimed, framesReclaimed, nil
}
