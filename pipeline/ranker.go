package pipeline

import (
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/sibyl/core"
)

// ErrInvalidWeights indicates a ranking weight outside [0, 1].
var ErrInvalidWeights = errors.New("ranking weights must be in [0, 1]")

const (
	defaultDocBudget = 2400
	defaultWebBudget = 2400

	// Items shorter than this are scored as incomplete fragments.
	completenessSpan = 400.0

	// Recency half-life. A week-old item scores half the freshness of a
	// brand-new one.
	recencyHalfLife = 7 * 24 * time.Hour

	vectorAuthority = 0.8
	webAuthority    = 0.5

	truncationMarker = " [truncated]"
)

// RankWeights are the components of the composite ranking score.
type RankWeights struct {
	Relevance    float32
	Recency      float32
	Authority    float32
	Completeness float32
}

// DefaultRankWeights is the standard weighting: relevance dominates,
// recency second, source authority and completeness round it out.
var DefaultRankWeights = RankWeights{
	Relevance:    0.4,
	Recency:      0.3,
	Authority:    0.2,
	Completeness: 0.1,
}

// Ranker merges documents and web results into a single context blob,
// ordered by composite score, with each source capped at a character
// budget.
type Ranker struct {
	weights   RankWeights
	docBudget int
	webBudget int
	now       func() time.Time
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker) error

// WithWeights overrides the composite score weights.
func WithWeights(w RankWeights) RankerOption {
	return func(r *Ranker) error {
		for _, v := range []float32{w.Relevance, w.Recency, w.Authority, w.Completeness} {
			if v < 0 || v > 1 {
				return ErrInvalidWeights
			}
		}
		r.weights = w
		return nil
	}
}

// WithBudgets sets the per-source character budgets for the merged
// context. Defaults are 2400 characters each.
func WithBudgets(docChars, webChars int) RankerOption {
	return func(r *Ranker) error {
		if docChars > 0 {
			r.docBudget = docChars
		}
		if webChars > 0 {
			r.webBudget = webChars
		}
		return nil
	}
}

// WithRankerClock overrides the time source. Intended for tests.
func WithRankerClock(now func() time.Time) RankerOption {
	return func(r *Ranker) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// NewRanker creates a ranker with default weights and budgets.
func NewRanker(opts ...RankerOption) (*Ranker, error) {
	r := &Ranker{
		weights:   DefaultRankWeights,
		docBudget: defaultDocBudget,
		webBudget: defaultWebBudget,
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// rankedItem is one retrieval hit with its composite score.
type rankedItem struct {
	text   string
	label  string
	source string
	score  float32
}

// Rank merges and orders the retrieval hits and renders them into a
// context string. Each source contributes at most its character budget;
// an item that would overflow is truncated with a marker rather than
// dropped silently.
func (r *Ranker) Rank(docs []core.ScoredDocument, results []core.SearchResult) string {
	now := r.now()
	items := make([]rankedItem, 0, len(docs)+len(results))

	for _, d := range docs {
		if d.Document == nil || d.Document.Content == "" {
			continue
		}
		label := d.Document.Source
		if label == "" {
			label = d.Document.Title
		}
		items = append(items, rankedItem{
			text:   d.Document.Content,
			label:  "doc " + label,
			source: SourceVector,
			score:  r.score(d.Score, d.Document.PublishedAt, vectorAuthority, len(d.Document.Content), now),
		})
	}

	for _, w := range results {
		if w.Content == "" {
			continue
		}
		items = append(items, rankedItem{
			text:   w.Content,
			label:  "web " + w.URL,
			source: SourceWeb,
			score:  r.score(w.Score, w.PublishedAt, webAuthority, len(w.Content), now),
		})
	}

	slices.SortStableFunc(items, func(a, b rankedItem) int {
		if a.score > b.score {
			return -1
		}
		if a.score < b.score {
			return 1
		}
		return 0
	})

	budgets := map[string]int{
		SourceVector: r.docBudget,
		SourceWeb:    r.webBudget,
	}

	var sb strings.Builder
	for _, item := range items {
		remaining := budgets[item.source]
		if remaining <= 0 {
			continue
		}

		text := item.text
		if len(text) > remaining {
			text = truncateUTF8(text, remaining) + truncationMarker
		}
		budgets[item.source] -= len(text)

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[")
		sb.WriteString(item.label)
		sb.WriteString("]\n")
		sb.WriteString(text)
	}

	return sb.String()
}

// score computes the composite ranking score for one item.
func (r *Ranker) score(relevance float32, publishedAt time.Time, authority float32, length int, now time.Time) float32 {
	rel := clamp01(relevance)

	// Undated items get a neutral recency score
	recency := float32(0.5)
	if !publishedAt.IsZero() {
		age := now.Sub(publishedAt)
		if age < 0 {
			age = 0
		}
		recency = float32(float64(recencyHalfLife) / float64(recencyHalfLife+age))
	}

	completeness := clamp01(float32(float64(length) / completenessSpan))

	return r.weights.Relevance*rel +
		r.weights.Recency*recency +
		r.weights.Authority*authority +
		r.weights.Completeness*completeness
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
