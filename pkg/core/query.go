package core

import (
	"sort"
	"strings"

	"github.com/oceanbase/agentmem-go/pkg/intelligence"
)

// Ranking weights. Keyword overlap dominates; importance breaks near-ties.
const (
	keywordWeight    = 0.8
	importanceWeight = 0.2

	exactMatchScore   = 1.0
	partialMatchScore = 0.5
)

// queryPlan ranks a candidate set against the keywords of a query.
type queryPlan struct {
	keywords []string
	limit    int
}

func newQueryPlan(text string, limit int) *queryPlan {
	return &queryPlan{
		keywords: intelligence.ExtractKeywords(text, intelligence.TypeConversation),
		limit:    limit,
	}
}

// rank scores every candidate, orders by relevance then recency, and keeps
// at most limit results.
func (p *queryPlan) rank(candidates []*Memory) []*RankedMemory {
	ranked := make([]*RankedMemory, 0, len(candidates))
	for _, m := range candidates {
		ranked = append(ranked, &RankedMemory{
			Memory:    *m,
			Relevance: p.relevance(m),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	if len(ranked) > p.limit {
		ranked = ranked[:p.limit]
	}
	return ranked
}

// relevance returns a score in [0,1].
func (p *queryPlan) relevance(m *Memory) float64 {
	importance := float64(intelligence.ClampImportance(m.Importance)) / float64(intelligence.MaxImportance)
	return keywordWeight*p.keywordScore(m.Keywords) + importanceWeight*importance
}

// keywordScore is the mean per-query-keyword match: 1 for an exact match,
// 0.5 when one keyword contains the other, 0 otherwise.
func (p *queryPlan) keywordScore(memoryKeywords []string) float64 {
	if len(p.keywords) == 0 || len(memoryKeywords) == 0 {
		return 0
	}

	exact := make(map[string]struct{}, len(memoryKeywords))
	for _, k := range memoryKeywords {
		exact[k] = struct{}{}
	}

	var total float64
	for _, q := range p.keywords {
		if _, ok := exact[q]; ok {
			total += exactMatchScore
			continue
		}
		for _, k := range memoryKeywords {
			if strings.Contains(k, q) || strings.Contains(q, k) {
				total += partialMatchScore
				break
			}
		}
	}
	return total / float64(len(p.keywords))
}
