package memory

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultMMRLambda balances relevance against diversity: 1.0 is pure
// relevance order, 0.0 is pure diversity.
const DefaultMMRLambda = 0.7

// RankedItem is one scored candidate entering the diversity reranker.
type RankedItem struct {
	ID      string
	Content string
	Score   float64
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// tokenSet extracts the lowercase alphanumeric token set of s.
func tokenSet(s string) map[string]struct{} {
	tokens := tokenRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard computes the Jaccard index of two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// RerankMMR reorders items by maximal marginal relevance, greedily
// picking the candidate that maximizes
//
//	lambda*normScore - (1-lambda)*maxSimilarity(candidate, selected)
//
// where similarity is the Jaccard index over lowercase alphanumeric
// token sets. Scores are min-max normalized to [0,1] first; a
// degenerate range normalizes every score to 1. Ties on the combined
// objective break toward the higher raw relevance score.
//
// lambda outside [0,1] falls back to DefaultMMRLambda. lambda == 1
// skips the greedy loop entirely and returns pure relevance order.
// At most limit items are returned (limit <= 0 means all).
func RerankMMR(items []RankedItem, lambda float64, limit int) []RankedItem {
	if lambda < 0 || lambda > 1 {
		lambda = DefaultMMRLambda
	}
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	if len(items) == 0 {
		return nil
	}

	byScore := make([]RankedItem, len(items))
	copy(byScore, items)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].Score > byScore[j].Score
	})

	if lambda == 1 {
		return byScore[:limit]
	}

	minScore, maxScore := byScore[len(byScore)-1].Score, byScore[0].Score
	scoreRange := maxScore - minScore

	norm := func(s float64) float64 {
		if scoreRange == 0 {
			return 1.0
		}
		return (s - minScore) / scoreRange
	}

	// Token sets are memoized per item: Jaccard is recomputed against
	// every selected item on each greedy pass.
	tokens := make([]map[string]struct{}, len(byScore))
	for i, it := range byScore {
		tokens[i] = tokenSet(it.Content)
	}

	selected := make([]RankedItem, 0, limit)
	selectedTokens := make([]map[string]struct{}, 0, limit)
	remaining := make([]int, len(byScore))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < limit && len(remaining) > 0 {
		bestPos := -1
		bestCombined := 0.0
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sel := range selectedTokens {
				if sim := jaccard(tokens[idx], sel); sim > maxSim {
					maxSim = sim
				}
			}
			combined := lambda*norm(byScore[idx].Score) - (1-lambda)*maxSim
			switch {
			case bestPos == -1 || combined > bestCombined:
				bestPos, bestCombined = pos, combined
			case combined == bestCombined &&
				byScore[idx].Score > byScore[remaining[bestPos]].Score:
				bestPos = pos
			}
		}
		idx := remaining[bestPos]
		selected = append(selected, byScore[idx])
		selectedTokens = append(selectedTokens, tokens[idx])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}
