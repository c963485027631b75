package memory

import (
	"testing"

	"github.com/google/uuid"
)

func ranked(content string, score float64) RankedItem {
	return RankedItem{ID: uuid.NewString(), Content: content, Score: score}
}

func TestRerankMMR_LambdaOneIsPureScoreOrder(t *testing.T) {
	items := []RankedItem{
		ranked("alpha beta", 0.2),
		ranked("gamma delta", 0.9),
		ranked("epsilon zeta", 0.5),
	}
	got := RerankMMR(items, 1.0, 3)
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
	if got[0].Score != 0.9 || got[1].Score != 0.5 || got[2].Score != 0.2 {
		t.Errorf("lambda=1 order = %v %v %v, want descending by score",
			got[0].Score, got[1].Score, got[2].Score)
	}
}

func TestRerankMMR_DiversityBeatsNearDuplicate(t *testing.T) {
	// Two near-identical high scorers and one dissimilar lower scorer.
	// At low lambda the dissimilar item must be picked before the
	// second duplicate despite its lower raw score.
	first := ranked("postgres connection pool tuning guide", 0.95)
	duplicate := ranked("postgres connection pool tuning guide notes", 0.90)
	dissimilar := ranked("kubernetes ingress certificate renewal", 0.60)

	got := RerankMMR([]RankedItem{first, duplicate, dissimilar}, 0.3, 2)
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].ID != first.ID {
		t.Errorf("first selection = %v, want the top scorer", got[0].Content)
	}
	if got[1].ID != dissimilar.ID {
		t.Errorf("second selection = %q, want the dissimilar item", got[1].Content)
	}
}

func TestRerankMMR_LimitAndEmpty(t *testing.T) {
	if got := RerankMMR(nil, 0.7, 5); len(got) != 0 {
		t.Errorf("empty input returned %d items", len(got))
	}
	items := []RankedItem{ranked("a", 0.1), ranked("b", 0.2)}
	if got := RerankMMR(items, 0.7, 10); len(got) != 2 {
		t.Errorf("limit above length returned %d items, want 2", len(got))
	}
	if got := RerankMMR(items, 0.7, 1); len(got) != 1 {
		t.Errorf("limit 1 returned %d items", len(got))
	}
}

func TestRerankMMR_InvalidLambdaFallsBack(t *testing.T) {
	items := []RankedItem{
		ranked("one thing", 0.9),
		ranked("another thing entirely", 0.8),
	}
	for _, lambda := range []float64{-0.5, 1.5} {
		got := RerankMMR(items, lambda, 2)
		if len(got) != 2 {
			t.Fatalf("lambda=%v returned %d items", lambda, len(got))
		}
		if got[0].Score != 0.9 {
			t.Errorf("lambda=%v first item score = %v, want 0.9", lambda, got[0].Score)
		}
	}
}

func TestRerankMMR_EqualScoresAreHandled(t *testing.T) {
	// Degenerate min-max range: every normalized score collapses to 1.
	items := []RankedItem{
		ranked("aaa bbb", 0.5),
		ranked("ccc ddd", 0.5),
		ranked("eee fff", 0.5),
	}
	got := RerankMMR(items, 0.7, 3)
	if len(got) != 3 {
		t.Fatalf("got %d items, want 3", len(got))
	}
}

func TestJaccard(t *testing.T) {
	a := tokenSet("the quick brown fox")
	b := tokenSet("the quick brown fox")
	if got := jaccard(a, b); got != 1.0 {
		t.Errorf("identical sets jaccard = %v, want 1.0", got)
	}
	c := tokenSet("completely different words")
	if got := jaccard(a, c); got != 0.0 {
		t.Errorf("disjoint sets jaccard = %v, want 0.0", got)
	}
	if got := jaccard(tokenSet(""), tokenSet("")); got != 0.0 {
		t.Errorf("empty sets jaccard = %v, want 0.0", got)
	}
}
