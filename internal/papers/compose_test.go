package papers_test

import (
	"context"
	"fmt"
	"math"
	"slices"
	"testing"

	"papers-go/internal/model"
	"papers-go/internal/papers"
	"papers-go/internal/testutil"
)

// taggedPool returns papers tagged per counts, with IDs like "math-0".
func taggedPool(counts map[string]int) []*model.Paper {
	var pool []*model.Paper
	for _, tag := range []string{"math", "shape", "words"} {
		for i := range counts[tag] {
			pool = append(pool, &model.Paper{ID: fmt.Sprintf("%s-%d", tag, i), Tags: []string{tag}})
		}
	}
	return pool
}

func countTags(session []*model.Paper) map[string]int {
	counts := map[string]int{}
	for _, p := range session {
		for _, tag := range p.Tags {
			counts[tag]++
		}
	}
	return counts
}

func assertDistinct(t *testing.T, session []*model.Paper) {
	t.Helper()
	seen := map[string]bool{}
	for _, p := range session {
		if seen[p.ID] {
			t.Errorf("paper %s appears twice", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestComposeSession_QuotaExactness(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 6, "shape": 4})
	quotas := []papers.TagQuota{{Tag: "math", Count: 3}, {Tag: "shape", Count: 2}}

	for seed := range uint64(20) {
		got := papers.ComposeSession(pool, 0, quotas, testutil.NewTestRand(seed))
		if len(got) != 5 {
			t.Fatalf("seed %d: len = %d, want 5", seed, len(got))
		}
		counts := countTags(got)
		if counts["math"] != 3 || counts["shape"] != 2 {
			t.Errorf("seed %d: tag counts = %v, want math 3, shape 2", seed, counts)
		}
		assertDistinct(t, got)
	}
}

func TestComposeSession_MultiTaggedCreditedOnce(t *testing.T) {
	pool := []*model.Paper{
		{ID: "both", Tags: []string{"math", "shape"}},
		{ID: "m1", Tags: []string{"math"}},
		{ID: "s1", Tags: []string{"shape"}},
	}
	quotas := []papers.TagQuota{{Tag: "math", Count: 2}, {Tag: "shape", Count: 2}}

	for seed := range uint64(20) {
		got := papers.ComposeSession(pool, 0, quotas, testutil.NewTestRand(seed))
		assertDistinct(t, got)
		if len(got) != 3 {
			t.Errorf("seed %d: len = %d, want 3", seed, len(got))
		}
		// The math quota draws both math papers, so "both" is always first two.
		if !slices.Contains(ids(got[:2]), "both") {
			t.Errorf("seed %d: session = %v, want 'both' drawn by the math quota", seed, ids(got))
		}
	}
}

func TestComposeSession_QuotaShortfall(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 6, "shape": 4})

	got := papers.ComposeSession(pool, 3, []papers.TagQuota{{Tag: "math", Count: 20}}, testutil.NewTestRand(1))
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	if countTags(got)["math"] != 6 {
		t.Errorf("tag counts = %v, want all 6 math papers", countTags(got))
	}
	assertDistinct(t, got)
}

func TestComposeSession_QuotaForUnknownTag(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 2})

	got := papers.ComposeSession(pool, 5, []papers.TagQuota{{Tag: "history", Count: 2}}, testutil.NewTestRand(1))
	if len(got) != 0 {
		t.Errorf("session = %v, want empty", ids(got))
	}
}

func TestComposeSession_ZeroQuotasFallBackToUniform(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 4, "shape": 4})
	quotas := []papers.TagQuota{{Tag: "math", Count: 0}, {Tag: "shape", Count: -2}}

	got := papers.ComposeSession(pool, 5, quotas, testutil.NewTestRand(1))
	if len(got) != 5 {
		t.Errorf("len = %d, want 5 (uniform mode)", len(got))
	}
}

func TestComposeSession_UniformSizeBound(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 7})

	tests := []struct {
		size int
		want int
	}{
		{0, 0},
		{-1, 0},
		{1, 1},
		{5, 5},
		{7, 7},
		{50, 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size %d", tt.size), func(t *testing.T) {
			got := papers.ComposeSession(pool, tt.size, nil, testutil.NewTestRand(3))
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			assertDistinct(t, got)
			for _, p := range got {
				if !slices.Contains(pool, p) {
					t.Errorf("paper %s not from pool", p.ID)
				}
			}
		})
	}
}

func TestComposeSession_EmptyPool(t *testing.T) {
	if got := papers.ComposeSession(nil, 10, nil, nil); len(got) != 0 {
		t.Errorf("uniform on empty pool = %v", ids(got))
	}
	quotas := []papers.TagQuota{{Tag: "math", Count: 2}}
	if got := papers.ComposeSession(nil, 10, quotas, nil); len(got) != 0 {
		t.Errorf("quota on empty pool = %v", ids(got))
	}
}

func TestComposeSession_DoesNotMutatePool(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 5, "shape": 5})
	before := ids(pool)

	papers.ComposeSession(pool, 10, nil, testutil.NewTestRand(9))
	papers.ComposeSession(pool, 0, []papers.TagQuota{{Tag: "shape", Count: 3}}, testutil.NewTestRand(9))

	if !slices.Equal(ids(pool), before) {
		t.Errorf("pool order changed: %v", ids(pool))
	}
}

func TestComposeSession_DuplicatePoolEntries(t *testing.T) {
	p := &model.Paper{ID: "dup", Tags: []string{"math"}}
	pool := []*model.Paper{p, p, nil, {ID: "other"}}

	got := papers.ComposeSession(pool, 10, nil, testutil.NewTestRand(1))
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	assertDistinct(t, got)
}

func TestComposeSession_Deterministic(t *testing.T) {
	pool := taggedPool(map[string]int{"math": 10, "shape": 10})

	a := papers.ComposeSession(pool, 8, nil, testutil.NewTestRand(42))
	b := papers.ComposeSession(pool, 8, nil, testutil.NewTestRand(42))
	if !slices.Equal(ids(a), ids(b)) {
		t.Errorf("same seed, different sessions: %v vs %v", ids(a), ids(b))
	}
}

func TestComposeSession_FirstPositionUniform(t *testing.T) {
	const (
		n      = 5
		trials = 20000
	)
	pool := taggedPool(map[string]int{"math": n})
	rng := testutil.NewTestRand(2024)

	firsts := map[string]int{}
	for range trials {
		got := papers.ComposeSession(pool, n, nil, rng)
		firsts[got[0].ID]++
	}

	// Chi-squared goodness of fit against 1/n; 18.47 is the 0.999 quantile
	// for 4 degrees of freedom.
	expected := float64(trials) / n
	var chi2 float64
	for _, p := range pool {
		d := float64(firsts[p.ID]) - expected
		chi2 += d * d / expected
	}
	if chi2 > 18.47 {
		t.Errorf("first-position counts %v fail uniformity (chi2 = %.2f)", firsts, chi2)
	}
	for _, p := range pool {
		if freq := float64(firsts[p.ID]) / trials; math.Abs(freq-1.0/n) > 0.02 {
			t.Errorf("paper %s first with frequency %.3f, want about %.3f", p.ID, freq, 1.0/n)
		}
	}
}

func TestParseQuotas(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		want  []papers.TagQuota
	}{
		{"sorted by tag", []string{"shape=2", "math=3"}, []papers.TagQuota{{Tag: "math", Count: 3}, {Tag: "shape", Count: 2}}},
		{"normalized tag", []string{" MATH = 4"}, []papers.TagQuota{{Tag: "math", Count: 4}}},
		{"negative is zero", []string{"math=-3"}, []papers.TagQuota{{Tag: "math", Count: 0}}},
		{"non-integer is zero", []string{"math=2.5", "shape=abc"}, []papers.TagQuota{{Tag: "math", Count: 0}, {Tag: "shape", Count: 0}}},
		{"empty count is zero", []string{"math="}, []papers.TagQuota{{Tag: "math", Count: 0}}},
		{"last one wins", []string{"math=1", "math=4"}, []papers.TagQuota{{Tag: "math", Count: 4}}},
		{"none", nil, []papers.TagQuota{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := papers.ParseQuotas(tt.pairs)
			if err != nil {
				t.Fatalf("ParseQuotas() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseQuotas() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseQuotas_Malformed(t *testing.T) {
	for _, pair := range []string{"math", "=3", "  =1"} {
		if _, err := papers.ParseQuotas([]string{pair}); !papers.IsValidation(err) {
			t.Errorf("ParseQuotas(%q) error = %v, want ValidationError", pair, err)
		}
	}
}

func TestQuotasFromMap(t *testing.T) {
	got := papers.QuotasFromMap(map[string]int{"shape": 2, "Math": 1, "math ": 2, "": 5, "words": -1})
	want := []papers.TagQuota{{Tag: "math", Count: 3}, {Tag: "shape", Count: 2}, {Tag: "words", Count: 0}}
	if !slices.Equal(got, want) {
		t.Errorf("QuotasFromMap() = %v, want %v", got, want)
	}
}

func TestSession_Remove(t *testing.T) {
	s := &papers.Session{Papers: taggedPool(map[string]int{"math": 3})}

	if !s.Remove("math-1") {
		t.Fatal("Remove(math-1) = false")
	}
	if !slices.Equal(s.IDs(), []string{"math-0", "math-2"}) {
		t.Errorf("IDs() = %v", s.IDs())
	}
	if s.Remove("math-1") {
		t.Error("Remove(math-1) twice = true")
	}
}

func TestService_ComposeSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addPaper(t, &model.Paper{ID: "m-due", Tags: []string{"math"}})
	env.addPaper(t, &model.Paper{ID: "m-later", Tags: []string{"math"}, IsCorrect: model.Bool(false), LastPracticed: daysAgo(0), NextPracticeDue: daysAgo(-3)})
	env.addPaper(t, &model.Paper{ID: "m-mastered", Tags: []string{"math"}, IsCorrect: model.Bool(true), LastPracticed: daysAgo(1)})
	env.addPaper(t, &model.Paper{ID: "s-due", Tags: []string{"shape"}})
	env.addPaper(t, &model.Paper{ID: "bob", OwnerID: "bob", Tags: []string{"math"}})

	sorted := func(s *papers.Session) []string {
		out := s.IDs()
		slices.Sort(out)
		return out
	}

	tests := []struct {
		name string
		req  papers.SessionRequest
		want []string
	}{
		{"everything", papers.SessionRequest{Size: 10}, []string{"m-due", "m-later", "m-mastered", "s-due"}},
		{"due only", papers.SessionRequest{Size: 10, DueOnly: true}, []string{"m-due", "s-due"}},
		{"tag", papers.SessionRequest{Size: 10, Tag: "Math"}, []string{"m-due", "m-later", "m-mastered"}},
		{"quota within due", papers.SessionRequest{DueOnly: true, Quotas: []papers.TagQuota{{Tag: "shape", Count: 5}}}, []string{"s-due"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := env.svc.ComposeSession(ctx, "alice", tt.req, now, testutil.NewTestRand(1))
			if err != nil {
				t.Fatalf("ComposeSession() error = %v", err)
			}
			if got := sorted(s); !slices.Equal(got, tt.want) {
				t.Errorf("ComposeSession() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("quota without tag", func(t *testing.T) {
		req := papers.SessionRequest{Quotas: []papers.TagQuota{{Tag: "", Count: 2}}}
		_, err := env.svc.ComposeSession(ctx, "alice", req, now, nil)
		if !papers.IsValidation(err) {
			t.Errorf("ComposeSession() error = %v, want ValidationError", err)
		}
	})

	t.Run("empty owner", func(t *testing.T) {
		_, err := env.svc.ComposeSession(ctx, "", papers.SessionRequest{Size: 1}, now, nil)
		if !papers.IsValidation(err) {
			t.Errorf("ComposeSession() error = %v, want ValidationError", err)
		}
	})
}
