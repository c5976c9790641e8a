package papers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"papers-go/internal/model"
)

// TagQuota asks for up to Count papers carrying Tag in a session.
type TagQuota struct {
	Tag   string `json:"tag" validate:"required"`
	Count int    `json:"count"`
}

// SessionRequest describes the session a caller wants composed.
type SessionRequest struct {
	// Size is the session length in uniform mode. Ignored when any quota is
	// positive.
	Size int `json:"size"`

	// Quotas switch the composer to quota mode. They are drawn in order.
	Quotas []TagQuota `json:"quotas" validate:"dive"`

	// DueOnly limits the pool to papers due at the request time.
	DueOnly bool `json:"due_only"`

	// Tag limits the pool to papers carrying this tag.
	Tag string `json:"tag"`
}

// Session is one composed, non-repeating list of papers to practice.
type Session struct {
	Papers []*model.Paper
}

// IDs returns the paper IDs in session order.
func (s *Session) IDs() []string {
	ids := make([]string, len(s.Papers))
	for i, p := range s.Papers {
		ids[i] = p.ID
	}
	return ids
}

// Remove drops the paper with the given ID from the session. It has no
// scheduling effect. Reports whether the paper was present.
func (s *Session) Remove(id string) bool {
	i := slices.IndexFunc(s.Papers, func(p *model.Paper) bool { return p.ID == id })
	if i < 0 {
		return false
	}
	s.Papers = slices.Delete(s.Papers, i, i+1)
	return true
}

// QuotasFromMap converts tag counts into quotas sorted by tag so that draw
// order is reproducible. Negative counts become zero; tags are normalized
// and counts for tags that normalize alike are summed.
func QuotasFromMap(counts map[string]int) []TagQuota {
	merged := make(map[string]int, len(counts))
	for tag, n := range counts {
		tag = model.NormalizeTag(tag)
		if tag == "" {
			continue
		}
		merged[tag] += max(n, 0)
	}

	quotas := make([]TagQuota, 0, len(merged))
	for tag, n := range merged {
		quotas = append(quotas, TagQuota{Tag: tag, Count: n})
	}
	slices.SortFunc(quotas, func(a, b TagQuota) int { return strings.Compare(a.Tag, b.Tag) })
	return quotas
}

// ParseQuotas parses "tag=count" pairs as typed by a user. A count that is
// not a non-negative whole number is read as zero; a pair without a tag is
// a ValidationError. A tag given twice keeps its last count.
func ParseQuotas(pairs []string) ([]TagQuota, error) {
	counts := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		tag, raw, ok := strings.Cut(pair, "=")
		tag = model.NormalizeTag(tag)
		if !ok || tag == "" {
			return nil, &ValidationError{Field: "quota", Reason: fmt.Sprintf("%q is not in tag=count form", pair)}
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			n = 0
		}
		counts[tag] = n
	}
	return QuotasFromMap(counts), nil
}

func hasActiveQuota(quotas []TagQuota) bool {
	return slices.ContainsFunc(quotas, func(q TagQuota) bool { return q.Count > 0 })
}

// ComposeSession draws a practice session from pool.
//
// With at least one positive quota, each quota in order draws up to Count
// papers uniformly without replacement from the papers still in the pool
// that carry its tag; drawn papers leave the pool, so a paper with two
// requested tags is credited to the first quota that draws it. A short tag
// yields what it has. targetSize is ignored in this mode.
//
// Otherwise the pool is shuffled and the first min(targetSize, len(pool))
// papers are returned.
//
// pool is not modified. A nil rng uses the global source.
func ComposeSession(pool []*model.Paper, targetSize int, quotas []TagQuota, rng *rand.Rand) []*model.Paper {
	pool = uniquePapers(pool)

	if hasActiveQuota(quotas) {
		return composeByQuota(pool, quotas, rng)
	}

	if targetSize <= 0 || len(pool) == 0 {
		return []*model.Paper{}
	}
	shuffle(rng, len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:min(targetSize, len(pool))]
}

func composeByQuota(pool []*model.Paper, quotas []TagQuota, rng *rand.Rand) []*model.Paper {
	var session []*model.Paper
	for _, q := range quotas {
		if q.Count <= 0 || len(pool) == 0 {
			continue
		}
		tag := model.NormalizeTag(q.Tag)

		var matching, rest []*model.Paper
		for _, p := range pool {
			if p.HasTag(tag) {
				matching = append(matching, p)
			} else {
				rest = append(rest, p)
			}
		}

		n := min(q.Count, len(matching))
		partialShuffle(rng, matching, n)
		session = append(session, matching[:n]...)
		pool = append(rest, matching[n:]...)
	}
	if session == nil {
		return []*model.Paper{}
	}
	return session
}

// partialShuffle moves a uniform random sample of k papers into papers[:k]
// using the first k steps of a Fisher-Yates shuffle.
func partialShuffle(rng *rand.Rand, papers []*model.Paper, k int) {
	for i := 0; i < k; i++ {
		j := i + intN(rng, len(papers)-i)
		papers[i], papers[j] = papers[j], papers[i]
	}
}

// uniquePapers copies pool, dropping nil entries and repeated IDs.
func uniquePapers(pool []*model.Paper) []*model.Paper {
	seen := make(map[string]bool, len(pool))
	out := make([]*model.Paper, 0, len(pool))
	for _, p := range pool {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func shuffle(rng *rand.Rand, n int, swap func(i, j int)) {
	if rng == nil {
		rand.Shuffle(n, swap)
		return
	}
	rng.Shuffle(n, swap)
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

// ComposeSession builds a session for the owner from the request. The pool
// is every paper of the owner (narrowed by req.Tag and req.DueOnly), which
// includes never-graded papers.
func (s *PapersService) ComposeSession(ctx context.Context, ownerID string, req SessionRequest, now time.Time, rng *rand.Rand) (*Session, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	filter := PaperFilter{Tag: model.NormalizeTag(req.Tag)}
	if req.DueOnly {
		filter.DueAt = &now
	}
	pool, err := s.store.QueryByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, persistence("loading session pool", err)
	}

	quotas := make([]TagQuota, len(req.Quotas))
	for i, q := range req.Quotas {
		quotas[i] = TagQuota{Tag: model.NormalizeTag(q.Tag), Count: max(q.Count, 0)}
	}

	session := &Session{Papers: ComposeSession(pool, req.Size, quotas, rng)}
	s.logger.Debug("session composed",
		"owner", ownerID,
		"pool", len(pool),
		"size", len(session.Papers),
		"quota_mode", hasActiveQuota(quotas),
	)
	return session, nil
}
