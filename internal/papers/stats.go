package papers

import (
	"context"
	"slices"
	"strings"
	"time"

	"papers-go/internal/model"
)

// TagStats counts papers carrying one tag.
type TagStats struct {
	Tag   string
	Total int
	Due   int
}

// Stats is the dashboard summary for one owner.
type Stats struct {
	Total      int
	Unreviewed int
	Mastered   int
	Due        int // graded papers whose review time has arrived
	DueLater   int
	NextDue    *time.Time // earliest due date still ahead, if any
	Tags       []TagStats // sorted by tag
}

// DueNow counts everything a session drawn from due papers could contain.
func (st *Stats) DueNow() int {
	return st.Unreviewed + st.Due
}

// Summarize classifies papers at now.
func Summarize(papers []*model.Paper, now time.Time) *Stats {
	st := &Stats{Total: len(papers)}
	byTag := make(map[string]*TagStats)

	for _, p := range papers {
		switch p.State(now) {
		case model.StateUnreviewed:
			st.Unreviewed++
		case model.StateMastered:
			st.Mastered++
		case model.StateDue:
			st.Due++
		case model.StateDueLater:
			st.DueLater++
			if st.NextDue == nil || p.NextPracticeDue.Before(*st.NextDue) {
				st.NextDue = p.NextPracticeDue
			}
		}

		due := IsDue(p, now)
		for _, tag := range p.Tags {
			ts, ok := byTag[tag]
			if !ok {
				ts = &TagStats{Tag: tag}
				byTag[tag] = ts
			}
			ts.Total++
			if due {
				ts.Due++
			}
		}
	}

	st.Tags = make([]TagStats, 0, len(byTag))
	for _, ts := range byTag {
		st.Tags = append(st.Tags, *ts)
	}
	slices.SortFunc(st.Tags, func(a, b TagStats) int { return strings.Compare(a.Tag, b.Tag) })
	return st
}

// Stats returns the dashboard summary for the owner at now.
func (s *PapersService) Stats(ctx context.Context, ownerID string, now time.Time) (*Stats, error) {
	all, err := s.ListPapers(ctx, ownerID, PaperFilter{})
	if err != nil {
		return nil, err
	}
	return Summarize(all, now), nil
}
