package papers

import (
	"context"
	"time"

	"papers-go/internal/model"
)

// IsDue reports whether p is eligible for review at now: it was never
// graded, its due date has arrived, or it was missed without a due date.
// A missed paper whose due date is still ahead is not due yet.
func IsDue(p *model.Paper, now time.Time) bool {
	switch p.State(now) {
	case model.StateUnreviewed, model.StateDue:
		return true
	default:
		return false
	}
}

// FilterDue returns the papers of pool that are due at now, in pool order.
func FilterDue(pool []*model.Paper, now time.Time) []*model.Paper {
	due := make([]*model.Paper, 0, len(pool))
	for _, p := range pool {
		if IsDue(p, now) {
			due = append(due, p)
		}
	}
	return due
}

// SelectDue returns the owner's papers eligible for review at now.
// No particular order is guaranteed.
func (s *PapersService) SelectDue(ctx context.Context, ownerID string, now time.Time) ([]*model.Paper, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}
	due, err := s.store.QueryByOwner(ctx, ownerID, PaperFilter{DueAt: &now})
	if err != nil {
		return nil, persistence("selecting due papers", err)
	}
	s.logger.Debug("due papers selected", "owner", ownerID, "count", len(due))
	return due, nil
}
