package papers

import (
	"context"

	"papers-go/internal/model"
)

// History returns the owner's grade records, newest first. An empty itemID
// lists every paper, including papers deleted since they were graded.
// limit <= 0 returns everything.
func (s *PapersService) History(ctx context.Context, ownerID, itemID string, limit int) ([]*model.GradeRecord, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}
	records, err := s.store.ListGradeRecords(ctx, ownerID, itemID, limit)
	if err != nil {
		return nil, persistence("listing grade history", err)
	}
	return records, nil
}
