package papers

import (
	"context"
	"time"

	"papers-go/internal/model"
)

// PaperFilter narrows QueryByOwner. The zero value matches every paper of
// the owner.
type PaperFilter struct {
	// Tag keeps papers carrying this (normalized) tag.
	Tag string

	// DueAt, when set, keeps papers eligible for review at that instant:
	// never graded, due date reached, or missed without a due date.
	DueAt *time.Time

	// Incorrect keeps papers whose last grading was a miss.
	Incorrect bool

	// Ungraded keeps papers that have never been graded.
	Ungraded bool
}

// GradeUpdate is the scheduling state written to a paper by one grading action.
type GradeUpdate struct {
	ID              string
	OwnerID         string
	IsCorrect       bool
	LastPracticed   time.Time
	NextPracticeDue *time.Time
}

// Store persists papers and their grade history.
// Lookups return nil, nil when the row does not exist.
type Store interface {
	// GetPaper returns a paper by ID regardless of owner.
	GetPaper(ctx context.Context, id string) (*model.Paper, error)

	// QueryByOwner returns the owner's papers matching filter, oldest first.
	QueryByOwner(ctx context.Context, ownerID string, filter PaperFilter) ([]*model.Paper, error)

	// InsertPaper creates a new paper with its tags.
	InsertPaper(ctx context.Context, paper *model.Paper) error

	// UpdateTags replaces the tag set of a paper.
	UpdateTags(ctx context.Context, id string, tags []string, updatedAt time.Time) error

	// ApplyGrade writes the scheduling update and appends the history record
	// in one transaction. Neither is persisted unless both succeed. Returns
	// ErrNoRowsUpdated when no paper matches the update's ID and owner.
	ApplyGrade(ctx context.Context, update GradeUpdate, record *model.GradeRecord) error

	// ListGradeRecords returns the owner's history, newest first. An empty
	// itemID lists every paper. limit <= 0 means no limit.
	ListGradeRecords(ctx context.Context, ownerID, itemID string, limit int) ([]*model.GradeRecord, error)

	// DeletePapers removes the owner's papers with the given IDs and returns
	// how many were deleted. Grade history is kept.
	DeletePapers(ctx context.Context, ownerID string, ids []string) (int, error)

	// Close closes the underlying connection.
	Close() error
}
