package papers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papers-go/internal/model"
)

// Outcome is the correctness result for one paper in a grading session.
type Outcome struct {
	ItemID    string `json:"item_id" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// ParseOutcome parses "ID=right" or "ID=wrong" as typed on the command line.
// right/correct/ok/y/1 and wrong/incorrect/miss/n/0 are accepted.
func ParseOutcome(s string) (Outcome, error) {
	id, verdict, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return Outcome{}, &ValidationError{Field: "outcome", Reason: fmt.Sprintf("%q is not in ID=right|wrong form", s)}
	}

	switch strings.ToLower(strings.TrimSpace(verdict)) {
	case "right", "correct", "ok", "y", "yes", "1", "true":
		return Outcome{ItemID: id, IsCorrect: true}, nil
	case "wrong", "incorrect", "miss", "n", "no", "0", "false":
		return Outcome{ItemID: id, IsCorrect: false}, nil
	default:
		return Outcome{}, &ValidationError{Field: "outcome", Reason: fmt.Sprintf("unknown verdict %q for %s", verdict, id)}
	}
}

// GradeFailure is an outcome that could not be recorded.
type GradeFailure struct {
	ItemID string
	Err    error
}

// GradeReport summarizes a RecordGrades batch.
type GradeReport struct {
	Recorded []*model.GradeRecord
	Failed   []GradeFailure
}

// RecordGrades applies a batch of outcomes graded at now. Each outcome is
// independent: the paper's scheduling state and its history record are
// written together or not at all, and a failing outcome does not stop the
// rest of the batch. The returned error joins every per-outcome failure
// (NotFoundError, ValidationError or PersistenceError); the report lists
// what was recorded either way.
//
// Grading is not idempotent: recording the same outcome twice appends two
// history records and reschedules twice.
func (s *PapersService) RecordGrades(ctx context.Context, ownerID string, outcomes []Outcome, now time.Time) (*GradeReport, error) {
	if err := validateVar("owner_id", ownerID, "required"); err != nil {
		return nil, err
	}

	report := &GradeReport{}
	var errs []error
	for _, o := range outcomes {
		record, err := s.recordGrade(ctx, ownerID, o, now)
		if err != nil {
			report.Failed = append(report.Failed, GradeFailure{ItemID: o.ItemID, Err: err})
			errs = append(errs, fmt.Errorf("grading %s: %w", o.ItemID, err))
			continue
		}
		report.Recorded = append(report.Recorded, record)
	}

	s.logger.Info("grades recorded",
		"owner", ownerID,
		"recorded", len(report.Recorded),
		"failed", len(report.Failed),
	)
	return report, errors.Join(errs...)
}

func (s *PapersService) recordGrade(ctx context.Context, ownerID string, o Outcome, now time.Time) (*model.GradeRecord, error) {
	if err := validateStruct(o); err != nil {
		return nil, err
	}
	paper, err := s.ownedPaper(ctx, ownerID, o.ItemID)
	if err != nil {
		return nil, err
	}

	update := GradeUpdate{
		ID:              paper.ID,
		OwnerID:         ownerID,
		IsCorrect:       o.IsCorrect,
		LastPracticed:   now,
		NextPracticeDue: ComputeNextDue(o.IsCorrect, paper.LastPracticed, now),
	}
	record := &model.GradeRecord{
		ID:        s.idgen.New(),
		ItemID:    paper.ID,
		OwnerID:   ownerID,
		IsCorrect: o.IsCorrect,
		GradedAt:  now,
	}

	if err := s.store.ApplyGrade(ctx, update, record); err != nil {
		if errors.Is(err, ErrNoRowsUpdated) {
			s.logger.Error("grade not applied: paper vanished before update, history insert rolled back",
				"id", paper.ID, "owner", ownerID)
			return nil, paperNotFound(paper.ID)
		}
		return nil, persistence("applying grade", err)
	}

	s.logger.Debug("grade applied",
		"id", paper.ID,
		"correct", o.IsCorrect,
		"elapsed_days", ElapsedDays(paper.LastPracticed, now),
		"next_due", update.NextPracticeDue,
	)
	return record, nil
}
