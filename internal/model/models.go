package model

import (
	"slices"
	"strings"
	"time"
)

// Paper is one scanned worksheet page tracked for review.
type Paper struct {
	ID              string     // UUID
	OwnerID         string     // Owning user; papers are never shared
	ContentRef      string     // Vault checksum of the stored scan
	Encrypted       bool       // Whether the vault object is age-encrypted
	Tags            []string   // Sorted, deduplicated
	IsCorrect       *bool      // nil = never graded
	LastPracticed   *time.Time // nil = never graded
	NextPracticeDue *time.Time // nil = no scheduled review
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GradeRecord is an immutable history row written once per grading action.
type GradeRecord struct {
	ID        string // UUID
	ItemID    string
	OwnerID   string
	IsCorrect bool
	GradedAt  time.Time
}

// State is the review state of a paper derived from its grading fields.
type State string

const (
	StateUnreviewed State = "unreviewed"
	StateMastered   State = "mastered"
	StateDue        State = "due"
	StateDueLater   State = "due-later"
)

// State classifies the paper at the given instant. A paper that was graded
// but carries no due date and no correct mark is treated as due so it can
// never drop out of review.
func (p *Paper) State(now time.Time) State {
	switch {
	case p.LastPracticed == nil:
		return StateUnreviewed
	case p.NextPracticeDue != nil && !p.NextPracticeDue.After(now):
		return StateDue
	case p.NextPracticeDue != nil:
		return StateDueLater
	case p.IsCorrect != nil && *p.IsCorrect:
		return StateMastered
	default:
		return StateDue
	}
}

// HasTag reports whether the paper carries tag (already normalized).
func (p *Paper) HasTag(tag string) bool {
	_, found := slices.BinarySearch(p.Tags, tag)
	return found
}

// NormalizeTag trims and lowercases a tag. An empty result means the tag
// should be dropped.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags returns the tags as a sorted set, dropping blanks.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// MergeTags returns the union of existing and added, as a sorted set.
func MergeTags(existing, added []string) []string {
	return NormalizeTags(append(slices.Clone(existing), added...))
}

// RemoveTags returns existing without any of removed. Missing tags are ignored.
func RemoveTags(existing, removed []string) []string {
	drop := NormalizeTags(removed)
	out := make([]string, 0, len(existing))
	for _, t := range existing {
		if _, found := slices.BinarySearch(drop, t); !found {
			out = append(out, t)
		}
	}
	return out
}

// Bool returns a pointer to b. Handy for IsCorrect literals.
func Bool(b bool) *bool { return &b }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
