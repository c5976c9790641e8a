package papers_test

import (
	"testing"
	"time"

	"papers-go/internal/model"
	"papers-go/internal/papers"
)

var now = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	return model.Time(now.Add(-time.Duration(n) * 24 * time.Hour))
}

func TestComputeNextDue_Correct(t *testing.T) {
	for _, last := range []*time.Time{nil, daysAgo(0), daysAgo(5), daysAgo(400)} {
		if got := papers.ComputeNextDue(true, last, now); got != nil {
			t.Errorf("ComputeNextDue(true, %v) = %v, want nil", last, *got)
		}
	}
}

func TestComputeNextDue_IntervalTable(t *testing.T) {
	tests := []struct {
		name         string
		lastPractice *time.Time
		wantDays     int
	}{
		{"never practiced", nil, 1},
		{"same day", daysAgo(0), 1},
		{"1 day ago", daysAgo(1), 1},
		{"2 days ago", daysAgo(2), 1},
		{"3 days ago", daysAgo(3), 3},
		{"4 days ago", daysAgo(4), 3},
		{"6 days ago", daysAgo(6), 3},
		{"7 days ago", daysAgo(7), 7},
		{"10 days ago", daysAgo(10), 7},
		{"29 days ago", daysAgo(29), 7},
		{"30 days ago", daysAgo(30), 30},
		{"40 days ago", daysAgo(40), 30},
		{"just under 3 days ago", model.Time(now.Add(-72*time.Hour + time.Second)), 1},
		{"practiced in the future", model.Time(now.Add(36 * time.Hour)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := papers.ComputeNextDue(false, tt.lastPractice, now)
			if got == nil {
				t.Fatal("ComputeNextDue(false) = nil, want a due date")
			}
			want := now.Add(time.Duration(tt.wantDays) * 24 * time.Hour)
			if !got.Equal(want) {
				t.Errorf("ComputeNextDue(false) = %v, want %v", *got, want)
			}
		})
	}
}

func TestComputeNextDue_Deterministic(t *testing.T) {
	last := daysAgo(8)
	first := papers.ComputeNextDue(false, last, now)
	for i := 0; i < 100; i++ {
		got := papers.ComputeNextDue(false, last, now)
		if !got.Equal(*first) {
			t.Fatalf("call %d = %v, want %v", i, *got, *first)
		}
	}
}

func TestElapsedDays(t *testing.T) {
	if got := papers.ElapsedDays(nil, now); got != 0 {
		t.Errorf("ElapsedDays(nil) = %d, want 0", got)
	}
	if got := papers.ElapsedDays(model.Time(now.Add(-47*time.Hour)), now); got != 1 {
		t.Errorf("ElapsedDays(47h) = %d, want 1", got)
	}
	if got := papers.ElapsedDays(model.Time(now.Add(time.Hour)), now); got != -1 {
		t.Errorf("ElapsedDays(-1h) = %d, want -1", got)
	}
}

func TestReviewInterval(t *testing.T) {
	day := 24 * time.Hour
	tests := map[int]time.Duration{
		-5: day, 0: day, 2: day,
		3: 3 * day, 6: 3 * day,
		7: 7 * day, 29: 7 * day,
		30: 30 * day, 1000: 30 * day,
	}
	for elapsed, want := range tests {
		if got := papers.ReviewInterval(elapsed); got != want {
			t.Errorf("ReviewInterval(%d) = %v, want %v", elapsed, got, want)
		}
	}
}
