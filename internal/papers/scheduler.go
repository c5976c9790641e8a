package papers

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// reviewStep maps a minimum elapsed day count to the interval added on a miss.
type reviewStep struct {
	minElapsedDays int
	interval       time.Duration
}

// reviewSteps must stay sorted by descending minElapsedDays.
var reviewSteps = []reviewStep{
	{minElapsedDays: 30, interval: 30 * day},
	{minElapsedDays: 7, interval: 7 * day},
	{minElapsedDays: 3, interval: 3 * day},
	{minElapsedDays: math.MinInt, interval: 1 * day},
}

// ElapsedDays returns whole days between the previous practice and now.
// A paper that was never practiced counts as zero days.
func ElapsedDays(lastPracticedAt *time.Time, now time.Time) int {
	if lastPracticedAt == nil {
		return 0
	}
	return int(math.Floor(float64(now.Sub(*lastPracticedAt)) / float64(day)))
}

// ReviewInterval returns how far a missed paper is pushed out given the
// whole days since its previous practice.
func ReviewInterval(elapsedDays int) time.Duration {
	for _, s := range reviewSteps {
		if elapsedDays >= s.minElapsedDays {
			return s.interval
		}
	}
	return reviewSteps[len(reviewSteps)-1].interval
}

// ComputeNextDue returns when a paper should next come up for review after
// being graded at now. A correct answer clears the schedule (nil).
//
// The interval keys on time since the previous practice, not on the number
// of consecutive misses, so a paper retried right after it comes due stays
// on the one-day step.
func ComputeNextDue(isCorrect bool, lastPracticedAt *time.Time, now time.Time) *time.Time {
	if isCorrect {
		return nil
	}
	next := now.Add(ReviewInterval(ElapsedDays(lastPracticedAt, now)))
	return &next
}
