package task

import (
	"math"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

// AutoScore computes the provisional deadline-tier score of a submission made at `submittedAt`.
// metDeadline is 1 or 2 for the tier that was met, nil when both deadlines were missed.
func AutoScore(t Task, submittedAt time.Time) (score float64, metDeadline *int) {
	switch {
	case !submittedAt.After(t.Deadline):
		score = t.MaxScore
		if t.ScoreDeadline1 != nil {
			score = *t.ScoreDeadline1
		}
		metDeadline = intPtr(1)
	case t.Deadline2 != nil && !submittedAt.After(*t.Deadline2):
		score = t.MaxScore / 2
		if t.ScoreDeadline2 != nil {
			score = *t.ScoreDeadline2
		}
		metDeadline = intPtr(2)
	default:
		return 0, nil
	}
	return clamp(score, 0, t.MaxScore), metDeadline
}

// ContentChange returns how much `current` differs from `previous`, from 0 (same text) to 1.
func ContentChange(previous, current string) float64 {
	if previous == current {
		return 0
	}
	a := strings.Fields(previous)
	b := strings.Fields(current)
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	matcher := difflib.NewMatcher(a, b)
	return math.Round((1-matcher.Ratio())*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func intPtr(i int) *int { return &i }
