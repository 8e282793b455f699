package task

import (
	"testing"
	"time"
)

func fPtr(f float64) *float64 { return &f }

func tPtr(t time.Time) *time.Time { return &t }

func TestAutoScore(t *testing.T) {
	d1 := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	d2 := d1.Add(48 * time.Hour)

	tiered := Task{MaxScore: 10, ScoreDeadline1: fPtr(10), ScoreDeadline2: fPtr(5), Deadline: d1, Deadline2: &d2}
	defaults := Task{MaxScore: 8, Deadline: d1, Deadline2: &d2}
	single := Task{MaxScore: 10, ScoreDeadline1: fPtr(9), Deadline: d1}
	misconfigured := Task{MaxScore: 10, ScoreDeadline1: fPtr(15), Deadline: d1}

	tests := []struct {
		name      string
		task      Task
		at        time.Time
		wantScore float64
		wantMet   int // 0 when missed
	}{
		{name: "before deadline", task: tiered, at: d1.Add(-time.Second), wantScore: 10, wantMet: 1},
		{name: "at deadline", task: tiered, at: d1, wantScore: 10, wantMet: 1},
		{name: "between deadlines", task: tiered, at: d1.Add(time.Second), wantScore: 5, wantMet: 2},
		{name: "at deadline2", task: tiered, at: d2, wantScore: 5, wantMet: 2},
		{name: "after deadline2", task: tiered, at: d2.Add(time.Second), wantScore: 0},
		{name: "tier1 defaults to max score", task: defaults, at: d1.Add(-time.Hour), wantScore: 8, wantMet: 1},
		{name: "tier2 defaults to half max score", task: defaults, at: d1.Add(time.Hour), wantScore: 4, wantMet: 2},
		{name: "no deadline2", task: single, at: d1.Add(time.Second), wantScore: 0},
		{name: "clamped to max score", task: misconfigured, at: d1, wantScore: 10, wantMet: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, met := AutoScore(tt.task, tt.at)
			if score != tt.wantScore {
				t.Errorf("AutoScore() score = %v, want %v", score, tt.wantScore)
			}
			switch {
			case tt.wantMet == 0 && met != nil:
				t.Errorf("AutoScore() metDeadline = %v, want nil", *met)
			case tt.wantMet != 0 && (met == nil || *met != tt.wantMet):
				t.Errorf("AutoScore() metDeadline = %v, want %v", met, tt.wantMet)
			}
		})
	}
}

func TestContentChange(t *testing.T) {
	tests := []struct {
		name     string
		prev     string
		curr     string
		min, max float64
	}{
		{name: "same", prev: "done all the work", curr: "done all the work", min: 0, max: 0},
		{name: "both empty", min: 0, max: 0},
		{name: "whitespace only", prev: "a  b", curr: "a b", min: 0, max: 0},
		{name: "completely different", prev: "alpha beta", curr: "gamma delta", min: 1, max: 1},
		{name: "one word changed", prev: "one two three four", curr: "one two three five", min: 0.2, max: 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentChange(tt.prev, tt.curr)
			if got < tt.min || got > tt.max {
				t.Errorf("ContentChange() = %v, want within [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestCheckTiers(t *testing.T) {
	d1 := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		s1, s2  *float64
		d2      *time.Time
		wantErr bool
	}{
		{name: "no tiers"},
		{name: "valid tiers", s1: fPtr(10), s2: fPtr(5), d2: tPtr(d1.Add(time.Hour))},
		{name: "tier1 above max", s1: fPtr(11), wantErr: true},
		{name: "tier2 above tier1", s1: fPtr(4), s2: fPtr(5), wantErr: true},
		{name: "deadline2 before deadline", d2: tPtr(d1.Add(-time.Hour)), wantErr: true},
		{name: "deadline2 equals deadline", d2: tPtr(d1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTiers(10, tt.s1, tt.s2, d1, tt.d2)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkTiers() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
