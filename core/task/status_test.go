package task

import (
	"testing"
	"time"
)

func TestDeriveStatus(t *testing.T) {
	deadline := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	before, after := deadline.Add(-time.Hour), deadline.Add(time.Hour)

	tsk := func(status Status) Task {
		return Task{Status: status, Deadline: deadline, AssignedTo: []string{"t1", "t2", "t3"}}
	}
	graded := func(teacher string) Submission { return Submission{TeacherID: teacher, Score: fPtr(7)} }
	ungraded := func(teacher string) Submission { return Submission{TeacherID: teacher} }

	tests := []struct {
		name   string
		task   Task
		latest []Submission
		now    time.Time
		want   Status
	}{
		{name: "no submission past deadline", task: tsk(StatusAssigned), now: after, want: StatusOverdue},
		{name: "no submission before deadline keeps assigned", task: tsk(StatusAssigned), now: before, want: StatusAssigned},
		{name: "no submission before deadline keeps in progress", task: tsk(StatusInProgress), now: before, want: StatusInProgress},
		{name: "deadline moved past a stale overdue", task: tsk(StatusOverdue), now: before, want: StatusAssigned},
		{name: "stale completed without submissions", task: tsk(StatusCompleted), now: before, want: StatusAssigned},
		{
			name: "two of three ungraded", task: tsk(StatusAssigned), now: before,
			latest: []Submission{ungraded("t1"), ungraded("t2")}, want: StatusSubmitted,
		},
		{
			name: "two of three graded", task: tsk(StatusAssigned), now: after,
			latest: []Submission{graded("t1"), graded("t2")}, want: StatusSubmitted,
		},
		{
			name: "all submitted some ungraded", task: tsk(StatusCompleted), now: before,
			latest: []Submission{graded("t1"), graded("t2"), ungraded("t3")}, want: StatusSubmitted,
		},
		{
			name: "all submitted all graded", task: tsk(StatusSubmitted), now: after,
			latest: []Submission{graded("t1"), graded("t2"), graded("t3")}, want: StatusCompleted,
		},
		{
			name: "zero auto score is not a grade", task: tsk(StatusSubmitted), now: after,
			latest: []Submission{graded("t1"), graded("t2"), {TeacherID: "t3", AutoScore: 0}}, want: StatusSubmitted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.task, tt.latest, tt.now); got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeriveStatus_idempotent(t *testing.T) {
	now := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	tsk := Task{Status: StatusAssigned, Deadline: now.Add(-time.Hour), AssignedTo: []string{"t1", "t2"}}
	latest := []Submission{{TeacherID: "t1"}}

	first := DeriveStatus(tsk, latest, now)
	tsk.Status = first
	if second := DeriveStatus(tsk, latest, now); second != first {
		t.Errorf("DeriveStatus() not idempotent: %v then %v", first, second)
	}
}

func TestTeacherStatus(t *testing.T) {
	deadline := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	tsk := Task{Status: StatusAssigned, Deadline: deadline, AssignedTo: []string{"t1", "t2"}}

	tests := []struct {
		name   string
		latest *Submission
		now    time.Time
		want   Status
	}{
		{name: "no submission past deadline", now: deadline.Add(time.Minute), want: StatusOverdue},
		{name: "no submission before deadline", now: deadline.Add(-time.Minute), want: StatusAssigned},
		{name: "ungraded", latest: &Submission{}, now: deadline.Add(time.Minute), want: StatusSubmitted},
		{name: "graded", latest: &Submission{Score: fPtr(0)}, now: deadline.Add(time.Minute), want: StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TeacherStatus(tsk, tt.latest, tt.now); got != tt.want {
				t.Errorf("TeacherStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
