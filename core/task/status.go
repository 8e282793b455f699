package task

import "time"

// DeriveStatus recomputes the aggregate status of `t` from its latest submissions.
// Rules apply in order:
//   1. no submission and the deadline has passed: overdue
//   2. every assignee submitted and every submission is graded: completed
//   3. every assignee submitted, some ungraded: submitted
//   4. some assignees submitted: submitted
//   5. otherwise the current status is kept, unless it claims submissions or a missed
//      deadline that no longer hold (after an edit of the deadline or the assignees): assigned
func DeriveStatus(t Task, latest []Submission, now time.Time) Status {
	n := len(latest)
	switch {
	case n == 0 && now.After(t.Deadline):
		return StatusOverdue
	case n > 0 && n >= len(t.AssignedTo):
		for _, s := range latest {
			if !s.IsGraded() {
				return StatusSubmitted
			}
		}
		return StatusCompleted
	case n > 0:
		return StatusSubmitted
	case t.Status == StatusAssigned || t.Status == StatusInProgress:
		return t.Status
	default:
		return StatusAssigned
	}
}

// TeacherStatus projects the status of `t` for one assignee, ignoring the aggregate.
// `latest` is the teacher's latest submission, nil when there is none.
func TeacherStatus(t Task, latest *Submission, now time.Time) Status {
	switch {
	case latest == nil && now.After(t.Deadline):
		return StatusOverdue
	case latest == nil:
		return StatusAssigned
	case !latest.IsGraded():
		return StatusSubmitted
	default:
		return StatusCompleted
	}
}
