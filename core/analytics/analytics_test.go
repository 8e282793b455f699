package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

var now = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

func score(f float64) *float64 { return &f }

func teacher(id, name string) user.User {
	return user.User{ID: id, DisplayName: name, Role: user.RoleTeacher, IsActive: true}
}

func sub(taskID, teacherID string, at time.Time, grade *float64) task.Submission {
	return task.Submission{
		ID: taskID + "-" + teacherID, TaskID: taskID, TeacherID: teacherID,
		SubmittedAt: at, Score: grade, IsLatest: true, Version: 1,
	}
}

// an: 2 graded (9 + 8), binh: 1 graded (10) + 1 late ungraded, chi: nothing, overdue twice
func dataset() Dataset {
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)
	return Dataset{
		Now: now,
		Tasks: []task.Task{
			{ID: "k1", MaxScore: 10, Deadline: past, AssignedTo: []string{"an", "binh", "chi"}},
			{ID: "k2", MaxScore: 10, Deadline: past, AssignedTo: []string{"an", "binh", "chi"}},
			{ID: "k3", MaxScore: 10, Deadline: future, AssignedTo: []string{"an"}},
		},
		Submissions: []task.Submission{
			sub("k1", "an", past.Add(-time.Hour), score(9)),
			sub("k2", "an", past.Add(-time.Hour), score(8)),
			sub("k1", "binh", past.Add(-time.Hour), score(10)),
			sub("k2", "binh", past.Add(time.Hour), nil),
		},
		Teachers: []user.User{teacher("chi", "Chi"), teacher("binh", "Binh"), teacher("an", "An")},
	}
}

func TestComputeTeacherStats(t *testing.T) {
	ds := dataset()

	an := ComputeTeacherStats(ds, teacher("an", "An"))
	assert.Equal(t, 3, an.TotalTasks)
	assert.Equal(t, 2, an.Graded)
	assert.Equal(t, 17.0, an.TotalScore)
	assert.Equal(t, 8.5, an.AverageScore)
	assert.Equal(t, 85.0, an.AveragePercent)
	assert.Equal(t, 0.67, an.CompletionRate)
	assert.Equal(t, 1.0, an.OnTimeRate)
	assert.Equal(t, 1, an.Pending)
	assert.Equal(t, PerformanceExcellent, an.Performance)

	binh := ComputeTeacherStats(ds, teacher("binh", "Binh"))
	assert.Equal(t, 2, binh.Submitted)
	assert.Equal(t, 0.5, binh.OnTimeRate)
	assert.Equal(t, 0.5, binh.CompletionRate)
	assert.Equal(t, 10.0, binh.AverageScore)

	chi := ComputeTeacherStats(ds, teacher("chi", "Chi"))
	assert.Equal(t, 2, chi.Overdue)
	assert.Zero(t, chi.OnTimeRate)
	assert.Zero(t, chi.AverageScore)
	assert.Equal(t, PerformanceAverage, chi.Performance, "no grade yet")
	assert.Equal(t, WorkloadLow, chi.Workload)
}

func TestRankings(t *testing.T) {
	ds := dataset()

	tests := []struct {
		name   string
		viewer user.User
		want   []string // names by rank
	}{
		{name: "admin sees everyone", viewer: user.User{ID: "root", Role: user.RoleAdmin}, want: []string{"An", "Binh", "Chi"}},
		{name: "vice principal sees everyone", viewer: user.User{ID: "vp", Role: user.RoleVicePrincipal}, want: []string{"An", "Binh", "Chi"}},
		{name: "teacher sees own name only", viewer: teacher("binh", "Binh"), want: []string{"Giáo viên 1", "Binh", "Giáo viên 3"}},
		{
			name:   "department head is not elevated",
			viewer: user.User{ID: "head", Role: user.RoleDepartmentHead},
			want:   []string{"Giáo viên 1", "Giáo viên 2", "Giáo viên 3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := Rankings(ds, tt.viewer)
			require.Len(t, entries, len(tt.want))
			for i, e := range entries {
				assert.Equal(t, i+1, e.Rank)
				assert.Equal(t, tt.want[i], e.Name)
				if !tt.viewer.IsElevated() {
					if e.IsSelf {
						assert.Equal(t, tt.viewer.ID, e.TeacherID)
					} else {
						assert.Equal(t, fmt.Sprintf("Giáo viên %d", e.Rank), e.Name)
						assert.Empty(t, e.TeacherID)
					}
				}
			}
		})
	}
}

func TestRankings_tieBreaks(t *testing.T) {
	ds := Dataset{
		Now: now,
		Tasks: []task.Task{
			{ID: "k1", MaxScore: 10, Deadline: now, AssignedTo: []string{"a", "b", "c"}},
			{ID: "k2", MaxScore: 10, Deadline: now, AssignedTo: []string{"c"}},
		},
		Submissions: []task.Submission{
			sub("k1", "a", now, score(8)),
			sub("k1", "b", now, score(8)),
			sub("k1", "c", now, score(4)),
			sub("k2", "c", now, score(4)),
		},
		Teachers: []user.User{teacher("c", "Cuong"), teacher("b", "bao"), teacher("a", "Anh")},
	}

	entries := Rankings(ds, user.User{Role: user.RoleAdmin})
	names := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	// equal totals: higher average first, then case-insensitive name
	assert.Equal(t, []string{"Anh", "bao", "Cuong"}, names)
}

func TestTaskStatistics(t *testing.T) {
	deadline := now.Add(-time.Hour)
	tsk := task.Task{ID: "k", MaxScore: 10, Deadline: deadline, AssignedTo: []string{"a", "b", "c", "d"}}
	latest := []task.Submission{
		sub("k", "a", deadline.Add(-time.Minute), score(6)),
		sub("k", "b", deadline.Add(time.Minute), score(9)),
		sub("k", "c", deadline, nil),
	}

	st := TaskStatistics(tsk, latest, now)
	assert.Equal(t, 4, st.Assigned)
	assert.Equal(t, 3, st.Submitted)
	assert.Equal(t, 2, st.Graded)
	assert.Equal(t, 2, st.OnTime)
	assert.Equal(t, 1, st.Late)
	assert.Equal(t, 7.5, st.AverageScore)
	assert.Equal(t, 9.0, st.HighestScore)
	assert.Equal(t, 6.0, st.LowestScore)
	assert.Equal(t, 0.75, st.SubmissionRate)
	assert.Equal(t, map[task.Status]int{
		task.StatusCompleted: 2,
		task.StatusSubmitted: 1,
		task.StatusOverdue:   1,
	}, st.ByStatus)
}

func TestSuggest(t *testing.T) {
	future := now.Add(72 * time.Hour)
	busy := make([]task.Task, 0, 6)
	for i := 0; i < 6; i++ {
		busy = append(busy, task.Task{ID: fmt.Sprintf("busy%d", i), MaxScore: 10, Deadline: future, AssignedTo: []string{"busy"}})
	}
	ds := Dataset{
		Now: now,
		Tasks: append(busy,
			task.Task{ID: "g", MaxScore: 10, Deadline: now.Add(-time.Hour), AssignedTo: []string{"good", "weak"}},
		),
		Submissions: []task.Submission{
			sub("g", "good", now.Add(-2*time.Hour), score(9)),
			sub("g", "weak", now.Add(-2*time.Hour), score(3)),
		},
		Teachers: []user.User{teacher("busy", "Busy"), teacher("weak", "Weak"), teacher("good", "Good"), teacher("new", "New")},
	}

	got := Suggest(ds, 0)
	require.Len(t, got, 4)
	ids := []string{got[0].TeacherID, got[1].TeacherID, got[2].TeacherID, got[3].TeacherID}
	assert.Equal(t, []string{"good", "new", "weak", "busy"}, ids)
	assert.Equal(t, WorkloadHigh, got[3].Workload)
	assert.Equal(t, PerformanceWeak, got[2].Performance)

	assert.Len(t, Suggest(ds, 2), 2)
}
