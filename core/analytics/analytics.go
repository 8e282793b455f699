// Package analytics computes teacher statistics, rankings and assignment suggestions.
// Nothing here is persisted: every figure is recomputed from the tasks and their latest submissions.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

type Workload string

const (
	WorkloadLow    Workload = "low"
	WorkloadMedium Workload = "medium"
	WorkloadHigh   Workload = "high"
)

type Performance string

const (
	PerformanceExcellent Performance = "excellent"
	PerformanceGood      Performance = "good"
	PerformanceAverage   Performance = "average"
	PerformanceWeak      Performance = "weak"
)

// thresholds
const (
	mediumWorkloadFrom = 3 // pending tasks
	highWorkloadFrom   = 6

	excellentFrom = 85.0 // percent of max score
	goodFrom      = 70.0
	averageFrom   = 50.0
)

// AnonymousLabel is the name shown in place of other teachers' names on a non-elevated leaderboard.
func AnonymousLabel(rank int) string {
	return fmt.Sprintf("Giáo viên %d", rank)
}

// Dataset is everything the computations need. Submissions hold latest versions only.
type Dataset struct {
	Tasks       []task.Task
	Submissions []task.Submission
	Teachers    []user.User
	Now         time.Time
}

type TeacherStats struct {
	TeacherID      string      `json:"teacher_id"`
	Name           string      `json:"name"`
	TotalTasks     int         `json:"total_tasks"`
	Submitted      int         `json:"submitted"`
	Graded         int         `json:"graded"`
	Overdue        int         `json:"overdue"`
	Pending        int         `json:"pending"`
	TotalScore     float64     `json:"total_score"`
	AverageScore   float64     `json:"average_score"`
	AveragePercent float64     `json:"average_percent"`
	CompletionRate float64     `json:"completion_rate"`
	OnTimeRate     float64     `json:"on_time_rate"`
	Workload       Workload    `json:"workload"`
	Performance    Performance `json:"performance"`
}

// ComputeTeacherStats aggregates the tasks assigned to `teacher`.
func ComputeTeacherStats(ds Dataset, teacher user.User) TeacherStats {
	st := TeacherStats{TeacherID: teacher.ID, Name: teacher.Name()}

	subs := make(map[string]task.Submission)
	for _, s := range ds.Submissions {
		if s.TeacherID == teacher.ID && s.IsLatest {
			subs[s.TaskID] = s
		}
	}

	var onTime int
	var percentSum float64
	for _, t := range ds.Tasks {
		if !t.IsAssignee(teacher.ID) {
			continue
		}
		st.TotalTasks++

		s, ok := subs[t.ID]
		var latest *task.Submission
		if ok {
			latest = &s
		}
		switch task.TeacherStatus(t, latest, ds.Now) {
		case task.StatusOverdue:
			st.Overdue++
			st.Pending++
		case task.StatusAssigned:
			st.Pending++
		}
		if !ok {
			continue
		}

		st.Submitted++
		if !s.SubmittedAt.After(t.Deadline) {
			onTime++
		}
		if s.IsGraded() {
			st.Graded++
			st.TotalScore += *s.Score
			if t.MaxScore > 0 {
				percentSum += *s.Score / t.MaxScore * 100
			}
		}
	}

	if st.Graded > 0 {
		st.AverageScore = round(st.TotalScore / float64(st.Graded))
		st.AveragePercent = round(percentSum / float64(st.Graded))
	}
	if st.TotalTasks > 0 {
		st.CompletionRate = round(float64(st.Graded) / float64(st.TotalTasks))
	}
	if st.Submitted > 0 {
		st.OnTimeRate = round(float64(onTime) / float64(st.Submitted))
	}
	st.TotalScore = round(st.TotalScore)
	st.Workload = workloadOf(st.Pending)
	st.Performance = performanceOf(st)
	return st
}

// AllTeacherStats computes the stats of every teacher in the dataset.
func AllTeacherStats(ds Dataset) []TeacherStats {
	res := make([]TeacherStats, 0, len(ds.Teachers))
	for _, teacher := range ds.Teachers {
		res = append(res, ComputeTeacherStats(ds, teacher))
	}
	return res
}

func workloadOf(pending int) Workload {
	switch {
	case pending >= highWorkloadFrom:
		return WorkloadHigh
	case pending >= mediumWorkloadFrom:
		return WorkloadMedium
	default:
		return WorkloadLow
	}
}

// performanceOf rates a teacher on the average percentage of max score obtained.
// Teachers without any grade yet are rated average.
func performanceOf(st TeacherStats) Performance {
	switch {
	case st.Graded == 0:
		return PerformanceAverage
	case st.AveragePercent >= excellentFrom:
		return PerformanceExcellent
	case st.AveragePercent >= goodFrom:
		return PerformanceGood
	case st.AveragePercent >= averageFrom:
		return PerformanceAverage
	default:
		return PerformanceWeak
	}
}

type RankingEntry struct {
	Rank           int     `json:"rank"`
	TeacherID      string  `json:"teacher_id,omitempty"`
	Name           string  `json:"name"`
	TotalScore     float64 `json:"total_score"`
	AverageScore   float64 `json:"average_score"`
	Graded         int     `json:"graded"`
	CompletionRate float64 `json:"completion_rate"`
	OnTimeRate     float64 `json:"on_time_rate"`
	IsSelf         bool    `json:"is_self"`
}

// Rankings orders the teachers by total score, then average score, then name.
// Viewers outside the elevated roles only see their own name; other entries are relabeled by rank.
func Rankings(ds Dataset, viewer user.User) []RankingEntry {
	stats := AllTeacherStats(ds)
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	elevated := viewer.IsElevated()
	res := make([]RankingEntry, len(stats))
	for i, st := range stats {
		e := RankingEntry{
			Rank:           i + 1,
			TeacherID:      st.TeacherID,
			Name:           st.Name,
			TotalScore:     st.TotalScore,
			AverageScore:   st.AverageScore,
			Graded:         st.Graded,
			CompletionRate: st.CompletionRate,
			OnTimeRate:     st.OnTimeRate,
			IsSelf:         st.TeacherID == viewer.ID,
		}
		if !elevated && !e.IsSelf {
			e.TeacherID = ""
			e.Name = AnonymousLabel(e.Rank)
		}
		res[i] = e
	}
	return res
}

type TaskStats struct {
	TaskID         string              `json:"task_id"`
	Assigned       int                 `json:"assigned"`
	Submitted      int                 `json:"submitted"`
	Graded         int                 `json:"graded"`
	OnTime         int                 `json:"on_time"`
	Late           int                 `json:"late"`
	ByStatus       map[task.Status]int `json:"by_status"`
	AverageScore   float64             `json:"average_score"`
	HighestScore   float64             `json:"highest_score"`
	LowestScore    float64             `json:"lowest_score"`
	SubmissionRate float64             `json:"submission_rate"`
}

// TaskStatistics summarizes the latest submissions of a task's assignees.
func TaskStatistics(t task.Task, latest []task.Submission, now time.Time) TaskStats {
	st := TaskStats{TaskID: t.ID, Assigned: len(t.AssignedTo), ByStatus: make(map[task.Status]int)}

	byTeacher := make(map[string]task.Submission, len(latest))
	for _, s := range latest {
		byTeacher[s.TeacherID] = s
	}

	var sum float64
	for _, uid := range t.AssignedTo {
		s, ok := byTeacher[uid]
		var sub *task.Submission
		if ok {
			sub = &s
		}
		st.ByStatus[task.TeacherStatus(t, sub, now)]++
		if !ok {
			continue
		}

		st.Submitted++
		if s.SubmittedAt.After(t.Deadline) {
			st.Late++
		} else {
			st.OnTime++
		}
		if s.IsGraded() {
			score := *s.Score
			if st.Graded == 0 || score > st.HighestScore {
				st.HighestScore = score
			}
			if st.Graded == 0 || score < st.LowestScore {
				st.LowestScore = score
			}
			st.Graded++
			sum += score
		}
	}

	if st.Graded > 0 {
		st.AverageScore = round(sum / float64(st.Graded))
	}
	if st.Assigned > 0 {
		st.SubmissionRate = round(float64(st.Submitted) / float64(st.Assigned))
	}
	return st
}

type Suggestion struct {
	TeacherID      string      `json:"teacher_id"`
	Name           string      `json:"name"`
	Pending        int         `json:"pending"`
	Workload       Workload    `json:"workload"`
	Performance    Performance `json:"performance"`
	AveragePercent float64     `json:"average_percent"`
}

var (
	workloadRanks    = map[Workload]int{WorkloadLow: 0, WorkloadMedium: 1, WorkloadHigh: 2}
	performanceRanks = map[Performance]int{
		PerformanceExcellent: 0, PerformanceGood: 1, PerformanceAverage: 2, PerformanceWeak: 3,
	}
)

// Suggest returns up to `n` teachers to assign a new task to: least loaded first, then best performing.
// n <= 0 returns every teacher.
func Suggest(ds Dataset, n int) []Suggestion {
	stats := AllTeacherStats(ds)
	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if wa, wb := workloadRanks[a.Workload], workloadRanks[b.Workload]; wa != wb {
			return wa < wb
		}
		if pa, pb := performanceRanks[a.Performance], performanceRanks[b.Performance]; pa != pb {
			return pa < pb
		}
		if a.Pending != b.Pending {
			return a.Pending < b.Pending
		}
		if a.AveragePercent != b.AveragePercent {
			return a.AveragePercent > b.AveragePercent
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	if n > 0 && n < len(stats) {
		stats = stats[:n]
	}

	res := make([]Suggestion, len(stats))
	for i, st := range stats {
		res[i] = Suggestion{
			TeacherID:      st.TeacherID,
			Name:           st.Name,
			Pending:        st.Pending,
			Workload:       st.Workload,
			Performance:    st.Performance,
			AveragePercent: st.AveragePercent,
		}
	}
	return res
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}
