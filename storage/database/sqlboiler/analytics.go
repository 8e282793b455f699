package boiledrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/analytics"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

// analyticsLoader reads the dataset behind rankings and suggestions in three raw queries,
// bypassing the per-entity repositories.
type analyticsLoader struct {
	exec core.DBExecutor
}

var _ analytics.DatasetLoader = (*analyticsLoader)(nil) // interface compliance check

func NewAnalyticsLoader(exec core.DBExecutor) analytics.DatasetLoader {
	return &analyticsLoader{exec: exec}
}

type taskStatRow struct {
	ID         string            `boil:"id"`
	Title      string            `boil:"title"`
	Status     string            `boil:"status"`
	MaxScore   float64           `boil:"max_score"`
	Deadline   time.Time         `boil:"deadline"`
	Deadline2  null.Time         `boil:"deadline2"`
	CreatedBy  string            `boil:"created_by"`
	AssignedTo types.StringArray `boil:"assigned_to"`
}

type submissionStatRow struct {
	ID          string       `boil:"id"`
	TaskID      string       `boil:"task_id"`
	TeacherID   string       `boil:"teacher_id"`
	SubmittedAt time.Time    `boil:"submitted_at"`
	MetDeadline null.Int     `boil:"met_deadline"`
	AutoScore   float64      `boil:"auto_score"`
	Score       null.Float64 `boil:"score"`
	Version     int          `boil:"version"`
}

type teacherRow struct {
	ID          string `boil:"id"`
	Email       string `boil:"email"`
	DisplayName string `boil:"display_name"`
	Role        string `boil:"role"`
}

// scopeClause renders the task filter of `scope` with numbered placeholders.
func scopeClause(scope analytics.Scope, alias string) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if scope.SchoolYearID != "" {
		args = append(args, scope.SchoolYearID)
		clauses = append(clauses, fmt.Sprintf("%s.school_year_id = $%d", alias, len(args)))
	}
	if scope.Semester != 0 {
		args = append(args, scope.Semester)
		clauses = append(clauses, fmt.Sprintf("%s.semester = $%d", alias, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (l *analyticsLoader) LoadDataset(ctx context.Context, scope analytics.Scope) (analytics.Dataset, error) {
	where, args := scopeClause(scope, "t")

	var taskRows []*taskStatRow
	q := `SELECT t.id, t.title, t.status, t.max_score, t.deadline, t.deadline2, t.created_by, t.assigned_to
		FROM tasks t` + where
	if err := queries.Raw(q, args...).Bind(ctx, l.exec, &taskRows); err != nil {
		return analytics.Dataset{}, errors.Wrap(err, "loading tasks")
	}

	var subRows []*submissionStatRow
	q = `SELECT s.id, s.task_id, s.teacher_id, s.submitted_at, s.met_deadline, s.auto_score, s.score, s.version
		FROM submissions s JOIN tasks t ON t.id = s.task_id` + where
	if where == "" {
		q += " WHERE s.is_latest"
	} else {
		q += " AND s.is_latest"
	}
	if err := queries.Raw(q, args...).Bind(ctx, l.exec, &subRows); err != nil {
		return analytics.Dataset{}, errors.Wrap(err, "loading submissions")
	}

	var teacherRows []*teacherRow
	q = `SELECT id, email, display_name, role FROM users WHERE is_active AND role = ANY($1) ORDER BY LOWER(display_name)`
	if err := queries.Raw(q, types.StringArray(analytics.RankedRoles)).Bind(ctx, l.exec, &teacherRows); err != nil {
		return analytics.Dataset{}, errors.Wrap(err, "loading teachers")
	}

	ds := analytics.Dataset{
		Tasks:       make([]task.Task, 0, len(taskRows)),
		Submissions: make([]task.Submission, 0, len(subRows)),
		Teachers:    make([]user.User, 0, len(teacherRows)),
	}
	for _, r := range taskRows {
		t := task.Task{
			ID:         r.ID,
			Title:      r.Title,
			Status:     task.Status(r.Status),
			MaxScore:   r.MaxScore,
			Deadline:   r.Deadline.UTC(),
			CreatedBy:  r.CreatedBy,
			AssignedTo: []string(r.AssignedTo),
		}
		if r.Deadline2.Valid {
			d2 := r.Deadline2.Time.UTC()
			t.Deadline2 = &d2
		}
		ds.Tasks = append(ds.Tasks, t)
	}
	for _, r := range subRows {
		ds.Submissions = append(ds.Submissions, task.Submission{
			ID:          r.ID,
			TaskID:      r.TaskID,
			TeacherID:   r.TeacherID,
			SubmittedAt: r.SubmittedAt.UTC(),
			MetDeadline: r.MetDeadline.Ptr(),
			AutoScore:   r.AutoScore,
			Score:       r.Score.Ptr(),
			Version:     r.Version,
			IsLatest:    true,
		})
	}
	for _, r := range teacherRows {
		ds.Teachers = append(ds.Teachers, user.User{
			ID:          r.ID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			Role:        r.Role,
			IsActive:    true,
		})
	}
	return ds, nil
}
