package analytics

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

// Scope narrows the tasks taken into account. Empty fields match everything.
type Scope struct {
	SchoolYearID string   `query:"school_year_id"`
	Semester     int      `query:"semester"`
	TeacherIDs   []string `query:"-"`
}

type (
	// DatasetLoader loads the tasks of a scope, their latest submissions and the ranked teachers.
	DatasetLoader interface {
		LoadDataset(ctx context.Context, scope Scope) (Dataset, error)
	}

	TaskGetter interface {
		GetByID(ctx context.Context, id string) (task.Task, error)
		GetSubmissions(ctx context.Context, taskID string) ([]task.Submission, error)
	}

	Service struct {
		loader DatasetLoader
		tasks  TaskGetter
	}
)

func NewService(loader DatasetLoader, tasks TaskGetter) *Service {
	return &Service{loader: loader, tasks: tasks}
}

func (svc *Service) load(ctx context.Context, scope Scope) (Dataset, error) {
	ds, err := svc.loader.LoadDataset(ctx, scope)
	if err != nil {
		return Dataset{}, pkgerrors.Wrap(err, "loading dataset")
	}
	if len(scope.TeacherIDs) > 0 {
		teachers := ds.Teachers[:0]
		for _, t := range ds.Teachers {
			if core.ContainsString(scope.TeacherIDs, t.ID) {
				teachers = append(teachers, t)
			}
		}
		ds.Teachers = teachers
	}
	ds.Now = core.NowFunc()
	return ds, nil
}

func (svc *Service) Rankings(ctx context.Context, scope Scope, viewer user.User) ([]RankingEntry, error) {
	ds, err := svc.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Rankings(ds, viewer), nil
}

func (svc *Service) TeacherStats(ctx context.Context, scope Scope) ([]TeacherStats, error) {
	ds, err := svc.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return AllTeacherStats(ds), nil
}

// StatsOf returns the stats of one teacher, who need not be in the ranked population.
func (svc *Service) StatsOf(ctx context.Context, scope Scope, teacher user.User) (TeacherStats, error) {
	scope.TeacherIDs = nil
	ds, err := svc.load(ctx, scope)
	if err != nil {
		return TeacherStats{}, err
	}
	return ComputeTeacherStats(ds, teacher), nil
}

func (svc *Service) Suggest(ctx context.Context, scope Scope, n int) ([]Suggestion, error) {
	ds, err := svc.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	return Suggest(ds, n), nil
}

func (svc *Service) TaskStatistics(ctx context.Context, taskID string) (TaskStats, error) {
	t, err := svc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return TaskStats{}, err
	}
	latest, err := svc.tasks.GetSubmissions(ctx, taskID)
	if err != nil {
		return TaskStats{}, err
	}
	return TaskStatistics(t, latest, core.NowFunc()), nil
}

type (
	TaskQuerier interface {
		QueryTasks(ctx context.Context, filter task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error)
		QuerySubmissions(ctx context.Context, filter task.SubmissionFilter) ([]task.Submission, error)
	}

	UserQuerier interface {
		QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	// RepositoryLoader builds datasets out of the task and user repositories.
	RepositoryLoader struct {
		tasks TaskQuerier
		users UserQuerier
	}
)

func NewRepositoryLoader(tasks TaskQuerier, users UserQuerier) *RepositoryLoader {
	return &RepositoryLoader{tasks: tasks, users: users}
}

// RankedRoles are the roles whose members appear in rankings and suggestions.
var RankedRoles = []string{user.RoleTeacher, user.RoleDepartmentHead}

func (l *RepositoryLoader) LoadDataset(ctx context.Context, scope Scope) (Dataset, error) {
	tasks, err := l.tasks.QueryTasks(ctx, task.QueryFilter{SchoolYearID: scope.SchoolYearID, Semester: scope.Semester}, nil)
	if err != nil {
		return Dataset{}, err
	}
	inScope := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inScope[t.ID] = true
	}

	all, err := l.tasks.QuerySubmissions(ctx, task.SubmissionFilter{LatestOnly: true})
	if err != nil {
		return Dataset{}, err
	}
	subs := make([]task.Submission, 0, len(all))
	for _, s := range all {
		if inScope[s.TaskID] {
			subs = append(subs, s)
		}
	}

	active := true
	teachers, err := l.users.QueryUsers(ctx, &user.QueryFilter{Roles: RankedRoles, IsActive: &active}, nil)
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{Tasks: tasks, Submissions: subs, Teachers: teachers}, nil
}
