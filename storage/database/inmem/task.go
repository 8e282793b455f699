package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
)

type taskRepository struct {
	db *taskTables
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task}
}

func copyTask(t task.Task) task.Task {
	t.AssignedTo = copyStrings(t.AssignedTo)
	t.AssignedToNames = copyStrings(t.AssignedToNames)
	return t
}

func copySubmission(s task.Submission) task.Submission {
	s.FileIDs = copyStrings(s.FileIDs)
	s.FileURLs = copyStrings(s.FileURLs)
	s.FileNames = copyStrings(s.FileNames)
	return s
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t = copyTask(t)
	repo.db.tasks[t.ID] = &t
	return copyTask(t), nil
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id string) (task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return copyTask(*t), nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTasks(_ context.Context, filter task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.tasks {
		if filter.Match(*t) {
			tasks = append(tasks, copyTask(*t))
		}
	}

	ordering = core.FilterOrderings(ordering, "deadline", "created_at", "title", "priority")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareTasks(tasks[i], tasks[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return tasks, nil
}

var priorityRanks = map[task.Priority]int{task.PriorityLow: 1, task.PriorityMedium: 2, task.PriorityHigh: 3}

func compareTasks(a, b task.Task, field string) int {
	switch field {
	case "deadline":
		return compareTimes(a.Deadline, b.Deadline)
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "priority":
		return priorityRanks[a.Priority] - priorityRanks[b.Priority]
	default:
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.tasks[t.ID]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	// status is owned by SetTaskStatus
	t.Status = orig.Status
	t = copyTask(t)
	repo.db.tasks[t.ID] = &t
	return copyTask(t), nil
}

func (repo *taskRepository) SetTaskStatus(_ context.Context, id string, status task.Status) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.tasks[id]
	if !ok {
		return task.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = core.NowFunc()
	return nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.tasks[id]; !ok {
		return task.ErrNotFound
	}
	delete(repo.db.tasks, id)
	for sid, s := range repo.db.submissions {
		if s.TaskID == id {
			delete(repo.db.submissions, sid)
		}
	}
	for iid, si := range repo.db.intents {
		if si.TaskID == id {
			delete(repo.db.intents, iid)
		}
	}
	return nil
}

func (repo *taskRepository) GetSubmissionByID(_ context.Context, id string) (task.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return copySubmission(*s), nil
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) QuerySubmissions(_ context.Context, filter task.SubmissionFilter) ([]task.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]task.Submission, 0)
	for _, s := range repo.db.submissions {
		if (filter.TaskID != "" && s.TaskID != filter.TaskID) ||
			(filter.TeacherID != "" && s.TeacherID != filter.TeacherID) ||
			(filter.IntentID != "" && s.IntentID != filter.IntentID) ||
			(filter.LatestOnly && !s.IsLatest) {
			continue
		}
		subs = append(subs, copySubmission(*s))
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Version != subs[j].Version {
			return subs[i].Version > subs[j].Version
		}
		return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
	})
	return subs, nil
}

func (repo *taskRepository) SaveSubmissionVersion(_ context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var current *task.Submission
	for _, s := range repo.db.submissions {
		if s.TaskID == sub.TaskID && s.TeacherID == sub.TeacherID && s.IsLatest {
			current = s
			break
		}
	}
	switch {
	case current == nil && sub.PreviousVersionID != "":
		return task.Submission{}, task.ErrVersionConflict
	case current != nil && current.ID != sub.PreviousVersionID:
		return task.Submission{}, task.ErrVersionConflict
	case current != nil:
		current.IsLatest = false
	}

	sub.IsLatest = true
	sub = copySubmission(sub)
	repo.db.submissions[sub.ID] = &sub
	return copySubmission(sub), nil
}

func (repo *taskRepository) UpdateSubmission(_ context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	sub = copySubmission(sub)
	repo.db.submissions[sub.ID] = &sub
	return copySubmission(sub), nil
}

func (repo *taskRepository) CreateIntent(_ context.Context, si task.SubmissionIntent) (task.SubmissionIntent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.intents[si.ID]; ok {
		return task.SubmissionIntent{}, core.NewValidationError(nil, core.FieldError{Field: "intent_id", Error: "intent already exists"})
	}
	stored := si
	stored.FileIDs = copyStrings(si.FileIDs)
	repo.db.intents[si.ID] = &stored
	si.FileIDs = copyStrings(si.FileIDs)
	return si, nil
}

func (repo *taskRepository) GetIntent(_ context.Context, id string) (task.SubmissionIntent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if si, ok := repo.db.intents[id]; ok {
		res := *si
		res.FileIDs = copyStrings(si.FileIDs)
		return res, nil
	}
	return task.SubmissionIntent{}, task.ErrIntentNotFound
}

func (repo *taskRepository) UpdateIntent(_ context.Context, si task.SubmissionIntent) (task.SubmissionIntent, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.intents[si.ID]; !ok {
		return task.SubmissionIntent{}, task.ErrIntentNotFound
	}
	stored := si
	stored.FileIDs = copyStrings(si.FileIDs)
	repo.db.intents[si.ID] = &stored
	si.FileIDs = copyStrings(si.FileIDs)
	return si, nil
}

func (repo *taskRepository) QueryOpenIntents(_ context.Context, before time.Time) ([]task.SubmissionIntent, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]task.SubmissionIntent, 0)
	for _, si := range repo.db.intents {
		if si.IsOpen() && si.UpdatedAt.Before(before) {
			cp := *si
			cp.FileIDs = copyStrings(si.FileIDs)
			res = append(res, cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}
