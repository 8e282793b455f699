package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/user"
)

const (
	reportFolder      = "reports"
	descriptionFolder = "tasks"
)

var (
	// errors
	ErrNotFound           = core.E(core.KindNotFound, "", errors.New("task not found"))
	ErrSubmissionNotFound = core.E(core.KindNotFound, "", errors.New("submission not found"))
	ErrIntentNotFound     = core.E(core.KindNotFound, "", errors.New("submission intent not found"))
	ErrNotAssigned        = core.E(core.KindPermission, "", errors.New("you are not assigned to this task"))
	ErrNotTaskOwner       = core.E(core.KindPermission, "", errors.New("only the task creator can do this"))
	ErrIntentAbandoned    = core.NewValidationError(nil, core.FieldError{
		Field: "intent_id", Error: "this submission attempt expired, please submit again",
	})
	ErrStaleVersion = core.NewValidationError(nil, core.FieldError{
		Field: "submission", Error: "only the latest version of a submission can be scored",
	})
	// ErrVersionConflict is returned by repositories when another version was stored concurrently.
	ErrVersionConflict = core.NewValidationError(nil, core.FieldError{
		Field: "submission", Error: "a newer version was submitted meanwhile, please retry",
	})
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		// QueryTasks applies AND operation on available QueryFilter fields.
		QueryTasks(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		SetTaskStatus(ctx context.Context, id string, status Status) error
		// DeleteTask removes the task along with all its submissions and intents.
		DeleteTask(ctx context.Context, id string) error

		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		// QuerySubmissions returns the matching submissions, newest version first.
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		// SaveSubmissionVersion stores `sub` as the latest version of its (task, teacher) pair.
		// The version named by sub.PreviousVersionID loses its latest flag in the same transaction.
		SaveSubmissionVersion(ctx context.Context, sub Submission) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)

		CreateIntent(ctx context.Context, si SubmissionIntent) (SubmissionIntent, error)
		GetIntent(ctx context.Context, id string) (SubmissionIntent, error)
		UpdateIntent(ctx context.Context, si SubmissionIntent) (SubmissionIntent, error)
		// QueryOpenIntents returns the pending or uploaded intents last updated before `before`.
		QueryOpenIntents(ctx context.Context, before time.Time) ([]SubmissionIntent, error)
	}

	UserGetter interface {
		GetManyByID(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Notifier interface {
		Notify(ctx context.Context, ns ...notification.Notification) error
	}

	Service struct {
		repo     Repository
		users    UserGetter
		files    core.FileStore
		policy   core.UploadPolicy
		notifier Notifier
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	users UserGetter,
	files core.FileStore,
	policy core.UploadPolicy,
	notifier Notifier,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, users: users, files: files, policy: policy, notifier: notifier, logger: logger}
}

// Create persists a new task as assigned and notifies every assignee.
func (svc *Service) Create(ctx context.Context, nt NewTask, creator user.User) (Task, error) {
	const op = "task.Create"

	names, err := svc.assigneeNames(ctx, nt.AssignedTo)
	if err != nil {
		return Task{}, err
	}
	if len(nt.AssignedToNames) > 0 && len(nt.AssignedToNames) != len(nt.AssignedTo) {
		return Task{}, core.NewValidationError(nil, core.FieldError{
			Field: "assigned_to_names", Error: "assigned_to_names must match assigned_to",
		})
	}

	now := core.NowFunc()
	t := Task{
		ID:              uuid.New().String(),
		SchoolYearID:    nt.SchoolYearID,
		Semester:        nt.Semester,
		Title:           nt.Title,
		Description:     nt.Description,
		Priority:        nt.Priority,
		Status:          StatusAssigned,
		MaxScore:        nt.MaxScore,
		ScoreDeadline1:  nt.ScoreDeadline1,
		ScoreDeadline2:  nt.ScoreDeadline2,
		Deadline:        nt.Deadline.UTC(),
		CreatedBy:       creator.ID,
		CreatedByName:   creator.Name(),
		AssignedTo:      nt.AssignedTo,
		AssignedToNames: names,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nt.Deadline2 != nil {
		d2 := nt.Deadline2.UTC()
		t.Deadline2 = &d2
	}

	if nt.DescriptionFile != nil {
		up := *nt.DescriptionFile
		if err = svc.policy.Check(op, up); err != nil {
			return Task{}, err
		}
		up.Folder = descriptionFolder
		file, err := svc.upload(ctx, op, up, nil)
		if err != nil {
			return Task{}, err
		}
		t.DescriptionFileID, t.DescriptionFileURL, t.DescriptionFileName = file.ID, file.URL, file.Name
	}

	descFileID := t.DescriptionFileID
	if t, err = svc.repo.CreateTask(ctx, t); err != nil {
		if descFileID != "" {
			svc.deleteFiles(ctx, descFileID)
		}
		return Task{}, pkgerrors.Wrap(err, "creating task")
	}

	ns := make([]notification.Notification, 0, len(t.AssignedTo))
	for _, uid := range t.AssignedTo {
		ns = append(ns, notification.Notification{
			UserID:  uid,
			Type:    notification.TypeTaskAssigned,
			Title:   "Nhiệm vụ mới",
			Message: fmt.Sprintf("Bạn được giao nhiệm vụ \"%s\", hạn chót %s.", t.Title, t.Deadline.Format("02/01/2006 15:04")),
			RefID:   t.ID,
			Link:    notification.TaskLink(t.ID),
		})
	}
	svc.notify(ctx, ns...)
	return t, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

// GetByCreator returns the tasks created by `creatorID`, newest first.
func (svc *Service) GetByCreator(ctx context.Context, creatorID string) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, QueryFilter{CreatedBy: creatorID}, []core.DBOrdering{{Field: "created_at"}})
}

// GetForTeacher returns the tasks assigned to `teacherID`, closest deadline first.
func (svc *Service) GetForTeacher(ctx context.Context, teacherID string) ([]Task, error) {
	return svc.repo.QueryTasks(ctx, QueryFilter{AssignedTo: teacherID}, []core.DBOrdering{{Field: "deadline", Ascending: true}})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Task, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryTasks(ctx, filter, ordering)
}

// Update applies `ut` to the task. Newly added assignees are notified of the assignment,
// the others of the change.
func (svc *Service) Update(ctx context.Context, id string, ut UpdateTask, actor user.User) (Task, error) {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return Task{}, err
	}
	if !t.CanManage(actor) {
		return Task{}, ErrNotTaskOwner
	}

	prevAssignees := t.AssignedTo
	upd, err := ut.apply(t)
	if err != nil {
		return Task{}, err
	}
	if ut.AssignedTo != nil {
		names, err := svc.assigneeNames(ctx, ut.AssignedTo)
		if err != nil {
			return Task{}, err
		}
		upd.AssignedTo, upd.AssignedToNames = ut.AssignedTo, names
	}
	upd.UpdatedAt = core.NowFunc()

	if upd, err = svc.repo.UpdateTask(ctx, upd); err != nil {
		return Task{}, pkgerrors.Wrap(err, "updating task")
	}
	svc.UpdateTaskStatus(ctx, upd.ID)

	ns := make([]notification.Notification, 0, len(upd.AssignedTo))
	for _, uid := range upd.AssignedTo {
		n := notification.Notification{
			UserID: uid,
			RefID:  upd.ID,
			Link:   notification.TaskLink(upd.ID),
		}
		if core.ContainsString(prevAssignees, uid) {
			n.Type = notification.TypeTaskUpdated
			n.Title = "Nhiệm vụ được cập nhật"
			n.Message = fmt.Sprintf("Nhiệm vụ \"%s\" vừa được cập nhật.", upd.Title)
		} else {
			n.Type = notification.TypeTaskAssigned
			n.Title = "Nhiệm vụ mới"
			n.Message = fmt.Sprintf("Bạn được giao nhiệm vụ \"%s\".", upd.Title)
		}
		ns = append(ns, n)
	}
	svc.notify(ctx, ns...)

	return svc.repo.GetTaskByID(ctx, upd.ID)
}

// Delete removes the task and its submissions. Stored files are removed on a best effort basis.
func (svc *Service) Delete(ctx context.Context, id string, actor user.User) error {
	t, err := svc.repo.GetTaskByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.CanManage(actor) {
		return ErrNotTaskOwner
	}

	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskID: id})
	if err != nil {
		return pkgerrors.Wrap(err, "loading submissions")
	}
	if err = svc.repo.DeleteTask(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting task")
	}

	var fileIDs []string
	if t.DescriptionFileID != "" {
		fileIDs = append(fileIDs, t.DescriptionFileID)
	}
	for _, sub := range subs {
		fileIDs = append(fileIDs, sub.FileIDs...)
	}
	svc.deleteFiles(ctx, fileIDs...)
	return nil
}

// SubmitReport records a teacher's report on a task.
// The submission runs as a resumable saga: an intent is persisted first, files are uploaded one at
// a time and recorded on the intent, then the new version is stored and the intent finalized.
// Resubmitting with the id of a finalized intent returns the submission it produced.
func (svc *Service) SubmitReport(ctx context.Context, nr NewReport, progress core.ProgressFunc) (Submission, error) {
	const op = "task.SubmitReport"

	t, err := svc.repo.GetTaskByID(ctx, nr.TaskID)
	if err != nil {
		return Submission{}, err
	}
	if !t.IsAssignee(nr.TeacherID) {
		return Submission{}, ErrNotAssigned
	}
	if err = svc.policy.Check(op, nr.Files...); err != nil {
		return Submission{}, err
	}

	intent, done, err := svc.openIntent(ctx, nr)
	if err != nil {
		return Submission{}, err
	}
	if done != nil {
		return *done, nil
	}

	if err = svc.files.Health(ctx); err != nil {
		return Submission{}, core.E(core.KindUploadFailed, op, err)
	}

	// sequential uploads so progress is meaningful
	var total, sent int64
	for _, f := range nr.Files {
		total += f.Size
	}
	sub := Submission{
		ID:          uuid.New().String(),
		TaskID:      t.ID,
		TeacherID:   nr.TeacherID,
		TeacherName: nr.TeacherName,
		Content:     nr.Content,
		FileIDs:     make([]string, 0, len(nr.Files)),
		FileURLs:    make([]string, 0, len(nr.Files)),
		FileNames:   make([]string, 0, len(nr.Files)),
		IntentID:    intent.ID,
	}
	if sub.TeacherName == "" {
		sub.TeacherName = t.AssigneeName(nr.TeacherID)
	}
	for _, up := range nr.Files {
		up.Folder = reportFolder + "/" + t.ID
		offset := sent
		file, err := svc.upload(ctx, op, up, func(s, _ int64) {
			if progress != nil {
				progress(offset+s, total)
			}
		})
		if err != nil {
			svc.releaseIntent(ctx, intent)
			return Submission{}, err
		}
		sent += up.Size
		sub.FileIDs = append(sub.FileIDs, file.ID)
		sub.FileURLs = append(sub.FileURLs, file.URL)
		sub.FileNames = append(sub.FileNames, file.Name)

		intent.FileIDs = append(intent.FileIDs, file.ID)
		intent.State = IntentUploaded
		intent.UpdatedAt = core.NowFunc()
		if intent, err = svc.repo.UpdateIntent(ctx, intent); err != nil {
			svc.deleteFiles(ctx, sub.FileIDs...)
			return Submission{}, pkgerrors.Wrap(err, "recording upload")
		}
	}

	sub.SubmittedAt = core.NowFunc()
	sub.AutoScore, sub.MetDeadline = AutoScore(t, sub.SubmittedAt)

	prevs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskID: t.ID, TeacherID: nr.TeacherID, LatestOnly: true})
	if err != nil {
		svc.releaseIntent(ctx, intent)
		return Submission{}, pkgerrors.Wrap(err, "loading latest submission")
	}
	sub.Version, sub.IsLatest = 1, true
	if len(prevs) > 0 {
		prev := prevs[0]
		sub.Version = prev.Version + 1
		sub.PreviousVersionID = prev.ID
		sub.ContentChange = ContentChange(prev.Content, sub.Content)
	}
	if sub, err = svc.repo.SaveSubmissionVersion(ctx, sub); err != nil {
		svc.releaseIntent(ctx, intent)
		return Submission{}, pkgerrors.Wrap(err, "saving submission")
	}

	intent.State = IntentFinalized
	intent.SubmissionID = sub.ID
	intent.UpdatedAt = core.NowFunc()
	if _, err = svc.repo.UpdateIntent(ctx, intent); err != nil {
		// the sweep finalizes intents whose submission exists
		svc.logger.Warn("finalizing submission intent", pkgerrors.Wrap(err, intent.ID))
	}

	if err = svc.repo.SetTaskStatus(ctx, t.ID, StatusSubmitted); err != nil {
		svc.logger.Error("setting task status", pkgerrors.Wrap(err, t.ID))
	}
	svc.UpdateTaskStatus(ctx, t.ID)

	msg := fmt.Sprintf("%s đã nộp báo cáo cho nhiệm vụ \"%s\".", sub.TeacherName, t.Title)
	if sub.Version > 1 {
		msg = fmt.Sprintf("%s đã nộp lại báo cáo (lần %d) cho nhiệm vụ \"%s\".", sub.TeacherName, sub.Version, t.Title)
	}
	svc.notify(ctx, notification.Notification{
		UserID:  t.CreatedBy,
		Type:    notification.TypeSubmissionReceived,
		Title:   "Báo cáo mới",
		Message: msg,
		RefID:   t.ID,
		Link:    notification.TaskLink(t.ID),
	})
	return sub, nil
}

// openIntent loads or creates the intent of `nr`.
// It returns the produced submission when the intent was already finalized.
func (svc *Service) openIntent(ctx context.Context, nr NewReport) (SubmissionIntent, *Submission, error) {
	now := core.NowFunc()
	if nr.IntentID != "" {
		intent, err := svc.repo.GetIntent(ctx, nr.IntentID)
		switch {
		case err == nil:
			if intent.TaskID != nr.TaskID || intent.TeacherID != nr.TeacherID {
				return SubmissionIntent{}, nil, ErrNotAssigned
			}
			switch intent.State {
			case IntentFinalized:
				sub, err := svc.repo.GetSubmissionByID(ctx, intent.SubmissionID)
				if err != nil {
					return SubmissionIntent{}, nil, err
				}
				return intent, &sub, nil
			case IntentAbandoned:
				return SubmissionIntent{}, nil, ErrIntentAbandoned
			}
			// the version may be stored even though finalizing the intent failed
			subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{IntentID: intent.ID})
			if err != nil {
				return SubmissionIntent{}, nil, pkgerrors.Wrap(err, "loading intent submission")
			}
			if len(subs) > 0 {
				intent.State = IntentFinalized
				intent.SubmissionID = subs[0].ID
				intent.UpdatedAt = now
				if intent, err = svc.repo.UpdateIntent(ctx, intent); err != nil {
					return SubmissionIntent{}, nil, pkgerrors.Wrap(err, "finalizing submission intent")
				}
				return intent, &subs[0], nil
			}
			// resuming: files of the interrupted attempt are replaced
			svc.releaseIntent(ctx, intent)
			intent.FileIDs = nil
			intent.State = IntentPending
			return intent, nil, nil
		case !core.IsKind(err, core.KindNotFound):
			return SubmissionIntent{}, nil, pkgerrors.Wrap(err, "loading submission intent")
		}
	}

	id := nr.IntentID
	if id == "" {
		id = uuid.New().String()
	}
	intent, err := svc.repo.CreateIntent(ctx, SubmissionIntent{
		ID:        id,
		TaskID:    nr.TaskID,
		TeacherID: nr.TeacherID,
		State:     IntentPending,
		FileIDs:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return SubmissionIntent{}, nil, pkgerrors.Wrap(err, "creating submission intent")
	}
	return intent, nil, nil
}

// releaseIntent deletes the files uploaded so far and puts the intent back to pending so that
// the client may retry with the same intent id.
func (svc *Service) releaseIntent(ctx context.Context, intent SubmissionIntent) {
	if len(intent.FileIDs) == 0 {
		return
	}
	svc.deleteFiles(ctx, intent.FileIDs...)
	intent.FileIDs = []string{}
	intent.State = IntentPending
	intent.UpdatedAt = core.NowFunc()
	if _, err := svc.repo.UpdateIntent(ctx, intent); err != nil {
		svc.logger.Warn("releasing submission intent", pkgerrors.Wrap(err, intent.ID))
	}
}

// SweepResult counts what SweepAbandonedIntents did.
type SweepResult struct {
	Finalized    int `json:"finalized"`
	Abandoned    int `json:"abandoned"`
	FilesDeleted int `json:"files_deleted"`
}

// SweepAbandonedIntents cleans up submission attempts left open for longer than `olderThan`.
// An intent whose submission was stored is finalized; otherwise its files are deleted and it is abandoned.
func (svc *Service) SweepAbandonedIntents(ctx context.Context, olderThan time.Duration) (SweepResult, error) {
	var res SweepResult
	intents, err := svc.repo.QueryOpenIntents(ctx, core.NowFunc().Add(-olderThan))
	if err != nil {
		return res, pkgerrors.Wrap(err, "querying open intents")
	}

	for _, intent := range intents {
		subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{IntentID: intent.ID})
		if err != nil {
			return res, pkgerrors.Wrap(err, "loading intent submission")
		}
		if len(subs) > 0 {
			intent.State = IntentFinalized
			intent.SubmissionID = subs[0].ID
			res.Finalized++
		} else {
			res.FilesDeleted += svc.deleteFiles(ctx, intent.FileIDs...)
			intent.State = IntentAbandoned
			res.Abandoned++
		}
		intent.UpdatedAt = core.NowFunc()
		if _, err = svc.repo.UpdateIntent(ctx, intent); err != nil {
			return res, pkgerrors.Wrap(err, "updating intent")
		}
	}
	return res, nil
}

// ScoreSubmission grades the latest version of a submission and notifies its teacher.
func (svc *Service) ScoreSubmission(ctx context.Context, si ScoreInput) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, si.SubmissionID)
	if err != nil {
		return Submission{}, err
	}
	if !sub.IsLatest {
		return Submission{}, ErrStaleVersion
	}
	t, err := svc.repo.GetTaskByID(ctx, sub.TaskID)
	if err != nil {
		return Submission{}, err
	}
	if si.Score < 0 || si.Score > t.MaxScore {
		return Submission{}, core.NewValidationError(nil, core.FieldError{
			Field: "score", Error: fmt.Sprintf("score must be between 0 and %g", t.MaxScore),
		})
	}

	now := core.NowFunc()
	score := si.Score
	sub.Score = &score
	sub.Feedback = si.Feedback
	sub.ScoredBy = si.ScoredBy
	sub.ScoredByName = si.ScoredByName
	sub.ScoredAt = &now
	if sub, err = svc.repo.UpdateSubmission(ctx, sub); err != nil {
		return Submission{}, pkgerrors.Wrap(err, "scoring submission")
	}

	svc.notify(ctx, notification.Notification{
		UserID:  sub.TeacherID,
		Type:    notification.TypeSubmissionScored,
		Title:   "Báo cáo đã được chấm điểm",
		Message: fmt.Sprintf("Báo cáo của bạn cho nhiệm vụ \"%s\" đạt %g/%g điểm.", t.Title, score, t.MaxScore),
		RefID:   t.ID,
		Link:    notification.TaskLink(t.ID),
	})

	if err = svc.repo.SetTaskStatus(ctx, t.ID, StatusCompleted); err != nil {
		svc.logger.Error("setting task status", pkgerrors.Wrap(err, t.ID))
	}
	svc.UpdateTaskStatus(ctx, t.ID)
	return sub, nil
}

// RecomputeStatus derives the task status from its latest submissions and stores it when it changed.
func (svc *Service) RecomputeStatus(ctx context.Context, taskID string) (Status, error) {
	t, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return "", err
	}
	latest, err := svc.latestSubmissions(ctx, t)
	if err != nil {
		return "", err
	}

	status := DeriveStatus(t, latest, core.NowFunc())
	if status != t.Status {
		if err = svc.repo.SetTaskStatus(ctx, t.ID, status); err != nil {
			return "", pkgerrors.Wrap(err, "storing status")
		}
	}
	return status, nil
}

// UpdateTaskStatus is the best effort form of RecomputeStatus: failures are logged only.
func (svc *Service) UpdateTaskStatus(ctx context.Context, taskID string) {
	if _, err := svc.RecomputeStatus(ctx, taskID); err != nil {
		svc.logger.Error("updating task status", pkgerrors.Wrap(err, taskID))
	}
}

// GetSubmissions returns the latest submission of each assignee who submitted.
func (svc *Service) GetSubmissions(ctx context.Context, taskID string) ([]Submission, error) {
	t, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return svc.latestSubmissions(ctx, t)
}

// GetSubmissionHistory returns every version a teacher submitted for a task, newest first.
func (svc *Service) GetSubmissionHistory(ctx context.Context, taskID, teacherID string) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskID: taskID, TeacherID: teacherID})
}

func (svc *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

// GetTeacherView returns the tasks of `teacherID` with the teacher's own status projection.
func (svc *Service) GetTeacherView(ctx context.Context, teacherID string) ([]TeacherTask, error) {
	tasks, err := svc.GetForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{TeacherID: teacherID, LatestOnly: true})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading submissions")
	}
	byTask := make(map[string]Submission, len(subs))
	for _, s := range subs {
		byTask[s.TaskID] = s
	}

	now := core.NowFunc()
	res := make([]TeacherTask, 0, len(tasks))
	for _, t := range tasks {
		tt := TeacherTask{Task: t}
		if s, ok := byTask[t.ID]; ok {
			tt.Submission = &s
		}
		tt.TeacherStatus = TeacherStatus(t, tt.Submission, now)
		res = append(res, tt)
	}
	return res, nil
}

func (svc *Service) latestSubmissions(ctx context.Context, t Task) ([]Submission, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{TaskID: t.ID, LatestOnly: true})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading latest submissions")
	}
	// submissions of former assignees do not count
	latest := subs[:0]
	for _, s := range subs {
		if t.IsAssignee(s.TeacherID) {
			latest = append(latest, s)
		}
	}
	return latest, nil
}

// assigneeNames resolves the display names of `ids`, in order.
func (svc *Service) assigneeNames(ctx context.Context, ids []string) ([]string, error) {
	users, err := svc.users.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading assignees")
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		u, ok := byID[id]
		if !ok || !u.IsActive {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: "assigned_to", Error: fmt.Sprintf("unknown or inactive user: %s", id),
			})
		}
		names[i] = u.Name()
	}
	return names, nil
}

// upload sends `up` to the file store. Unclassified store failures are reported as upload failures.
func (svc *Service) upload(ctx context.Context, op string, up core.Upload, progress core.ProgressFunc) (core.StoredFile, error) {
	up.ContentType = core.ContentTypeOf(up.Name, up.ContentType)
	file, err := svc.files.Upload(ctx, up, progress)
	if err != nil {
		if core.KindOf(err) == core.KindUnknown {
			return core.StoredFile{}, core.E(core.KindUploadFailed, op, err)
		}
		return core.StoredFile{}, err
	}
	return file, nil
}

// deleteFiles removes stored files, logging failures. It returns the number of files removed.
func (svc *Service) deleteFiles(ctx context.Context, ids ...string) int {
	n := 0
	for _, id := range ids {
		if err := svc.files.Delete(ctx, id); err != nil && !core.IsKind(err, core.KindNotFound) {
			svc.logger.Warn("deleting stored file", pkgerrors.Wrap(err, id))
			continue
		}
		n++
	}
	return n
}

func (svc *Service) notify(ctx context.Context, ns ...notification.Notification) {
	if svc.notifier == nil || len(ns) == 0 {
		return
	}
	// failures are logged by the notifier
	_ = svc.notifier.Notify(ctx, ns...)
}
