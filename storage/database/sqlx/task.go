package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
)

const (
	taskColumns = `id, school_year_id, semester, title, description, description_file_id, description_file_url,
		description_file_name, priority, status, max_score, score_deadline1, score_deadline2, deadline, deadline2,
		created_by, created_by_name, assigned_to, assigned_to_names, created_at, updated_at`
	submissionColumns = `id, task_id, teacher_id, teacher_name, content, file_ids, file_urls, file_names, submitted_at,
		met_deadline, auto_score, score, scored_by, scored_by_name, scored_at, feedback, version, previous_version_id,
		is_latest, content_change, intent_id`
	intentColumns = `id, task_id, teacher_id, state, file_ids, submission_id, created_at, updated_at`
)

type taskRow struct {
	ID                  string         `db:"id"`
	SchoolYearID        string         `db:"school_year_id"`
	Semester            int            `db:"semester"`
	Title               string         `db:"title"`
	Description         string         `db:"description"`
	DescriptionFileID   string         `db:"description_file_id"`
	DescriptionFileURL  string         `db:"description_file_url"`
	DescriptionFileName string         `db:"description_file_name"`
	Priority            string         `db:"priority"`
	Status              string         `db:"status"`
	MaxScore            float64        `db:"max_score"`
	ScoreDeadline1      null.Float64   `db:"score_deadline1"`
	ScoreDeadline2      null.Float64   `db:"score_deadline2"`
	Deadline            time.Time      `db:"deadline"`
	Deadline2           null.Time      `db:"deadline2"`
	CreatedBy           string         `db:"created_by"`
	CreatedByName       string         `db:"created_by_name"`
	AssignedTo          pq.StringArray `db:"assigned_to"`
	AssignedToNames     pq.StringArray `db:"assigned_to_names"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func newTaskRow(t task.Task) taskRow {
	row := taskRow{
		ID:                  t.ID,
		SchoolYearID:        t.SchoolYearID,
		Semester:            t.Semester,
		Title:               t.Title,
		Description:         t.Description,
		DescriptionFileID:   t.DescriptionFileID,
		DescriptionFileURL:  t.DescriptionFileURL,
		DescriptionFileName: t.DescriptionFileName,
		Priority:            string(t.Priority),
		Status:              string(t.Status),
		MaxScore:            t.MaxScore,
		ScoreDeadline1:      null.Float64FromPtr(t.ScoreDeadline1),
		ScoreDeadline2:      null.Float64FromPtr(t.ScoreDeadline2),
		Deadline:            t.Deadline.UTC(),
		CreatedBy:           t.CreatedBy,
		CreatedByName:       t.CreatedByName,
		AssignedTo:          stringArray(t.AssignedTo),
		AssignedToNames:     stringArray(t.AssignedToNames),
		CreatedAt:           t.CreatedAt.UTC(),
		UpdatedAt:           t.UpdatedAt.UTC(),
	}
	if t.Deadline2 != nil {
		row.Deadline2 = null.TimeFrom(t.Deadline2.UTC())
	}
	return row
}

func (r taskRow) task() task.Task {
	t := task.Task{
		ID:                  r.ID,
		SchoolYearID:        r.SchoolYearID,
		Semester:            r.Semester,
		Title:               r.Title,
		Description:         r.Description,
		DescriptionFileID:   r.DescriptionFileID,
		DescriptionFileURL:  r.DescriptionFileURL,
		DescriptionFileName: r.DescriptionFileName,
		Priority:            task.Priority(r.Priority),
		Status:              task.Status(r.Status),
		MaxScore:            r.MaxScore,
		ScoreDeadline1:      r.ScoreDeadline1.Ptr(),
		ScoreDeadline2:      r.ScoreDeadline2.Ptr(),
		Deadline:            r.Deadline.UTC(),
		CreatedBy:           r.CreatedBy,
		CreatedByName:       r.CreatedByName,
		AssignedTo:          []string(r.AssignedTo),
		AssignedToNames:     []string(r.AssignedToNames),
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if r.Deadline2.Valid {
		d2 := r.Deadline2.Time.UTC()
		t.Deadline2 = &d2
	}
	return t
}

type submissionRow struct {
	ID                string         `db:"id"`
	TaskID            string         `db:"task_id"`
	TeacherID         string         `db:"teacher_id"`
	TeacherName       string         `db:"teacher_name"`
	Content           string         `db:"content"`
	FileIDs           pq.StringArray `db:"file_ids"`
	FileURLs          pq.StringArray `db:"file_urls"`
	FileNames         pq.StringArray `db:"file_names"`
	SubmittedAt       time.Time      `db:"submitted_at"`
	MetDeadline       null.Int       `db:"met_deadline"`
	AutoScore         float64        `db:"auto_score"`
	Score             null.Float64   `db:"score"`
	ScoredBy          string         `db:"scored_by"`
	ScoredByName      string         `db:"scored_by_name"`
	ScoredAt          null.Time      `db:"scored_at"`
	Feedback          string         `db:"feedback"`
	Version           int            `db:"version"`
	PreviousVersionID string         `db:"previous_version_id"`
	IsLatest          bool           `db:"is_latest"`
	ContentChange     float64        `db:"content_change"`
	IntentID          string         `db:"intent_id"`
}

func newSubmissionRow(s task.Submission) submissionRow {
	return submissionRow{
		ID:                s.ID,
		TaskID:            s.TaskID,
		TeacherID:         s.TeacherID,
		TeacherName:       s.TeacherName,
		Content:           s.Content,
		FileIDs:           stringArray(s.FileIDs),
		FileURLs:          stringArray(s.FileURLs),
		FileNames:         stringArray(s.FileNames),
		SubmittedAt:       s.SubmittedAt.UTC(),
		MetDeadline:       null.IntFromPtr(s.MetDeadline),
		AutoScore:         s.AutoScore,
		Score:             null.Float64FromPtr(s.Score),
		ScoredBy:          s.ScoredBy,
		ScoredByName:      s.ScoredByName,
		ScoredAt:          null.TimeFromPtr(s.ScoredAt),
		Feedback:          s.Feedback,
		Version:           s.Version,
		PreviousVersionID: s.PreviousVersionID,
		IsLatest:          s.IsLatest,
		ContentChange:     s.ContentChange,
		IntentID:          s.IntentID,
	}
}

func (r submissionRow) submission() task.Submission {
	s := task.Submission{
		ID:                r.ID,
		TaskID:            r.TaskID,
		TeacherID:         r.TeacherID,
		TeacherName:       r.TeacherName,
		Content:           r.Content,
		FileIDs:           []string(r.FileIDs),
		FileURLs:          []string(r.FileURLs),
		FileNames:         []string(r.FileNames),
		SubmittedAt:       r.SubmittedAt.UTC(),
		MetDeadline:       r.MetDeadline.Ptr(),
		AutoScore:         r.AutoScore,
		Score:             r.Score.Ptr(),
		ScoredBy:          r.ScoredBy,
		ScoredByName:      r.ScoredByName,
		Feedback:          r.Feedback,
		Version:           r.Version,
		PreviousVersionID: r.PreviousVersionID,
		IsLatest:          r.IsLatest,
		ContentChange:     r.ContentChange,
		IntentID:          r.IntentID,
	}
	if r.ScoredAt.Valid {
		at := r.ScoredAt.Time.UTC()
		s.ScoredAt = &at
	}
	return s
}

type intentRow struct {
	ID           string         `db:"id"`
	TaskID       string         `db:"task_id"`
	TeacherID    string         `db:"teacher_id"`
	State        string         `db:"state"`
	FileIDs      pq.StringArray `db:"file_ids"`
	SubmissionID string         `db:"submission_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newIntentRow(si task.SubmissionIntent) intentRow {
	return intentRow{
		ID:           si.ID,
		TaskID:       si.TaskID,
		TeacherID:    si.TeacherID,
		State:        string(si.State),
		FileIDs:      stringArray(si.FileIDs),
		SubmissionID: si.SubmissionID,
		CreatedAt:    si.CreatedAt.UTC(),
		UpdatedAt:    si.UpdatedAt.UTC(),
	}
}

func (r intentRow) intent() task.SubmissionIntent {
	return task.SubmissionIntent{
		ID:           r.ID,
		TaskID:       r.TaskID,
		TeacherID:    r.TeacherID,
		State:        task.IntentState(r.State),
		FileIDs:      []string(r.FileIDs),
		SubmissionID: r.SubmissionID,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

// Tasks

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	q := `INSERT INTO tasks (` + taskColumns + `) VALUES (:id, :school_year_id, :semester, :title, :description,
		:description_file_id, :description_file_url, :description_file_name, :priority, :status, :max_score,
		:score_deadline1, :score_deadline2, :deadline, :deadline2, :created_by, :created_by_name, :assigned_to,
		:assigned_to_names, :created_at, :updated_at)`
	row := newTaskRow(t)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return row.task(), nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	var row taskRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id); err != nil {
		return task.Task{}, trapNoRowsErr(err, task.ErrNotFound, "selecting task")
	}
	return row.task(), nil
}

var taskOrderings = map[string]string{
	"deadline":   "deadline",
	"created_at": "created_at",
	"title":      "LOWER(title)",
	"priority":   "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 END",
}

func (repo *taskRepository) QueryTasks(ctx context.Context, filter task.QueryFilter, ordering []core.DBOrdering) ([]task.Task, error) {
	var c conds
	if filter.SchoolYearID != "" {
		c.add("school_year_id = ?", filter.SchoolYearID)
	}
	if filter.Semester != 0 {
		c.add("semester = ?", filter.Semester)
	}
	if filter.Priority != "" {
		c.add("priority = ?", string(filter.Priority))
	}
	if filter.CreatedBy != "" {
		c.add("created_by = ?", filter.CreatedBy)
	}
	if filter.AssignedTo != "" {
		c.add("? = ANY(assigned_to)", filter.AssignedTo)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		c.add("status = ANY(?)", pq.StringArray(statuses))
	}

	var rows []taskRow
	suffix := orderBy(ordering, taskOrderings, "created_at DESC")
	if err := selectWhere(ctx, repo.db, &rows, `SELECT `+taskColumns+` FROM tasks`, c, suffix); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

// UpdateTask leaves the status alone, it is owned by SetTaskStatus.
func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	q := `UPDATE tasks SET school_year_id = :school_year_id, semester = :semester, title = :title,
		description = :description, description_file_id = :description_file_id,
		description_file_url = :description_file_url, description_file_name = :description_file_name,
		priority = :priority, max_score = :max_score, score_deadline1 = :score_deadline1,
		score_deadline2 = :score_deadline2, deadline = :deadline, deadline2 = :deadline2,
		assigned_to = :assigned_to, assigned_to_names = :assigned_to_names, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, newTaskRow(t))
	if err = mustAffect(res, err, task.ErrNotFound, "updating task"); err != nil {
		return task.Task{}, err
	}
	return repo.GetTaskByID(ctx, t.ID)
}

func (repo *taskRepository) SetTaskStatus(ctx context.Context, id string, status task.Status) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), core.NowFunc().UTC())
	return mustAffect(res, err, task.ErrNotFound, "updating task status")
}

// DeleteTask relies on ON DELETE CASCADE for submissions and intents.
func (repo *taskRepository) DeleteTask(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return mustAffect(res, err, task.ErrNotFound, "deleting task")
}

// Submissions

func (repo *taskRepository) GetSubmissionByID(ctx context.Context, id string) (task.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id); err != nil {
		return task.Submission{}, trapNoRowsErr(err, task.ErrSubmissionNotFound, "selecting submission")
	}
	return row.submission(), nil
}

func (repo *taskRepository) QuerySubmissions(ctx context.Context, filter task.SubmissionFilter) ([]task.Submission, error) {
	var c conds
	if filter.TaskID != "" {
		c.add("task_id = ?", filter.TaskID)
	}
	if filter.TeacherID != "" {
		c.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.IntentID != "" {
		c.add("intent_id = ?", filter.IntentID)
	}
	if filter.LatestOnly {
		c.add("is_latest")
	}

	var rows []submissionRow
	suffix := " ORDER BY version DESC, submitted_at DESC"
	if err := selectWhere(ctx, repo.db, &rows, `SELECT `+submissionColumns+` FROM submissions`, c, suffix); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]task.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

// SaveSubmissionVersion locks the current latest version, checks it is the one `sub` follows,
// then swaps the latest flag and inserts `sub`.
func (repo *taskRepository) SaveSubmissionVersion(ctx context.Context, sub task.Submission) (task.Submission, error) {
	sub.IsLatest = true
	row := newSubmissionRow(sub)

	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var currentID string
		q := `SELECT id FROM submissions WHERE task_id = $1 AND teacher_id = $2 AND is_latest FOR UPDATE`
		err := tx.GetContext(ctx, &currentID, q, sub.TaskID, sub.TeacherID)
		switch {
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return errors.Wrap(err, "locking latest submission")
		case currentID != sub.PreviousVersionID:
			return task.ErrVersionConflict
		case currentID != "":
			if _, err = tx.ExecContext(ctx, `UPDATE submissions SET is_latest = FALSE WHERE id = $1`, currentID); err != nil {
				return errors.Wrap(err, "unflagging previous version")
			}
		}

		q = `INSERT INTO submissions (` + submissionColumns + `) VALUES (:id, :task_id, :teacher_id, :teacher_name,
			:content, :file_ids, :file_urls, :file_names, :submitted_at, :met_deadline, :auto_score, :score, :scored_by,
			:scored_by_name, :scored_at, :feedback, :version, :previous_version_id, :is_latest, :content_change,
			:intent_id)`
		if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
			if isUniqueViolation(err) {
				return task.ErrVersionConflict
			}
			return errors.Wrap(err, "inserting submission")
		}
		return nil
	})
	if err != nil {
		return task.Submission{}, err
	}
	return row.submission(), nil
}

func (repo *taskRepository) UpdateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	q := `UPDATE submissions SET teacher_name = :teacher_name, content = :content, file_ids = :file_ids,
		file_urls = :file_urls, file_names = :file_names, met_deadline = :met_deadline, auto_score = :auto_score,
		score = :score, scored_by = :scored_by, scored_by_name = :scored_by_name, scored_at = :scored_at,
		feedback = :feedback, content_change = :content_change
		WHERE id = :id`
	row := newSubmissionRow(sub)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err = mustAffect(res, err, task.ErrSubmissionNotFound, "updating submission"); err != nil {
		return task.Submission{}, err
	}
	return row.submission(), nil
}

// Intents

func (repo *taskRepository) CreateIntent(ctx context.Context, si task.SubmissionIntent) (task.SubmissionIntent, error) {
	q := `INSERT INTO submission_intents (` + intentColumns + `)
		VALUES (:id, :task_id, :teacher_id, :state, :file_ids, :submission_id, :created_at, :updated_at)`
	row := newIntentRow(si)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return task.SubmissionIntent{}, core.NewValidationError(nil, core.FieldError{Field: "intent_id", Error: "intent already exists"})
		}
		return task.SubmissionIntent{}, errors.Wrap(err, "inserting intent")
	}
	return row.intent(), nil
}

func (repo *taskRepository) GetIntent(ctx context.Context, id string) (task.SubmissionIntent, error) {
	var row intentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+intentColumns+` FROM submission_intents WHERE id = $1`, id); err != nil {
		return task.SubmissionIntent{}, trapNoRowsErr(err, task.ErrIntentNotFound, "selecting intent")
	}
	return row.intent(), nil
}

func (repo *taskRepository) UpdateIntent(ctx context.Context, si task.SubmissionIntent) (task.SubmissionIntent, error) {
	q := `UPDATE submission_intents SET state = :state, file_ids = :file_ids, submission_id = :submission_id,
		updated_at = :updated_at WHERE id = :id`
	row := newIntentRow(si)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err = mustAffect(res, err, task.ErrIntentNotFound, "updating intent"); err != nil {
		return task.SubmissionIntent{}, err
	}
	return row.intent(), nil
}

func (repo *taskRepository) QueryOpenIntents(ctx context.Context, before time.Time) ([]task.SubmissionIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM submission_intents
		WHERE state IN ('pending', 'uploaded') AND updated_at < $1 ORDER BY created_at`
	var rows []intentRow
	if err := repo.db.SelectContext(ctx, &rows, q, before.UTC()); err != nil {
		return nil, errors.Wrap(err, "selecting open intents")
	}
	intents := make([]task.SubmissionIntent, 0, len(rows))
	for _, r := range rows {
		intents = append(intents, r.intent())
	}
	return intents, nil
}
