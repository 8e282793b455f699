package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// Task is a unit of work assigned by a vice-principal to teachers.
// AssignedTo and AssignedToNames are parallel.
type Task struct {
	ID                  string     `json:"id"`
	SchoolYearID        string     `json:"school_year_id"`
	Semester            int        `json:"semester"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	DescriptionFileID   string     `json:"description_file_id,omitempty"`
	DescriptionFileURL  string     `json:"description_file_url,omitempty"`
	DescriptionFileName string     `json:"description_file_name,omitempty"`
	Priority            Priority   `json:"priority"`
	Status              Status     `json:"status"`
	MaxScore            float64    `json:"max_score"`
	ScoreDeadline1      *float64   `json:"score_deadline1,omitempty"`
	ScoreDeadline2      *float64   `json:"score_deadline2,omitempty"`
	Deadline            time.Time  `json:"deadline"`
	Deadline2           *time.Time `json:"deadline2,omitempty"`
	CreatedBy           string     `json:"created_by"`
	CreatedByName       string     `json:"created_by_name"`
	AssignedTo          []string   `json:"assigned_to"`
	AssignedToNames     []string   `json:"assigned_to_names"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (t Task) IsAssignee(uid string) bool {
	return core.ContainsString(t.AssignedTo, uid)
}

// CanView reports whether `usr` may read the task and its submissions.
func (t Task) CanView(usr user.User) bool {
	return usr.IsElevated() || usr.Role == user.RoleDepartmentHead || t.CreatedBy == usr.ID || t.IsAssignee(usr.ID)
}

// CanManage reports whether `usr` may edit or delete the task.
func (t Task) CanManage(usr user.User) bool {
	return usr.IsAdmin() || t.CreatedBy == usr.ID
}

// AssigneeName returns the display name recorded for `uid` at assignment time.
func (t Task) AssigneeName(uid string) string {
	for i, id := range t.AssignedTo {
		if id == uid && i < len(t.AssignedToNames) {
			return t.AssignedToNames[i]
		}
	}
	return ""
}

// Submission is a teacher's attempt at a task.
// For a (TaskID, TeacherID) pair exactly one submission IsLatest.
type Submission struct {
	ID                string     `json:"id"`
	TaskID            string     `json:"task_id"`
	TeacherID         string     `json:"teacher_id"`
	TeacherName       string     `json:"teacher_name"`
	Content           string     `json:"content"`
	FileIDs           []string   `json:"file_ids"`
	FileURLs          []string   `json:"file_urls"`
	FileNames         []string   `json:"file_names"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	MetDeadline       *int       `json:"met_deadline,omitempty"`
	AutoScore         float64    `json:"auto_score"`
	Score             *float64   `json:"score,omitempty"`
	ScoredBy          string     `json:"scored_by,omitempty"`
	ScoredByName      string     `json:"scored_by_name,omitempty"`
	ScoredAt          *time.Time `json:"scored_at,omitempty"`
	Feedback          string     `json:"feedback,omitempty"`
	Version           int        `json:"version"`
	PreviousVersionID string     `json:"previous_version_id,omitempty"`
	IsLatest          bool       `json:"is_latest"`
	ContentChange     float64    `json:"content_change"`
	IntentID          string     `json:"intent_id,omitempty"`
}

func (s Submission) IsGraded() bool { return s.Score != nil }

// EffectiveScore is the reviewer's grade, or the provisional deadline score until graded.
func (s Submission) EffectiveScore() float64 {
	if s.Score != nil {
		return *s.Score
	}
	return s.AutoScore
}

type IntentState string

const (
	IntentPending   IntentState = "pending"
	IntentUploaded  IntentState = "uploaded"
	IntentFinalized IntentState = "finalized"
	IntentAbandoned IntentState = "abandoned"
)

// SubmissionIntent records an in-flight report submission so that abandoned uploads can be cleaned up.
type SubmissionIntent struct {
	ID           string      `json:"id"`
	TaskID       string      `json:"task_id"`
	TeacherID    string      `json:"teacher_id"`
	State        IntentState `json:"state"`
	FileIDs      []string    `json:"file_ids"`
	SubmissionID string      `json:"submission_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (si SubmissionIntent) IsOpen() bool {
	return si.State == IntentPending || si.State == IntentUploaded
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	SchoolYearID    string     `json:"school_year_id" validate:"required"`
	Semester        int        `json:"semester" validate:"required,oneof=1 2"`
	Title           string     `json:"title" validate:"required,notblank,max=200"`
	Description     string     `json:"description"`
	Priority        Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	MaxScore        float64    `json:"max_score" validate:"required,gt=0"`
	ScoreDeadline1  *float64   `json:"score_deadline1" validate:"omitempty,gte=0"`
	ScoreDeadline2  *float64   `json:"score_deadline2" validate:"omitempty,gte=0"`
	Deadline        time.Time  `json:"deadline" validate:"required"`
	Deadline2       *time.Time `json:"deadline2"`
	AssignedTo      []string   `json:"assigned_to" validate:"required,min=1,unique,dive,required"`
	AssignedToNames []string   `json:"assigned_to_names"`

	DescriptionFile *core.Upload `json:"-"`
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	if nt.Priority == "" {
		nt.Priority = PriorityMedium
	}
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return checkTiers(nt.MaxScore, nt.ScoreDeadline1, nt.ScoreDeadline2, nt.Deadline, nt.Deadline2)
}

// UpdateTask defines what information may be provided to modify an existing Task.
type UpdateTask struct {
	Title          *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description    *string    `json:"description"`
	Priority       *Priority  `json:"priority" validate:"omitempty,oneof=low medium high"`
	MaxScore       *float64   `json:"max_score" validate:"omitempty,gt=0"`
	ScoreDeadline1 *float64   `json:"score_deadline1" validate:"omitempty,gte=0"`
	ScoreDeadline2 *float64   `json:"score_deadline2" validate:"omitempty,gte=0"`
	Deadline       *time.Time `json:"deadline"`
	Deadline2      *time.Time `json:"deadline2"`
	ClearDeadline2 bool       `json:"clear_deadline2"`
	AssignedTo     []string   `json:"assigned_to" validate:"omitempty,min=1,unique,dive,required"`
}

func (ut *UpdateTask) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		title := core.CleanString(*ut.Title)
		ut.Title = &title
	}
	return validate.Struct(ut)
}

// apply returns a copy of `t` with the update applied; cross-field rules are checked on the result.
func (ut UpdateTask) apply(t Task) (Task, error) {
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = core.CleanString(*ut.Description)
	}
	if ut.Priority != nil {
		t.Priority = *ut.Priority
	}
	if ut.MaxScore != nil {
		t.MaxScore = *ut.MaxScore
	}
	if ut.ScoreDeadline1 != nil {
		t.ScoreDeadline1 = ut.ScoreDeadline1
	}
	if ut.ScoreDeadline2 != nil {
		t.ScoreDeadline2 = ut.ScoreDeadline2
	}
	if ut.Deadline != nil {
		t.Deadline = ut.Deadline.UTC()
	}
	if ut.ClearDeadline2 {
		t.Deadline2 = nil
		t.ScoreDeadline2 = nil
	} else if ut.Deadline2 != nil {
		d2 := ut.Deadline2.UTC()
		t.Deadline2 = &d2
	}
	if err := checkTiers(t.MaxScore, t.ScoreDeadline1, t.ScoreDeadline2, t.Deadline, t.Deadline2); err != nil {
		return Task{}, err
	}
	return t, nil
}

// checkTiers enforces 0 <= tier2 <= tier1 <= maxScore and deadline < deadline2.
func checkTiers(maxScore float64, s1, s2 *float64, d1 time.Time, d2 *time.Time) error {
	var flds []core.FieldError
	if s1 != nil && *s1 > maxScore {
		flds = append(flds, core.FieldError{Field: "score_deadline1", Error: "score_deadline1 cannot exceed max_score"})
	}
	if s2 != nil {
		if *s2 > maxScore {
			flds = append(flds, core.FieldError{Field: "score_deadline2", Error: "score_deadline2 cannot exceed max_score"})
		} else if s1 != nil && *s2 > *s1 {
			flds = append(flds, core.FieldError{Field: "score_deadline2", Error: "score_deadline2 cannot exceed score_deadline1"})
		}
	}
	if d2 != nil && !d2.After(d1) {
		flds = append(flds, core.FieldError{Field: "deadline2", Error: "deadline2 must be after deadline"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// NewReport is a teacher's report submission.
type NewReport struct {
	TaskID      string        `json:"task_id" validate:"required"`
	TeacherID   string        `json:"-"`
	TeacherName string        `json:"-"`
	Content     string        `json:"content" form:"content" validate:"max=20000"`
	IntentID    string        `json:"intent_id" form:"intent_id" validate:"omitempty,uuid"`
	Files       []core.Upload `json:"-"`
}

func (nr *NewReport) Validate(validate *validator.Validate) error {
	nr.Content = core.CleanString(nr.Content)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	if nr.Content == "" && len(nr.Files) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "content", Error: "a report needs content or at least one file"})
	}
	return nil
}

// ScoreInput is a reviewer's grade for a submission.
type ScoreInput struct {
	SubmissionID string  `json:"-"`
	Score        float64 `json:"score" validate:"gte=0"`
	Feedback     string  `json:"feedback" validate:"max=5000"`
	ScoredBy     string  `json:"-"`
	ScoredByName string  `json:"-"`
}

func (si *ScoreInput) Validate(validate *validator.Validate) error {
	si.Feedback = core.CleanString(si.Feedback)
	return validate.Struct(si)
}

type QueryFilter struct {
	SchoolYearID string   `query:"school_year_id"`
	Semester     int      `query:"semester"`
	Status       []Status `query:"status"`
	Priority     Priority `query:"priority"`
	CreatedBy    string   `query:"-"`
	AssignedTo   string   `query:"-"`
}

// Match reports whether `t` passes the filter.
func (qf QueryFilter) Match(t Task) bool {
	if qf.SchoolYearID != "" && t.SchoolYearID != qf.SchoolYearID {
		return false
	}
	if qf.Semester != 0 && t.Semester != qf.Semester {
		return false
	}
	if qf.Priority != "" && t.Priority != qf.Priority {
		return false
	}
	if qf.CreatedBy != "" && t.CreatedBy != qf.CreatedBy {
		return false
	}
	if qf.AssignedTo != "" && !t.IsAssignee(qf.AssignedTo) {
		return false
	}
	if len(qf.Status) > 0 {
		found := false
		for _, s := range qf.Status {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SubmissionFilter selects submissions; empty fields match everything.
type SubmissionFilter struct {
	TaskID     string
	TeacherID  string
	IntentID   string
	LatestOnly bool
}

// TeacherTask is a task as seen by one of its assignees.
type TeacherTask struct {
	Task
	TeacherStatus Status      `json:"teacher_status"`
	Submission    *Submission `json:"submission,omitempty"`
}
