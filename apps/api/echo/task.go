package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

var errTaskNotInCtx = errors.New("task object not found in echo.Context")

type taskApi struct {
	svc      *task.Service
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, deps ServerDeps) {
	api := taskApi{svc: deps.TaskSvc, validate: deps.Validate}
	managers := roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal)

	tg := g.Group("/tasks")
	tg.GET("", api.query, roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal, user.RoleDepartmentHead))
	tg.POST("", api.create, managers)
	tg.GET("/mine", api.mine)
	tg.GET("/created", api.created, managers)

	// detail endpoints
	dg := tg.Group("/:id", taskViewerMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, managers)
	dg.DELETE("", api.destroy, managers)
	dg.POST("/refresh-status", api.refreshStatus, managers)
	dg.GET("/submissions", api.querySubmissions)
	dg.POST("/submissions", api.submit)
	dg.GET("/submissions/history", api.submissionHistory)

	sg := g.Group("/submissions")
	sg.GET("/:id", api.retrieveSubmission)
	sg.PUT("/:id/score", api.score, managers)
}

// isReviewer reports whether `usr` sees every assignee's work on `t`.
func isReviewer(t task.Task, usr user.User) bool {
	return usr.IsElevated() || usr.Role == user.RoleDepartmentHead || t.CreatedBy == usr.ID
}

func (api *taskApi) query(ctx echo.Context) error {
	filter := task.QueryFilter{
		SchoolYearID: ctx.QueryParam("school_year_id"),
		Priority:     task.Priority(ctx.QueryParam("priority")),
	}
	semester, err := intParam(ctx, "semester", 0)
	if err != nil {
		return err
	}
	filter.Semester = semester
	for _, s := range ctx.QueryParams()["status"] {
		filter.Status = append(filter.Status, task.Status(s))
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	tasks, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

// create accepts either a JSON body, or a multipart form holding the JSON under `data`
// and an optional `description_file`.
func (api *taskApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data task.NewTask
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err = json.Unmarshal([]byte(ctx.FormValue("data")), &data); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "data", Error: "invalid task data"})
		}
		uploads, closeUploads, err := bindUploads(ctx, "description_file")
		if err != nil {
			return err
		}
		defer closeUploads()
		if len(uploads) > 0 {
			data.DescriptionFile = &uploads[0]
		}
	} else if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tasks, err := api.svc.GetTeacherView(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "loading teacher tasks")
	}
	if tasks == nil {
		tasks = []task.TeacherTask{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) created(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tasks, err := api.svc.GetByCreator(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "loading created tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data task.UpdateTask
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), usr); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) refreshStatus(ctx echo.Context) error {
	status, err := api.svc.RecomputeStatus(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "recomputing status")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": status})
}

// querySubmissions returns the latest submission of every assignee to reviewers,
// and the caller's own latest submission to assignees.
func (api *taskApi) querySubmissions(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.GetSubmissions(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "loading submissions")
	}
	if !isReviewer(t, usr) {
		own := make([]task.Submission, 0, 1)
		for _, s := range subs {
			if s.TeacherID == usr.ID {
				own = append(own, s)
			}
		}
		subs = own
	}
	if subs == nil {
		subs = []task.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *taskApi) submissionHistory(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	teacherID := ctx.QueryParam("teacher_id")
	if teacherID == "" {
		teacherID = usr.ID
	}
	if teacherID != usr.ID && !isReviewer(t, usr) {
		return errHttpForbidden
	}

	subs, err := api.svc.GetSubmissionHistory(ctx.Request().Context(), t.ID, teacherID)
	if err != nil {
		return errors.Wrap(err, "loading submission history")
	}
	if subs == nil {
		subs = []task.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

// submit takes a multipart form: `content`, optional `intent_id` and `files`.
func (api *taskApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	uploads, closeUploads, err := bindUploads(ctx, "files")
	if err != nil {
		return err
	}
	defer closeUploads()

	data := task.NewReport{
		TaskID:      ctx.Param("id"),
		TeacherID:   usr.ID,
		TeacherName: usr.Name(),
		Content:     ctx.FormValue("content"),
		IntentID:    ctx.FormValue("intent_id"),
		Files:       uploads,
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.SubmitReport(ctx.Request().Context(), data, nil)
	if err != nil {
		return errors.Wrap(err, "submitting report")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *taskApi) retrieveSubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	sub, err := api.svc.GetSubmission(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if sub.TeacherID != usr.ID {
		t, err := api.svc.GetByID(reqCtx, sub.TaskID)
		if err != nil {
			return err
		}
		if !isReviewer(t, usr) {
			return errHttpNotFound
		}
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *taskApi) score(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data task.ScoreInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	data.SubmissionID = ctx.Param("id")
	data.ScoredBy = usr.ID
	data.ScoredByName = usr.Name()

	sub, err := api.svc.ScoreSubmission(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "scoring submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// taskViewerMiddleware loads the `:id` task as "object" for users allowed to see it. Others get a 404.
func taskViewerMiddleware(svc *task.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			t, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return err
			}
			if !t.CanView(usr) {
				return errHttpNotFound
			}
			ctx.Set("object", t)
			return next(ctx)
		}
	}
}
