package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core/analytics"
	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

const defaultSuggestions = 5

type analyticsApi struct {
	svc   *analytics.Service
	orgs  *org.Service
	tasks *task.Service
}

func registerAnalyticsAPI(g *echo.Group, deps ServerDeps) {
	api := analyticsApi{svc: deps.AnalyticsSvc, orgs: deps.OrgSvc, tasks: deps.TaskSvc}

	ag := g.Group("/analytics")
	ag.GET("/rankings", api.rankings)
	ag.GET("/me", api.myStats)
	ag.GET("/teachers", api.teacherStats, roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal, user.RoleDepartmentHead))
	ag.GET("/suggestions", api.suggestions, roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal))
	ag.GET("/tasks/:id", api.taskStatistics, taskViewerMiddleware(deps.TaskSvc))
}

func bindScope(ctx echo.Context) (analytics.Scope, error) {
	semester, err := intParam(ctx, "semester", 0)
	if err != nil {
		return analytics.Scope{}, err
	}
	return analytics.Scope{SchoolYearID: ctx.QueryParam("school_year_id"), Semester: semester}, nil
}

func (api *analyticsApi) rankings(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scope, err := bindScope(ctx)
	if err != nil {
		return err
	}

	entries, err := api.svc.Rankings(ctx.Request().Context(), scope, usr)
	if err != nil {
		return errors.Wrap(err, "computing rankings")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *analyticsApi) myStats(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scope, err := bindScope(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.StatsOf(ctx.Request().Context(), scope, usr)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// teacherStats lists per-teacher stats. Department heads only see their own department.
func (api *analyticsApi) teacherStats(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	scope, err := bindScope(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if !usr.IsElevated() {
		dep, ok, err := api.orgs.DepartmentOf(reqCtx, usr.ID)
		if err != nil {
			return errors.Wrap(err, "finding department")
		}
		if !ok || dep.HeadTeacherID != usr.ID {
			return errHttpForbidden
		}
		scope.TeacherIDs = dep.TeacherIDs
	}

	stats, err := api.svc.TeacherStats(reqCtx, scope)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *analyticsApi) suggestions(ctx echo.Context) error {
	scope, err := bindScope(ctx)
	if err != nil {
		return err
	}
	n, err := intParam(ctx, "n", defaultSuggestions)
	if err != nil {
		return err
	}

	res, err := api.svc.Suggest(ctx.Request().Context(), scope, n)
	if err != nil {
		return errors.Wrap(err, "suggesting teachers")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *analyticsApi) taskStatistics(ctx echo.Context) error {
	t, ok := ctx.Get("object").(task.Task)
	if !ok {
		return errors.Wrap(errTaskNotInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !isReviewer(t, usr) {
		return errHttpForbidden
	}

	stats, err := api.svc.TaskStatistics(ctx.Request().Context(), t.ID)
	if err != nil {
		return errors.Wrap(err, "computing task statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}
