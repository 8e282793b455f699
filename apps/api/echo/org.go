package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/user"
)

type orgApi struct {
	svc      *org.Service
	validate *validator.Validate
}

func registerOrgAPI(g *echo.Group, deps ServerDeps) {
	api := orgApi{svc: deps.OrgSvc, validate: deps.Validate}
	managers := roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal)

	dg := g.Group("/departments")
	dg.GET("", api.queryDepartments)
	dg.POST("", api.createDepartment, managers)
	dg.GET("/:id", api.retrieveDepartment)
	dg.PUT("/:id", api.updateDepartment, managers)
	dg.DELETE("/:id", api.deleteDepartment, managers)

	yg := g.Group("/school-years")
	yg.GET("", api.querySchoolYears)
	yg.GET("/active", api.activeSchoolYear)
	yg.POST("", api.createSchoolYear, roleMiddleware(user.RoleAdmin))
	yg.POST("/:id/activate", api.activateSchoolYear, roleMiddleware(user.RoleAdmin))
}

func (api *orgApi) queryDepartments(ctx echo.Context) error {
	deps, err := api.svc.QueryDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if deps == nil {
		deps = []org.Department{}
	}
	return ctx.JSON(http.StatusOK, deps)
}

func (api *orgApi) createDepartment(ctx echo.Context) error {
	var data org.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dep, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dep)
}

func (api *orgApi) retrieveDepartment(ctx echo.Context) error {
	dep, err := api.svc.GetDepartment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dep)
}

func (api *orgApi) updateDepartment(ctx echo.Context) error {
	var data org.UpdateDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	dep, err := api.svc.UpdateDepartment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, dep)
}

func (api *orgApi) deleteDepartment(ctx echo.Context) error {
	if err := api.svc.DeleteDepartment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *orgApi) querySchoolYears(ctx echo.Context) error {
	years, err := api.svc.QuerySchoolYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying school years")
	}
	if years == nil {
		years = []org.SchoolYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *orgApi) activeSchoolYear(ctx echo.Context) error {
	sy, err := api.svc.ActiveSchoolYear(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sy)
}

func (api *orgApi) createSchoolYear(ctx echo.Context) error {
	var data org.NewSchoolYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolYear")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sy, err := api.svc.CreateSchoolYear(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school year")
	}
	return ctx.JSON(http.StatusCreated, sy)
}

func (api *orgApi) activateSchoolYear(ctx echo.Context) error {
	sy, err := api.svc.ActivateSchoolYear(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating school year")
	}
	return ctx.JSON(http.StatusOK, sy)
}
