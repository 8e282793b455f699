package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/identity"
)

var errNoPermsToSetRole = "not enough rights to set this role"

type userApi struct {
	conf     *core.Config
	svc      *user.Service
	verifier identity.Verifier
	validate *validator.Validate
}

func registerUserAPI(g, authed *echo.Group, deps ServerDeps) {
	api := userApi{
		conf:     deps.Conf,
		svc:      deps.UserSvc,
		verifier: deps.Verifier,
		validate: deps.Validate,
	}

	// un-authed endpoints
	g.POST("/auth/google", api.signIn)

	// authed endpoints
	authed.POST("/auth/token-refresh", api.refreshToken)

	ug := authed.Group("/users")
	ug.GET("/me", api.me)
	ug.PUT("/me", api.updateMe)
	ug.PUT("/me/push-token", api.setPushToken)
	ug.GET("/roles", api.queryRoles)
	ug.GET("", api.query, roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal, user.RoleDepartmentHead))

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrElevatedMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleMiddleware(user.RoleAdmin))

	wg := authed.Group("/whitelist", roleMiddleware(user.RoleAdmin))
	wg.GET("", api.queryWhitelist)
	wg.POST("", api.addToWhitelist)
	wg.DELETE("/:email", api.removeFromWhitelist)
}

// Handlers

func (api *userApi) signIn(ctx echo.Context) error {
	var data SignInRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignInRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	principal, err := api.verifier.Verify(reqCtx, data.IDToken)
	if err != nil {
		return err
	}
	usr, err := api.svc.SignIn(reqCtx, principal)
	if err != nil {
		return err
	}

	token, err := GenerateToken(api.conf, NewClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, SignInResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	// `IsActive` and `Role` can only be changed by admins, on the detail endpoint
	if data.IsAdminOnly() {
		return errHttpForbidden
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setPushToken(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data PushTokenRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PushTokenRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	if _, err = api.svc.SetPushToken(ctx.Request().Context(), usr, data.Token); err != nil {
		return errors.Wrap(err, "setting push token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	filter.Search = ctx.QueryParam("search")
	filter.Roles = ctx.QueryParams()["role"]
	isActive, err := boolParam(ctx, "is_active")
	if err != nil {
		return err
	}
	filter.IsActive = isActive
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot deactivate or demote themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID && data.IsAdminOnly() {
		return errHttpForbidden
	}
	// ctxUser cannot set a role above their own
	if data.Role != nil && user.RolePriority(*data.Role) > user.RolePriority(ctxUsr.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRole})
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) queryWhitelist(ctx echo.Context) error {
	entries, err := api.svc.QueryWhitelist(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying whitelist")
	}
	if entries == nil {
		entries = []user.WhitelistEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *userApi) addToWhitelist(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.WhitelistEntry
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WhitelistEntry")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	data.AddedBy = ctxUsr.ID
	data.CreatedAt = core.NowFunc()

	entry, err := api.svc.AddToWhitelist(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding to whitelist")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *userApi) removeFromWhitelist(ctx echo.Context) error {
	if err := api.svc.RemoveFromWhitelist(ctx.Request().Context(), ctx.Param("email")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ctxUserOrElevatedMiddleware loads the `:id` user as "object" for that user themselves and for
// admins, vice-principals and department heads. Others get a 404.
func ctxUserOrElevatedMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			id := ctx.Param("id")
			if id == ctxUsr.ID || ctxUsr.IsElevated() || ctxUsr.Role == user.RoleDepartmentHead {
				usr, err := svc.GetByID(ctx.Request().Context(), id)
				if err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if !core.IsKind(err, core.KindNotFound) {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	SignInRequest struct {
		IDToken string `json:"id_token" validate:"required"`
	}

	SignInResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	PushTokenRequest struct {
		Token string `json:"token" validate:"max=512"`
	}
)
