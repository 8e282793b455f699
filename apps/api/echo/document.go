package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/document"
	"github.com/trezcool/schooldesk/core/user"
)

type documentApi struct {
	svc      *document.Service
	validate *validator.Validate
}

func registerDocumentAPI(g *echo.Group, deps ServerDeps) {
	api := documentApi{svc: deps.DocumentSvc, validate: deps.Validate}
	admin := roleMiddleware(user.RoleAdmin)
	reviewers := roleMiddleware(user.RoleAdmin, user.RoleVicePrincipal)

	cg := g.Group("/document-categories")
	cg.GET("", api.queryCategories)
	cg.POST("", api.createCategory, admin)
	cg.PUT("/:id", api.updateCategory, admin)
	cg.DELETE("/:id", api.destroyCategory, admin)
	cg.GET("/:id/sub-categories", api.querySubCategories)

	sg := g.Group("/document-sub-categories")
	sg.GET("", api.querySubCategories)
	sg.POST("", api.createSubCategory, admin)
	sg.PUT("/:id", api.updateSubCategory, admin)
	sg.DELETE("/:id", api.destroySubCategory, admin)

	dg := g.Group("/documents")
	dg.GET("", api.query)
	dg.POST("", api.upload)
	dg.GET("/:id", api.retrieve)
	dg.POST("/:id/approve", api.approve, reviewers)
	dg.POST("/:id/reject", api.reject, reviewers)
	dg.POST("/:id/requests", api.request)

	rg := g.Group("/file-requests")
	rg.GET("", api.queryRequests)
	rg.POST("/:id/approve", api.approveRequest, reviewers)
	rg.POST("/:id/reject", api.rejectRequest, reviewers)
}

// Categories

func (api *documentApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []document.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *documentApi) createCategory(ctx echo.Context) error {
	var data document.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *documentApi) updateCategory(ctx echo.Context) error {
	var data document.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.UpdateCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *documentApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// querySubCategories serves both /document-categories/:id/sub-categories and /document-sub-categories?category_id.
func (api *documentApi) querySubCategories(ctx echo.Context) error {
	categoryID := ctx.Param("id")
	if categoryID == "" {
		categoryID = ctx.QueryParam("category_id")
	}
	subs, err := api.svc.QuerySubCategories(ctx.Request().Context(), categoryID)
	if err != nil {
		return errors.Wrap(err, "querying sub-categories")
	}
	if subs == nil {
		subs = []document.SubCategory{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *documentApi) createSubCategory(ctx echo.Context) error {
	var data document.NewSubCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating sub-category")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *documentApi) updateSubCategory(ctx echo.Context) error {
	var data document.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.UpdateSubCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating sub-category")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *documentApi) destroySubCategory(ctx echo.Context) error {
	if err := api.svc.DeleteSubCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting sub-category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Documents

func (api *documentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := document.QueryFilter{
		CategoryID:    ctx.QueryParam("category_id"),
		SubCategoryID: ctx.QueryParam("sub_category_id"),
		SchoolYearID:  ctx.QueryParam("school_year_id"),
		UploadedBy:    ctx.QueryParam("uploaded_by"),
		Search:        ctx.QueryParam("search"),
	}
	for _, s := range ctx.QueryParams()["status"] {
		filter.Status = append(filter.Status, document.Status(s))
	}

	docs, err := api.svc.Query(ctx.Request().Context(), filter, usr)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return ctx.JSON(http.StatusOK, docs)
}

// upload takes a multipart form: the document fields plus its `file`.
func (api *documentApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	data := document.NewDocument{
		Title:         ctx.FormValue("title"),
		Description:   ctx.FormValue("description"),
		CategoryID:    ctx.FormValue("category_id"),
		SubCategoryID: ctx.FormValue("sub_category_id"),
		SchoolYearID:  ctx.FormValue("school_year_id"),
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	uploads, closeUploads, err := bindUploads(ctx, "file")
	if err != nil {
		return err
	}
	defer closeUploads()
	if len(uploads) != 1 {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "exactly one file is required"})
	}
	data.File = uploads[0]

	doc, err := api.svc.Upload(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *documentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	doc, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), usr)
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *documentApi) bindReview(ctx echo.Context) (document.Review, error) {
	var rv document.Review
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&rv); err != nil {
			return rv, errors.Wrap(err, "binding to Review")
		}
	}
	if err := rv.Validate(api.validate); err != nil {
		return rv, err
	}
	return rv, nil
}

func (api *documentApi) approve(ctx echo.Context) error {
	return api.reviewDocument(ctx, api.svc.Approve)
}

func (api *documentApi) reject(ctx echo.Context) error {
	return api.reviewDocument(ctx, api.svc.Reject)
}

func (api *documentApi) reviewDocument(
	ctx echo.Context,
	decide func(ctx context.Context, id string, reviewer user.User, rv document.Review) (document.Document, error),
) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rv, err := api.bindReview(ctx)
	if err != nil {
		return err
	}

	doc, err := decide(ctx.Request().Context(), ctx.Param("id"), usr, rv)
	if err != nil {
		return errors.Wrap(err, "reviewing document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

// File requests

func (api *documentApi) request(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data document.NewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Request(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "filing request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

// queryRequests lists every request for reviewers, and the caller's own requests for everyone else.
func (api *documentApi) queryRequests(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := document.RequestFilter{
		DocumentID: ctx.QueryParam("document_id"),
		Status:     document.Status(ctx.QueryParam("status")),
	}
	if !usr.IsElevated() {
		filter.RequestedBy = usr.ID
	}

	reqs, err := api.svc.QueryRequests(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying requests")
	}
	if reqs == nil {
		reqs = []document.FileRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *documentApi) approveRequest(ctx echo.Context) error {
	return api.reviewRequest(ctx, api.svc.ApproveRequest)
}

func (api *documentApi) rejectRequest(ctx echo.Context) error {
	return api.reviewRequest(ctx, api.svc.RejectRequest)
}

func (api *documentApi) reviewRequest(
	ctx echo.Context,
	decide func(ctx context.Context, id string, reviewer user.User, rv document.Review) (document.FileRequest, error),
) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rv, err := api.bindReview(ctx)
	if err != nil {
		return err
	}

	req, err := decide(ctx.Request().Context(), ctx.Param("id"), usr, rv)
	if err != nil {
		return errors.Wrap(err, "reviewing request")
	}
	return ctx.JSON(http.StatusOK, req)
}
