package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/user"
)

const (
	documentFolder  = "documents"
	thumbnailFolder = "documents/thumbnails"
)

var (
	// errors
	ErrNotFound            = core.E(core.KindNotFound, "", errors.New("document not found"))
	ErrCategoryNotFound    = core.E(core.KindNotFound, "", errors.New("category not found"))
	ErrSubCategoryNotFound = core.E(core.KindNotFound, "", errors.New("sub-category not found"))
	ErrRequestNotFound     = core.E(core.KindNotFound, "", errors.New("file request not found"))
	ErrNotUploader         = core.E(core.KindPermission, "", errors.New("only the uploader can request changes to a document"))

	errAlreadyReviewed = core.NewValidationError(nil, core.FieldError{
		Field: "status", Error: "this has already been reviewed",
	})
	errPendingRequest = core.NewValidationError(nil, core.FieldError{
		Field: "document_id", Error: "a request is already pending for this document",
	})
	errCategoryInUse = core.NewValidationError(nil, core.FieldError{
		Field: "category_id", Error: "the category still holds documents or sub-categories",
	})
	errSubCategoryInUse = core.NewValidationError(nil, core.FieldError{
		Field: "sub_category_id", Error: "the sub-category still holds documents",
	})
	errSubCategoryMismatch = core.NewValidationError(nil, core.FieldError{
		Field: "sub_category_id", Error: "the sub-category does not belong to the category",
	})
)

type (
	Repository interface {
		CreateCategory(ctx context.Context, c Category) (Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		QueryCategories(ctx context.Context) ([]Category, error)
		UpdateCategory(ctx context.Context, c Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		CreateSubCategory(ctx context.Context, sc SubCategory) (SubCategory, error)
		GetSubCategory(ctx context.Context, id string) (SubCategory, error)
		// QuerySubCategories returns the sub-categories of `categoryID`, or all of them when empty.
		QuerySubCategories(ctx context.Context, categoryID string) ([]SubCategory, error)
		UpdateSubCategory(ctx context.Context, sc SubCategory) (SubCategory, error)
		DeleteSubCategory(ctx context.Context, id string) error

		CreateDocument(ctx context.Context, d Document) (Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		// QueryDocuments applies AND operation on available QueryFilter fields, newest first.
		// QueryFilter.Search does a case-insensitive match on Document.Title.
		QueryDocuments(ctx context.Context, filter QueryFilter) ([]Document, error)
		UpdateDocument(ctx context.Context, d Document) (Document, error)
		// DeleteDocument removes the document. Its file requests are kept.
		DeleteDocument(ctx context.Context, id string) error

		CreateRequest(ctx context.Context, r FileRequest) (FileRequest, error)
		GetRequest(ctx context.Context, id string) (FileRequest, error)
		QueryRequests(ctx context.Context, filter RequestFilter) ([]FileRequest, error)
		UpdateRequest(ctx context.Context, r FileRequest) (FileRequest, error)
	}

	UserQuerier interface {
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Notifier interface {
		Notify(ctx context.Context, ns ...notification.Notification) error
	}

	// ThumbnailFunc renders a thumbnail of an image.
	ThumbnailFunc func(r io.Reader, mimeType string, size int) ([]byte, error)

	Options struct {
		Files         core.FileStore
		Policy        core.UploadPolicy
		Thumbnail     ThumbnailFunc
		ThumbnailSize int
	}

	Service struct {
		repo     Repository
		users    UserQuerier
		notifier Notifier
		logger   core.Logger
		opts     Options
	}
)

func NewService(repo Repository, users UserQuerier, notifier Notifier, logger core.Logger, opts Options) *Service {
	return &Service{repo: repo, users: users, notifier: notifier, logger: logger, opts: opts}
}

// Categories

func (svc *Service) CreateCategory(ctx context.Context, nc NewCategory) (Category, error) {
	now := core.NowFunc()
	return svc.repo.CreateCategory(ctx, Category{
		ID:          uuid.New().String(),
		Name:        nc.Name,
		Description: nc.Description,
		Order:       nc.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QueryCategories(ctx context.Context) ([]Category, error) {
	return svc.repo.QueryCategories(ctx)
}

func (svc *Service) UpdateCategory(ctx context.Context, id string, uc UpdateCategory) (Category, error) {
	c, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Order != nil {
		c.Order = *uc.Order
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCategory(ctx, c)
}

// DeleteCategory removes an empty category.
func (svc *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCategory(ctx, id); err != nil {
		return err
	}
	subs, err := svc.repo.QuerySubCategories(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(err, "querying sub-categories")
	}
	docs, err := svc.repo.QueryDocuments(ctx, QueryFilter{CategoryID: id})
	if err != nil {
		return pkgerrors.Wrap(err, "querying documents")
	}
	if len(subs) > 0 || len(docs) > 0 {
		return errCategoryInUse
	}
	return svc.repo.DeleteCategory(ctx, id)
}

func (svc *Service) CreateSubCategory(ctx context.Context, ns NewSubCategory) (SubCategory, error) {
	if _, err := svc.repo.GetCategory(ctx, ns.CategoryID); err != nil {
		return SubCategory{}, err
	}
	now := core.NowFunc()
	return svc.repo.CreateSubCategory(ctx, SubCategory{
		ID:          uuid.New().String(),
		CategoryID:  ns.CategoryID,
		Name:        ns.Name,
		Description: ns.Description,
		Order:       ns.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) QuerySubCategories(ctx context.Context, categoryID string) ([]SubCategory, error) {
	return svc.repo.QuerySubCategories(ctx, categoryID)
}

func (svc *Service) UpdateSubCategory(ctx context.Context, id string, uc UpdateCategory) (SubCategory, error) {
	sc, err := svc.repo.GetSubCategory(ctx, id)
	if err != nil {
		return SubCategory{}, err
	}
	if uc.Name != nil {
		sc.Name = *uc.Name
	}
	if uc.Description != nil {
		sc.Description = core.CleanString(*uc.Description)
	}
	if uc.Order != nil {
		sc.Order = *uc.Order
	}
	sc.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateSubCategory(ctx, sc)
}

func (svc *Service) DeleteSubCategory(ctx context.Context, id string) error {
	if _, err := svc.repo.GetSubCategory(ctx, id); err != nil {
		return err
	}
	docs, err := svc.repo.QueryDocuments(ctx, QueryFilter{SubCategoryID: id})
	if err != nil {
		return pkgerrors.Wrap(err, "querying documents")
	}
	if len(docs) > 0 {
		return errSubCategoryInUse
	}
	return svc.repo.DeleteSubCategory(ctx, id)
}

// Documents

// Upload stores a new document. Images also get a WebP thumbnail.
// Documents uploaded by reviewers are approved right away; the others wait for review.
func (svc *Service) Upload(ctx context.Context, nd NewDocument, uploader user.User) (Document, error) {
	const op = "document.Upload"

	if _, err := svc.repo.GetCategory(ctx, nd.CategoryID); err != nil {
		return Document{}, err
	}
	if nd.SubCategoryID != "" {
		sc, err := svc.repo.GetSubCategory(ctx, nd.SubCategoryID)
		if err != nil {
			return Document{}, err
		}
		if sc.CategoryID != nd.CategoryID {
			return Document{}, errSubCategoryMismatch
		}
	}

	up := nd.File
	if err := svc.opts.Policy.Check(op, up); err != nil {
		return Document{}, err
	}
	if err := svc.opts.Files.Health(ctx); err != nil {
		return Document{}, core.E(core.KindUploadFailed, op, err)
	}
	up.ContentType = core.ContentTypeOf(up.Name, up.ContentType)
	up.Folder = path.Join(documentFolder, nd.CategoryID)

	// images are buffered to be read twice
	var raw []byte
	if svc.opts.Thumbnail != nil && isImage(up.ContentType) && up.Content != nil {
		var err error
		if raw, err = io.ReadAll(up.Content); err != nil {
			return Document{}, core.E(core.KindUploadFailed, op, err)
		}
		up.Content = bytes.NewReader(raw)
	}

	file, err := svc.opts.Files.Upload(ctx, up, nil)
	if err != nil {
		if core.KindOf(err) == core.KindUnknown {
			err = core.E(core.KindUploadFailed, op, err)
		}
		return Document{}, err
	}

	now := core.NowFunc()
	doc := Document{
		ID:             uuid.New().String(),
		Title:          nd.Title,
		Description:    nd.Description,
		CategoryID:     nd.CategoryID,
		SubCategoryID:  nd.SubCategoryID,
		SchoolYearID:   nd.SchoolYearID,
		FileID:         file.ID,
		FileURL:        file.URL,
		FileName:       file.Name,
		FileSize:       file.Size,
		MimeType:       file.MimeType,
		UploadedBy:     uploader.ID,
		UploadedByName: uploader.Name(),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if raw != nil {
		if thumb, err := svc.thumbnail(ctx, raw, up); err != nil {
			svc.logger.Warn("making thumbnail", pkgerrors.Wrap(err, up.Name))
		} else {
			doc.ThumbnailID, doc.ThumbnailURL = thumb.ID, thumb.URL
		}
	}
	if uploader.IsElevated() {
		doc.Status = StatusApproved
		doc.ReviewedBy, doc.ReviewedByName, doc.ReviewedAt = uploader.ID, uploader.Name(), &now
	}

	stored := []string{doc.FileID}
	if doc.ThumbnailID != "" {
		stored = append(stored, doc.ThumbnailID)
	}
	if doc, err = svc.repo.CreateDocument(ctx, doc); err != nil {
		svc.deleteFiles(ctx, stored...)
		return Document{}, pkgerrors.Wrap(err, "creating document")
	}

	if doc.Status == StatusPending {
		svc.notifyReviewers(ctx, notification.Notification{
			Type:    notification.TypeDocumentPending,
			Title:   "Tài liệu chờ duyệt",
			Message: fmt.Sprintf("%s đã tải lên tài liệu \"%s\".", doc.UploadedByName, doc.Title),
			RefID:   doc.ID,
			Link:    notification.DocumentLink(doc.ID),
		})
	}
	return doc, nil
}

func (svc *Service) thumbnail(ctx context.Context, raw []byte, up core.Upload) (core.StoredFile, error) {
	data, err := svc.opts.Thumbnail(bytes.NewReader(raw), up.ContentType, svc.opts.ThumbnailSize)
	if err != nil {
		return core.StoredFile{}, err
	}
	name := strings.TrimSuffix(path.Base(up.Name), path.Ext(up.Name)) + ".webp"
	return svc.opts.Files.Upload(ctx, core.Upload{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: "image/webp",
		Folder:      thumbnailFolder,
		Content:     bytes.NewReader(data),
	}, nil)
}

// Get returns a document `viewer` may see.
func (svc *Service) Get(ctx context.Context, id string, viewer user.User) (Document, error) {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !doc.VisibleTo(viewer) {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Query returns the documents matching `filter` that `viewer` may see.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, viewer user.User) ([]Document, error) {
	filter.Clean()
	filter.VisibleTo = ""
	if !viewer.IsElevated() {
		filter.VisibleTo = viewer.ID
	}
	return svc.repo.QueryDocuments(ctx, filter)
}

func (svc *Service) Approve(ctx context.Context, id string, reviewer user.User, rv Review) (Document, error) {
	return svc.review(ctx, id, StatusApproved, reviewer, rv)
}

func (svc *Service) Reject(ctx context.Context, id string, reviewer user.User, rv Review) (Document, error) {
	return svc.review(ctx, id, StatusRejected, reviewer, rv)
}

func (svc *Service) review(ctx context.Context, id string, status Status, reviewer user.User, rv Review) (Document, error) {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != StatusPending {
		return Document{}, errAlreadyReviewed
	}

	now := core.NowFunc()
	doc.Status = status
	doc.ReviewedBy, doc.ReviewedByName, doc.ReviewedAt = reviewer.ID, reviewer.Name(), &now
	doc.ReviewNote = rv.Note
	doc.UpdatedAt = now
	if doc, err = svc.repo.UpdateDocument(ctx, doc); err != nil {
		return Document{}, pkgerrors.Wrap(err, "reviewing document")
	}

	msg := fmt.Sprintf("Tài liệu \"%s\" của bạn đã được duyệt.", doc.Title)
	if status == StatusRejected {
		msg = fmt.Sprintf("Tài liệu \"%s\" của bạn bị từ chối.", doc.Title)
	}
	if rv.Note != "" {
		msg += " " + rv.Note
	}
	svc.notify(ctx, notification.Notification{
		UserID:  doc.UploadedBy,
		Type:    notification.TypeDocumentReviewed,
		Title:   "Kết quả duyệt tài liệu",
		Message: msg,
		RefID:   doc.ID,
		Link:    notification.DocumentLink(doc.ID),
	})
	return doc, nil
}

// File requests

// Request files a delete or edit request on one of the requester's documents.
// A document has at most one pending request.
func (svc *Service) Request(ctx context.Context, documentID string, nr NewRequest, requester user.User) (FileRequest, error) {
	doc, err := svc.repo.GetDocument(ctx, documentID)
	if err != nil {
		return FileRequest{}, err
	}
	if doc.UploadedBy != requester.ID {
		return FileRequest{}, ErrNotUploader
	}
	pending, err := svc.repo.QueryRequests(ctx, RequestFilter{DocumentID: doc.ID, Status: StatusPending})
	if err != nil {
		return FileRequest{}, pkgerrors.Wrap(err, "querying requests")
	}
	if len(pending) > 0 {
		return FileRequest{}, errPendingRequest
	}

	req := FileRequest{
		ID:              uuid.New().String(),
		DocumentID:      doc.ID,
		DocumentTitle:   doc.Title,
		Type:            nr.Type,
		RequestedBy:     requester.ID,
		RequestedByName: requester.Name(),
		Reason:          nr.Reason,
		Status:          StatusPending,
		CreatedAt:       core.NowFunc(),
	}
	if nr.Type == RequestEdit {
		req.NewTitle, req.NewDescription = nr.NewTitle, nr.NewDescription
	}
	if req, err = svc.repo.CreateRequest(ctx, req); err != nil {
		return FileRequest{}, pkgerrors.Wrap(err, "creating request")
	}

	action := "xóa"
	if req.Type == RequestEdit {
		action = "sửa"
	}
	svc.notifyReviewers(ctx, notification.Notification{
		Type:    notification.TypeFileRequestPending,
		Title:   "Yêu cầu chờ duyệt",
		Message: fmt.Sprintf("%s yêu cầu %s tài liệu \"%s\".", req.RequestedByName, action, doc.Title),
		RefID:   doc.ID,
		Link:    notification.DocumentLink(doc.ID),
	})
	return req, nil
}

func (svc *Service) RequestDelete(ctx context.Context, documentID, reason string, requester user.User) (FileRequest, error) {
	return svc.Request(ctx, documentID, NewRequest{Type: RequestDelete, Reason: reason}, requester)
}

func (svc *Service) RequestEdit(ctx context.Context, documentID string, nr NewRequest, requester user.User) (FileRequest, error) {
	nr.Type = RequestEdit
	return svc.Request(ctx, documentID, nr, requester)
}

func (svc *Service) QueryRequests(ctx context.Context, filter RequestFilter) ([]FileRequest, error) {
	return svc.repo.QueryRequests(ctx, filter)
}

// ApproveRequest applies the requested change: the document is deleted or its details edited.
func (svc *Service) ApproveRequest(ctx context.Context, id string, reviewer user.User, rv Review) (FileRequest, error) {
	req, err := svc.pendingRequest(ctx, id)
	if err != nil {
		return FileRequest{}, err
	}
	doc, err := svc.repo.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return FileRequest{}, err
	}

	switch req.Type {
	case RequestDelete:
		if err = svc.repo.DeleteDocument(ctx, doc.ID); err != nil {
			return FileRequest{}, pkgerrors.Wrap(err, "deleting document")
		}
		ids := []string{doc.FileID}
		if doc.ThumbnailID != "" {
			ids = append(ids, doc.ThumbnailID)
		}
		svc.deleteFiles(ctx, ids...)
	case RequestEdit:
		if req.NewTitle != "" {
			doc.Title = req.NewTitle
		}
		if req.NewDescription != nil {
			doc.Description = *req.NewDescription
		}
		doc.UpdatedAt = core.NowFunc()
		if _, err = svc.repo.UpdateDocument(ctx, doc); err != nil {
			return FileRequest{}, pkgerrors.Wrap(err, "editing document")
		}
	}

	// the request outlives a deleted document as its audit record
	if req, err = svc.closeRequest(ctx, req, StatusApproved, reviewer, rv); err != nil {
		return FileRequest{}, err
	}
	svc.notifyRequester(ctx, req)
	return req, nil
}

// RejectRequest closes the request without touching the document.
func (svc *Service) RejectRequest(ctx context.Context, id string, reviewer user.User, rv Review) (FileRequest, error) {
	req, err := svc.pendingRequest(ctx, id)
	if err != nil {
		return FileRequest{}, err
	}
	if req, err = svc.closeRequest(ctx, req, StatusRejected, reviewer, rv); err != nil {
		return FileRequest{}, err
	}
	svc.notifyRequester(ctx, req)
	return req, nil
}

func (svc *Service) pendingRequest(ctx context.Context, id string) (FileRequest, error) {
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return FileRequest{}, err
	}
	if req.Status != StatusPending {
		return FileRequest{}, errAlreadyReviewed
	}
	return req, nil
}

func (svc *Service) closeRequest(ctx context.Context, req FileRequest, status Status, reviewer user.User, rv Review) (FileRequest, error) {
	now := core.NowFunc()
	req.Status = status
	req.ReviewedBy, req.ReviewedByName, req.ReviewedAt = reviewer.ID, reviewer.Name(), &now
	req.ReviewNote = rv.Note
	req, err := svc.repo.UpdateRequest(ctx, req)
	return req, pkgerrors.Wrap(err, "closing request")
}

func (svc *Service) notifyRequester(ctx context.Context, req FileRequest) {
	verdict := "được chấp thuận"
	if req.Status == StatusRejected {
		verdict = "bị từ chối"
	}
	svc.notify(ctx, notification.Notification{
		UserID:  req.RequestedBy,
		Type:    notification.TypeFileRequestReviewed,
		Title:   "Kết quả yêu cầu",
		Message: fmt.Sprintf("Yêu cầu của bạn về tài liệu \"%s\" đã %s.", req.DocumentTitle, verdict),
		RefID:   req.DocumentID,
		Link:    notification.DocumentLink(req.DocumentID),
	})
}

// notifyReviewers sends `n` to every active admin and vice-principal.
func (svc *Service) notifyReviewers(ctx context.Context, n notification.Notification) {
	active := true
	reviewers, err := svc.users.Query(ctx, &user.QueryFilter{Roles: user.ElevatedRoles, IsActive: &active}, nil)
	if err != nil {
		svc.logger.Error("loading reviewers", pkgerrors.Wrap(err, n.Type))
		return
	}
	ns := make([]notification.Notification, 0, len(reviewers))
	for _, r := range reviewers {
		n.UserID = r.ID
		ns = append(ns, n)
	}
	svc.notify(ctx, ns...)
}

func (svc *Service) notify(ctx context.Context, ns ...notification.Notification) {
	if svc.notifier == nil || len(ns) == 0 {
		return
	}
	_ = svc.notifier.Notify(ctx, ns...)
}

func (svc *Service) deleteFiles(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if err := svc.opts.Files.Delete(ctx, id); err != nil && !core.IsKind(err, core.KindNotFound) {
			svc.logger.Warn("deleting stored file", pkgerrors.Wrap(err, id))
		}
	}
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
