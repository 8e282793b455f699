package document_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/document"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/filestore"
	"github.com/trezcool/schooldesk/storage/database/inmem"
	"github.com/trezcool/schooldesk/tests"
)

type fixture struct {
	svc      *document.Service
	files    *filestore.Memory
	notifier *testutil.Notifier
	logger   *testutil.Logger
	thumbs   int

	cat                       document.Category
	vp, admin, teacher, other user.User
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	f := &fixture{
		files:    filestore.NewMemory("https://files.test"),
		notifier: &testutil.Notifier{},
		logger:   &testutil.Logger{},
	}
	thumbnail := func(r io.Reader, mimeType string, size int) ([]byte, error) {
		if _, err := io.ReadAll(r); err != nil {
			return nil, err
		}
		if mimeType == "image/gif" {
			return nil, errors.New("corrupt image")
		}
		f.thumbs++
		return []byte("thumb"), nil
	}
	f.svc = document.NewService(inmemdb.NewDocumentRepository(db), user.NewService(usrRepo), f.notifier, f.logger, document.Options{
		Files:         f.files,
		Policy:        core.UploadPolicy{MaxFileSize: 1 << 20, MaxFiles: 1, AllowedTypes: core.DefaultAllowedFileTypes},
		Thumbnail:     thumbnail,
		ThumbnailSize: 64,
	})

	f.vp = testutil.CreateUser(t, usrRepo, "vp", "Vice Principal", "vp@school.test", user.RoleVicePrincipal, true)
	f.admin = testutil.CreateUser(t, usrRepo, "admin", "Admin", "admin@school.test", user.RoleAdmin, true)
	f.teacher = testutil.CreateUser(t, usrRepo, "t1", "An", "an@school.test", user.RoleTeacher, true)
	f.other = testutil.CreateUser(t, usrRepo, "t2", "Binh", "binh@school.test", user.RoleTeacher, true)
	_ = testutil.CreateUser(t, usrRepo, "old", "Old VP", "old@school.test", user.RoleVicePrincipal, false)

	var err error
	f.cat, err = f.svc.CreateCategory(context.Background(), document.NewCategory{Name: "Giáo án"})
	require.NoError(t, err)
	return f
}

func file(name, contentType, content string) core.Upload {
	return core.Upload{Name: name, Size: int64(len(content)), ContentType: contentType, Content: strings.NewReader(content)}
}

func (f *fixture) stored(id string) bool {
	_, ok := f.files.Content(id)
	return ok
}

func (f *fixture) content(t *testing.T, id string) string {
	b, ok := f.files.Content(id)
	require.True(t, ok, id)
	return string(b)
}

func (f *fixture) upload(t *testing.T, uploader user.User, title string) document.Document {
	doc, err := f.svc.Upload(context.Background(), document.NewDocument{
		Title:      title,
		CategoryID: f.cat.ID,
		File:       file(title+".pdf", "application/pdf", "%PDF "+title),
	}, uploader)
	require.NoError(t, err)
	return doc
}

func TestService_Upload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc := f.upload(t, f.teacher, "plan")
	assert.Equal(t, document.StatusPending, doc.Status)
	assert.Equal(t, "An", doc.UploadedByName)
	assert.Empty(t, doc.ReviewedBy)
	assert.Empty(t, doc.ThumbnailURL, "not an image")
	assert.True(t, f.stored(doc.FileID))
	// active reviewers only
	assert.Len(t, f.notifier.Of(f.vp.ID, notification.TypeDocumentPending), 1)
	assert.Len(t, f.notifier.Of(f.admin.ID, notification.TypeDocumentPending), 1)
	assert.Empty(t, f.notifier.Of("old", notification.TypeDocumentPending))

	f.notifier.Reset()
	doc = f.upload(t, f.vp, "rules")
	assert.Equal(t, document.StatusApproved, doc.Status, "reviewers' uploads need no review")
	assert.Equal(t, f.vp.ID, doc.ReviewedBy)
	assert.NotNil(t, doc.ReviewedAt)
	assert.Empty(t, f.notifier.Sent)

	img, err := f.svc.Upload(ctx, document.NewDocument{
		Title: "photo", CategoryID: f.cat.ID, File: file("photo.png", "", "png bytes"),
	}, f.teacher)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.NotEmpty(t, img.ThumbnailURL)
	assert.Equal(t, "png bytes", f.content(t, img.FileID), "original kept intact")
	assert.Equal(t, "thumb", f.content(t, img.ThumbnailID))

	broken, err := f.svc.Upload(ctx, document.NewDocument{
		Title: "anim", CategoryID: f.cat.ID, File: file("anim.gif", "image/gif", "gif bytes"),
	}, f.teacher)
	require.NoError(t, err, "a failed thumbnail does not fail the upload")
	assert.Empty(t, broken.ThumbnailURL)
	assert.True(t, f.logger.Contains("making thumbnail"))
	assert.Equal(t, 1, f.thumbs)
}

func TestService_Upload_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other, err := f.svc.CreateCategory(ctx, document.NewCategory{Name: "Other"})
	require.NoError(t, err)
	sub, err := f.svc.CreateSubCategory(ctx, document.NewSubCategory{CategoryID: other.ID, Name: "Sub"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		nd       document.NewDocument
		health   error
		wantKind core.Kind
	}{
		{
			name:     "unknown category",
			nd:       document.NewDocument{Title: "x", CategoryID: "nope", File: file("x.pdf", "application/pdf", "x")},
			wantKind: core.KindNotFound,
		},
		{
			name: "sub-category of another category",
			nd: document.NewDocument{
				Title: "x", CategoryID: f.cat.ID, SubCategoryID: sub.ID, File: file("x.pdf", "application/pdf", "x"),
			},
			wantKind: core.KindValidation,
		},
		{
			name:     "type not allowed",
			nd:       document.NewDocument{Title: "x", CategoryID: f.cat.ID, File: file("x.exe", "", "MZ")},
			wantKind: core.KindValidation,
		},
		{
			name:     "empty file",
			nd:       document.NewDocument{Title: "x", CategoryID: f.cat.ID, File: file("x.pdf", "application/pdf", "")},
			wantKind: core.KindValidation,
		},
		{
			name:     "storage down",
			nd:       document.NewDocument{Title: "x", CategoryID: f.cat.ID, File: file("x.pdf", "application/pdf", "x")},
			health:   core.E(core.KindNetwork, "test", errors.New("unreachable")),
			wantKind: core.KindUploadFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.files.SetHealth(tt.health)
			defer f.files.SetHealth(nil)

			_, err := f.svc.Upload(ctx, tt.nd, f.teacher)
			if got := core.KindOf(err); got != tt.wantKind {
				t.Errorf("Upload() error = %v, kind %v; want %v", err, got, tt.wantKind)
			}
		})
	}
	assert.Empty(t, f.files.Files())
}

func TestService_Review(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	approved := f.upload(t, f.teacher, "approved")
	rejected := f.upload(t, f.teacher, "rejected")

	doc, err := f.svc.Approve(ctx, approved.ID, f.vp, document.Review{Note: "ok"})
	require.NoError(t, err)
	assert.Equal(t, document.StatusApproved, doc.Status)
	assert.Equal(t, "Vice Principal", doc.ReviewedByName)
	assert.Equal(t, "ok", doc.ReviewNote)

	doc, err = f.svc.Reject(ctx, rejected.ID, f.admin, document.Review{Note: "wrong category"})
	require.NoError(t, err)
	assert.Equal(t, document.StatusRejected, doc.Status)

	sent := f.notifier.Of(f.teacher.ID, notification.TypeDocumentReviewed)
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Message, "wrong category")

	_, err = f.svc.Approve(ctx, rejected.ID, f.vp, document.Review{})
	assert.True(t, core.IsKind(err, core.KindValidation), "already reviewed")
	_, err = f.svc.Reject(ctx, "nope", f.vp, document.Review{})
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestService_Query_visibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mine := f.upload(t, f.teacher, "mine pending")
	theirs := f.upload(t, f.other, "theirs pending")
	public := f.upload(t, f.vp, "public")

	ids := func(docs []document.Document) []string {
		res := make([]string, len(docs))
		for i, d := range docs {
			res[i] = d.ID
		}
		return res
	}

	docs, err := f.svc.Query(ctx, document.QueryFilter{}, f.teacher)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mine.ID, public.ID}, ids(docs))

	docs, err = f.svc.Query(ctx, document.QueryFilter{VisibleTo: f.teacher.ID}, f.admin)
	require.NoError(t, err)
	assert.Len(t, docs, 3, "callers cannot narrow visibility themselves")

	docs, err = f.svc.Query(ctx, document.QueryFilter{Search: "  PENDING "}, f.vp)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mine.ID, theirs.ID}, ids(docs))

	_, err = f.svc.Get(ctx, theirs.ID, f.teacher)
	assert.True(t, core.IsKind(err, core.KindNotFound))
	_, err = f.svc.Get(ctx, theirs.ID, f.other)
	assert.NoError(t, err)
}

func TestService_Requests(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc := f.upload(t, f.vp, "to delete")
	img, err := f.svc.Upload(ctx, document.NewDocument{
		Title: "photo", CategoryID: f.cat.ID, File: file("photo.jpg", "image/jpeg", "jpg"),
	}, f.teacher)
	require.NoError(t, err)

	_, err = f.svc.RequestDelete(ctx, img.ID, "duplicate", f.other)
	assert.True(t, core.IsKind(err, core.KindPermission), "only the uploader")

	f.notifier.Reset()
	req, err := f.svc.RequestDelete(ctx, img.ID, "duplicate", f.teacher)
	require.NoError(t, err)
	assert.Equal(t, document.StatusPending, req.Status)
	assert.Equal(t, "photo", req.DocumentTitle)
	assert.Len(t, f.notifier.Of(f.vp.ID, notification.TypeFileRequestPending), 1)

	_, err = f.svc.RequestEdit(ctx, img.ID, document.NewRequest{Reason: "typo", NewTitle: "Photo"}, f.teacher)
	assert.True(t, core.IsKind(err, core.KindValidation), "one pending request per document")

	req, err = f.svc.ApproveRequest(ctx, req.ID, f.admin, document.Review{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusApproved, req.Status)
	assert.Equal(t, f.admin.ID, req.ReviewedBy)
	_, err = f.svc.Get(ctx, img.ID, f.admin)
	assert.True(t, core.IsKind(err, core.KindNotFound), "document deleted")
	assert.False(t, f.stored(img.FileID))
	assert.False(t, f.stored(img.ThumbnailID))
	assert.Len(t, f.notifier.Of(f.teacher.ID, notification.TypeFileRequestReviewed), 1)

	kept, err := f.svc.QueryRequests(ctx, document.RequestFilter{DocumentID: img.ID})
	require.NoError(t, err)
	if assert.Len(t, kept, 1, "approved request outlives the document") {
		assert.Equal(t, req.ID, kept[0].ID)
		assert.Equal(t, document.StatusApproved, kept[0].Status)
		assert.Equal(t, "photo", kept[0].DocumentTitle)
	}

	// edit, rejected then approved
	desc := "new description"
	req, err = f.svc.RequestEdit(ctx, doc.ID, document.NewRequest{Reason: "typo", NewTitle: "Renamed", NewDescription: &desc}, f.vp)
	require.NoError(t, err)
	req, err = f.svc.RejectRequest(ctx, req.ID, f.admin, document.Review{Note: "keep it"})
	require.NoError(t, err)
	assert.Equal(t, document.StatusRejected, req.Status)
	_, err = f.svc.ApproveRequest(ctx, req.ID, f.admin, document.Review{})
	assert.True(t, core.IsKind(err, core.KindValidation), "already reviewed")

	got, err := f.svc.Get(ctx, doc.ID, f.vp)
	require.NoError(t, err)
	assert.Equal(t, "to delete", got.Title, "rejected edits leave the document alone")

	req, err = f.svc.RequestEdit(ctx, doc.ID, document.NewRequest{Reason: "typo", NewTitle: "Renamed", NewDescription: &desc}, f.vp)
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, req.ID, f.admin, document.Review{})
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, doc.ID, f.vp)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, desc, got.Description)

	reqs, err := f.svc.QueryRequests(ctx, document.RequestFilter{DocumentID: doc.ID})
	require.NoError(t, err)
	assert.Len(t, reqs, 2)
}

func TestService_Categories(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub, err := f.svc.CreateSubCategory(ctx, document.NewSubCategory{CategoryID: f.cat.ID, Name: "Toán"})
	require.NoError(t, err)
	_, err = f.svc.CreateSubCategory(ctx, document.NewSubCategory{CategoryID: "nope", Name: "Văn"})
	assert.True(t, core.IsKind(err, core.KindNotFound))

	order := 2
	name := "Kế hoạch"
	cat, err := f.svc.UpdateCategory(ctx, f.cat.ID, document.UpdateCategory{Name: &name, Order: &order})
	require.NoError(t, err)
	assert.Equal(t, "Kế hoạch", cat.Name)
	assert.Equal(t, 2, cat.Order)

	doc, err := f.svc.Upload(ctx, document.NewDocument{
		Title: "x", CategoryID: f.cat.ID, SubCategoryID: sub.ID, File: file("x.pdf", "application/pdf", "x"),
	}, f.vp)
	require.NoError(t, err)

	err = f.svc.DeleteSubCategory(ctx, sub.ID)
	assert.True(t, core.IsKind(err, core.KindValidation), "sub-category in use")
	err = f.svc.DeleteCategory(ctx, f.cat.ID)
	assert.True(t, core.IsKind(err, core.KindValidation), "category in use")

	req, err := f.svc.RequestDelete(ctx, doc.ID, "cleanup", f.vp)
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, req.ID, f.admin, document.Review{})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSubCategory(ctx, sub.ID))
	require.NoError(t, f.svc.DeleteCategory(ctx, f.cat.ID))
	cats, err := f.svc.QueryCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}
