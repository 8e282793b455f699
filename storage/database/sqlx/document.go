package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schooldesk/core/document"
)

const (
	categoryColumns    = `id, name, description, sort_order, created_at, updated_at`
	subCategoryColumns = `id, category_id, name, description, sort_order, created_at, updated_at`
	documentColumns    = `id, title, description, category_id, sub_category_id, school_year_id, file_id, file_url,
		file_name, file_size, mime_type, thumbnail_id, thumbnail_url, uploaded_by, uploaded_by_name, status,
		reviewed_by, reviewed_by_name, reviewed_at, review_note, created_at, updated_at`
	requestColumns = `id, document_id, document_title, type, requested_by, requested_by_name, reason, new_title,
		new_description, status, reviewed_by, reviewed_by_name, reviewed_at, review_note, created_at`
)

type categoryRow struct {
	ID          string    `db:"id"`
	CategoryID  string    `db:"category_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Order       int       `db:"sort_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r categoryRow) category() document.Category {
	return document.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Order:       r.Order,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r categoryRow) subCategory() document.SubCategory {
	return document.SubCategory{
		ID:          r.ID,
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
		Order:       r.Order,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type documentRow struct {
	ID             string    `db:"id"`
	Title          string    `db:"title"`
	Description    string    `db:"description"`
	CategoryID     string    `db:"category_id"`
	SubCategoryID  string    `db:"sub_category_id"`
	SchoolYearID   string    `db:"school_year_id"`
	FileID         string    `db:"file_id"`
	FileURL        string    `db:"file_url"`
	FileName       string    `db:"file_name"`
	FileSize       int64     `db:"file_size"`
	MimeType       string    `db:"mime_type"`
	ThumbnailID    string    `db:"thumbnail_id"`
	ThumbnailURL   string    `db:"thumbnail_url"`
	UploadedBy     string    `db:"uploaded_by"`
	UploadedByName string    `db:"uploaded_by_name"`
	Status         string    `db:"status"`
	ReviewedBy     string    `db:"reviewed_by"`
	ReviewedByName string    `db:"reviewed_by_name"`
	ReviewedAt     null.Time `db:"reviewed_at"`
	ReviewNote     string    `db:"review_note"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func newDocumentRow(d document.Document) documentRow {
	return documentRow{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		CategoryID:     d.CategoryID,
		SubCategoryID:  d.SubCategoryID,
		SchoolYearID:   d.SchoolYearID,
		FileID:         d.FileID,
		FileURL:        d.FileURL,
		FileName:       d.FileName,
		FileSize:       d.FileSize,
		MimeType:       d.MimeType,
		ThumbnailID:    d.ThumbnailID,
		ThumbnailURL:   d.ThumbnailURL,
		UploadedBy:     d.UploadedBy,
		UploadedByName: d.UploadedByName,
		Status:         string(d.Status),
		ReviewedBy:     d.ReviewedBy,
		ReviewedByName: d.ReviewedByName,
		ReviewedAt:     null.TimeFromPtr(d.ReviewedAt),
		ReviewNote:     d.ReviewNote,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (r documentRow) document() document.Document {
	d := document.Document{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		CategoryID:     r.CategoryID,
		SubCategoryID:  r.SubCategoryID,
		SchoolYearID:   r.SchoolYearID,
		FileID:         r.FileID,
		FileURL:        r.FileURL,
		FileName:       r.FileName,
		FileSize:       r.FileSize,
		MimeType:       r.MimeType,
		ThumbnailID:    r.ThumbnailID,
		ThumbnailURL:   r.ThumbnailURL,
		UploadedBy:     r.UploadedBy,
		UploadedByName: r.UploadedByName,
		Status:         document.Status(r.Status),
		ReviewedBy:     r.ReviewedBy,
		ReviewedByName: r.ReviewedByName,
		ReviewNote:     r.ReviewNote,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.ReviewedAt.Valid {
		at := r.ReviewedAt.Time.UTC()
		d.ReviewedAt = &at
	}
	return d
}

type requestRow struct {
	ID              string      `db:"id"`
	DocumentID      string      `db:"document_id"`
	DocumentTitle   string      `db:"document_title"`
	Type            string      `db:"type"`
	RequestedBy     string      `db:"requested_by"`
	RequestedByName string      `db:"requested_by_name"`
	Reason          string      `db:"reason"`
	NewTitle        string      `db:"new_title"`
	NewDescription  null.String `db:"new_description"`
	Status          string      `db:"status"`
	ReviewedBy      string      `db:"reviewed_by"`
	ReviewedByName  string      `db:"reviewed_by_name"`
	ReviewedAt      null.Time   `db:"reviewed_at"`
	ReviewNote      string      `db:"review_note"`
	CreatedAt       time.Time   `db:"created_at"`
}

func newRequestRow(r document.FileRequest) requestRow {
	return requestRow{
		ID:              r.ID,
		DocumentID:      r.DocumentID,
		DocumentTitle:   r.DocumentTitle,
		Type:            string(r.Type),
		RequestedBy:     r.RequestedBy,
		RequestedByName: r.RequestedByName,
		Reason:          r.Reason,
		NewTitle:        r.NewTitle,
		NewDescription:  null.StringFromPtr(r.NewDescription),
		Status:          string(r.Status),
		ReviewedBy:      r.ReviewedBy,
		ReviewedByName:  r.ReviewedByName,
		ReviewedAt:      null.TimeFromPtr(r.ReviewedAt),
		ReviewNote:      r.ReviewNote,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func (r requestRow) request() document.FileRequest {
	req := document.FileRequest{
		ID:              r.ID,
		DocumentID:      r.DocumentID,
		DocumentTitle:   r.DocumentTitle,
		Type:            document.RequestType(r.Type),
		RequestedBy:     r.RequestedBy,
		RequestedByName: r.RequestedByName,
		Reason:          r.Reason,
		NewTitle:        r.NewTitle,
		NewDescription:  r.NewDescription.Ptr(),
		Status:          document.Status(r.Status),
		ReviewedBy:      r.ReviewedBy,
		ReviewedByName:  r.ReviewedByName,
		ReviewNote:      r.ReviewNote,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	if r.ReviewedAt.Valid {
		at := r.ReviewedAt.Time.UTC()
		req.ReviewedAt = &at
	}
	return req
}

type documentRepository struct {
	db *sqlx.DB
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *sqlx.DB) document.Repository {
	return &documentRepository{db: db}
}

// Categories

func (repo *documentRepository) CreateCategory(ctx context.Context, c document.Category) (document.Category, error) {
	q := `INSERT INTO document_categories (` + categoryColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q, c.ID, c.Name, c.Description, c.Order, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return document.Category{}, errors.Wrap(err, "inserting category")
	}
	return c, nil
}

func (repo *documentRepository) GetCategory(ctx context.Context, id string) (document.Category, error) {
	var row categoryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+categoryColumns+` FROM document_categories WHERE id = $1`, id); err != nil {
		return document.Category{}, trapNoRowsErr(err, document.ErrCategoryNotFound, "selecting category")
	}
	return row.category(), nil
}

func (repo *documentRepository) QueryCategories(ctx context.Context) ([]document.Category, error) {
	var rows []categoryRow
	q := `SELECT ` + categoryColumns + ` FROM document_categories ORDER BY sort_order, name`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting categories")
	}
	cats := make([]document.Category, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, r.category())
	}
	return cats, nil
}

func (repo *documentRepository) UpdateCategory(ctx context.Context, c document.Category) (document.Category, error) {
	q := `UPDATE document_categories SET name = $2, description = $3, sort_order = $4, updated_at = $5 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, c.ID, c.Name, c.Description, c.Order, c.UpdatedAt.UTC())
	if err = mustAffect(res, err, document.ErrCategoryNotFound, "updating category"); err != nil {
		return document.Category{}, err
	}
	return c, nil
}

func (repo *documentRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM document_categories WHERE id = $1`, id)
	return mustAffect(res, err, document.ErrCategoryNotFound, "deleting category")
}

// Sub-categories

func (repo *documentRepository) CreateSubCategory(ctx context.Context, sc document.SubCategory) (document.SubCategory, error) {
	q := `INSERT INTO document_sub_categories (` + subCategoryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q,
		sc.ID, sc.CategoryID, sc.Name, sc.Description, sc.Order, sc.CreatedAt.UTC(), sc.UpdatedAt.UTC())
	if err != nil {
		return document.SubCategory{}, errors.Wrap(err, "inserting sub-category")
	}
	return sc, nil
}

func (repo *documentRepository) GetSubCategory(ctx context.Context, id string) (document.SubCategory, error) {
	var row categoryRow
	q := `SELECT ` + subCategoryColumns + ` FROM document_sub_categories WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return document.SubCategory{}, trapNoRowsErr(err, document.ErrSubCategoryNotFound, "selecting sub-category")
	}
	return row.subCategory(), nil
}

func (repo *documentRepository) QuerySubCategories(ctx context.Context, categoryID string) ([]document.SubCategory, error) {
	var c conds
	if categoryID != "" {
		c.add("category_id = ?", categoryID)
	}
	var rows []categoryRow
	base := `SELECT ` + subCategoryColumns + ` FROM document_sub_categories`
	if err := selectWhere(ctx, repo.db, &rows, base, c, " ORDER BY sort_order, name"); err != nil {
		return nil, errors.Wrap(err, "selecting sub-categories")
	}
	subs := make([]document.SubCategory, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.subCategory())
	}
	return subs, nil
}

func (repo *documentRepository) UpdateSubCategory(ctx context.Context, sc document.SubCategory) (document.SubCategory, error) {
	q := `UPDATE document_sub_categories SET name = $2, description = $3, sort_order = $4, updated_at = $5 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, sc.ID, sc.Name, sc.Description, sc.Order, sc.UpdatedAt.UTC())
	if err = mustAffect(res, err, document.ErrSubCategoryNotFound, "updating sub-category"); err != nil {
		return document.SubCategory{}, err
	}
	return sc, nil
}

func (repo *documentRepository) DeleteSubCategory(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM document_sub_categories WHERE id = $1`, id)
	return mustAffect(res, err, document.ErrSubCategoryNotFound, "deleting sub-category")
}

// Documents

func (repo *documentRepository) CreateDocument(ctx context.Context, d document.Document) (document.Document, error) {
	q := `INSERT INTO documents (` + documentColumns + `) VALUES (:id, :title, :description, :category_id,
		:sub_category_id, :school_year_id, :file_id, :file_url, :file_name, :file_size, :mime_type, :thumbnail_id,
		:thumbnail_url, :uploaded_by, :uploaded_by_name, :status, :reviewed_by, :reviewed_by_name, :reviewed_at,
		:review_note, :created_at, :updated_at)`
	row := newDocumentRow(d)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return document.Document{}, errors.Wrap(err, "inserting document")
	}
	return row.document(), nil
}

func (repo *documentRepository) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var row documentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id); err != nil {
		return document.Document{}, trapNoRowsErr(err, document.ErrNotFound, "selecting document")
	}
	return row.document(), nil
}

func (repo *documentRepository) QueryDocuments(ctx context.Context, filter document.QueryFilter) ([]document.Document, error) {
	var c conds
	if filter.CategoryID != "" {
		c.add("category_id = ?", filter.CategoryID)
	}
	if filter.SubCategoryID != "" {
		c.add("sub_category_id = ?", filter.SubCategoryID)
	}
	if filter.SchoolYearID != "" {
		c.add("school_year_id = ?", filter.SchoolYearID)
	}
	if filter.UploadedBy != "" {
		c.add("uploaded_by = ?", filter.UploadedBy)
	}
	if filter.VisibleTo != "" {
		c.add("(status = ? OR uploaded_by = ?)", string(document.StatusApproved), filter.VisibleTo)
	}
	if filter.Search != "" {
		c.add("title ILIKE ?", "%"+filter.Search+"%")
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		c.add("status = ANY(?)", stringArray(statuses))
	}

	var rows []documentRow
	base := `SELECT ` + documentColumns + ` FROM documents`
	if err := selectWhere(ctx, repo.db, &rows, base, c, " ORDER BY created_at DESC, id"); err != nil {
		return nil, errors.Wrap(err, "selecting documents")
	}
	docs := make([]document.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (repo *documentRepository) UpdateDocument(ctx context.Context, d document.Document) (document.Document, error) {
	q := `UPDATE documents SET title = :title, description = :description, category_id = :category_id,
		sub_category_id = :sub_category_id, school_year_id = :school_year_id, status = :status,
		reviewed_by = :reviewed_by, reviewed_by_name = :reviewed_by_name, reviewed_at = :reviewed_at,
		review_note = :review_note, updated_at = :updated_at
		WHERE id = :id`
	row := newDocumentRow(d)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err = mustAffect(res, err, document.ErrNotFound, "updating document"); err != nil {
		return document.Document{}, err
	}
	return row.document(), nil
}

// DeleteDocument keeps the file requests as the audit trail of the document.
func (repo *documentRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return mustAffect(res, err, document.ErrNotFound, "deleting document")
}

// Requests

func (repo *documentRepository) CreateRequest(ctx context.Context, r document.FileRequest) (document.FileRequest, error) {
	q := `INSERT INTO file_requests (` + requestColumns + `) VALUES (:id, :document_id, :document_title, :type,
		:requested_by, :requested_by_name, :reason, :new_title, :new_description, :status, :reviewed_by,
		:reviewed_by_name, :reviewed_at, :review_note, :created_at)`
	row := newRequestRow(r)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return document.FileRequest{}, errors.Wrap(err, "inserting file request")
	}
	return row.request(), nil
}

func (repo *documentRepository) GetRequest(ctx context.Context, id string) (document.FileRequest, error) {
	var row requestRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+requestColumns+` FROM file_requests WHERE id = $1`, id); err != nil {
		return document.FileRequest{}, trapNoRowsErr(err, document.ErrRequestNotFound, "selecting file request")
	}
	return row.request(), nil
}

func (repo *documentRepository) QueryRequests(ctx context.Context, filter document.RequestFilter) ([]document.FileRequest, error) {
	var c conds
	if filter.DocumentID != "" {
		c.add("document_id = ?", filter.DocumentID)
	}
	if filter.Status != "" {
		c.add("status = ?", string(filter.Status))
	}
	if filter.RequestedBy != "" {
		c.add("requested_by = ?", filter.RequestedBy)
	}

	var rows []requestRow
	base := `SELECT ` + requestColumns + ` FROM file_requests`
	if err := selectWhere(ctx, repo.db, &rows, base, c, " ORDER BY created_at DESC, id"); err != nil {
		return nil, errors.Wrap(err, "selecting file requests")
	}
	reqs := make([]document.FileRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.request())
	}
	return reqs, nil
}

func (repo *documentRepository) UpdateRequest(ctx context.Context, r document.FileRequest) (document.FileRequest, error) {
	q := `UPDATE file_requests SET status = :status, reviewed_by = :reviewed_by, reviewed_by_name = :reviewed_by_name,
		reviewed_at = :reviewed_at, review_note = :review_note WHERE id = :id`
	row := newRequestRow(r)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err = mustAffect(res, err, document.ErrRequestNotFound, "updating file request"); err != nil {
		return document.FileRequest{}, err
	}
	return row.request(), nil
}
