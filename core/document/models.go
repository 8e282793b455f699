// Package document holds the shared document library and its review workflow.
package document

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type RequestType string

const (
	RequestDelete RequestType = "delete"
	RequestEdit   RequestType = "edit"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SubCategory struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Document struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	CategoryID     string     `json:"category_id"`
	SubCategoryID  string     `json:"sub_category_id,omitempty"`
	SchoolYearID   string     `json:"school_year_id,omitempty"`
	FileID         string     `json:"file_id"`
	FileURL        string     `json:"file_url"`
	FileName       string     `json:"file_name"`
	FileSize       int64      `json:"file_size"`
	MimeType       string     `json:"mime_type"`
	ThumbnailID    string     `json:"-"`
	ThumbnailURL   string     `json:"thumbnail_url,omitempty"`
	UploadedBy     string     `json:"uploaded_by"`
	UploadedByName string     `json:"uploaded_by_name"`
	Status         Status     `json:"status"`
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewedByName string     `json:"reviewed_by_name,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote     string     `json:"review_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// VisibleTo reports whether `usr` may see the document.
// Reviewers see everything; others see approved documents and their own.
func (d Document) VisibleTo(usr user.User) bool {
	return usr.IsElevated() || d.Status == StatusApproved || d.UploadedBy == usr.ID
}

// FileRequest is an uploader's request to delete or edit one of their documents.
type FileRequest struct {
	ID              string      `json:"id"`
	DocumentID      string      `json:"document_id"`
	DocumentTitle   string      `json:"document_title"`
	Type            RequestType `json:"type"`
	RequestedBy     string      `json:"requested_by"`
	RequestedByName string      `json:"requested_by_name"`
	Reason          string      `json:"reason"`
	NewTitle        string      `json:"new_title,omitempty"`
	NewDescription  *string     `json:"new_description,omitempty"`
	Status          Status      `json:"status"`
	ReviewedBy      string      `json:"reviewed_by,omitempty"`
	ReviewedByName  string      `json:"reviewed_by_name,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewed_at,omitempty"`
	ReviewNote      string      `json:"review_note,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"gte=0"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCategory struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description"`
	Order       *int    `json:"order" validate:"omitempty,gte=0"`
}

func (uc *UpdateCategory) Validate(validate *validator.Validate) error {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	return validate.Struct(uc)
}

type NewSubCategory struct {
	CategoryID  string `json:"category_id" validate:"required"`
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"gte=0"`
}

func (ns *NewSubCategory) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

// NewDocument is an upload to the library.
type NewDocument struct {
	Title         string      `form:"title" validate:"required,notblank,max=200"`
	Description   string      `form:"description" validate:"max=2000"`
	CategoryID    string      `form:"category_id" validate:"required"`
	SubCategoryID string      `form:"sub_category_id"`
	SchoolYearID  string      `form:"school_year_id"`
	File          core.Upload `form:"-"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Description = core.CleanString(nd.Description)
	return validate.Struct(nd)
}

// Review is a reviewer's decision on a document or a file request.
type Review struct {
	Note string `json:"note" validate:"max=1000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Note = core.CleanString(r.Note)
	return validate.Struct(r)
}

type NewRequest struct {
	Type           RequestType `json:"type" validate:"required,oneof=delete edit"`
	Reason         string      `json:"reason" validate:"required,notblank,max=1000"`
	NewTitle       string      `json:"new_title" validate:"required_if=Type edit,max=200"`
	NewDescription *string     `json:"new_description" validate:"omitempty,max=2000"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Reason = core.CleanString(nr.Reason)
	nr.NewTitle = core.CleanString(nr.NewTitle)
	if nr.NewDescription != nil {
		desc := core.CleanString(*nr.NewDescription)
		nr.NewDescription = &desc
	}
	return validate.Struct(nr)
}

type QueryFilter struct {
	CategoryID    string   `query:"category_id"`
	SubCategoryID string   `query:"sub_category_id"`
	SchoolYearID  string   `query:"school_year_id"`
	Status        []Status `query:"status"`
	UploadedBy    string   `query:"uploaded_by"`
	Search        string   `query:"search"`
	// VisibleTo restricts the result to approved documents and those uploaded by this user.
	VisibleTo string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type RequestFilter struct {
	DocumentID  string `query:"document_id"`
	Status      Status `query:"status"`
	RequestedBy string `query:"-"`
}
