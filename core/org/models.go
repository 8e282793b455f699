// Package org holds the school organization: departments and school years.
package org

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schooldesk/core"
)

// Department groups teachers under at most one head.
type Department struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	TeacherIDs    []string  `json:"teacher_ids"`
	HeadTeacherID string    `json:"head_teacher_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (d Department) HasMember(uid string) bool {
	return core.ContainsString(d.TeacherIDs, uid)
}

type NewDepartment struct {
	Name        string   `json:"name" validate:"required,notblank"`
	Description string   `json:"description"`
	TeacherIDs  []string `json:"teacher_ids" validate:"omitempty,unique,dive,required"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Description = core.CleanString(nd.Description)
	return validate.Struct(nd)
}

type UpdateDepartment struct {
	Name          *string  `json:"name" validate:"omitempty,notblank"`
	Description   *string  `json:"description"`
	TeacherIDs    []string `json:"teacher_ids" validate:"omitempty,unique,dive,required"`
	HeadTeacherID *string  `json:"head_teacher_id"`
}

func (ud *UpdateDepartment) Validate(validate *validator.Validate) error {
	if ud.Name != nil {
		name := core.CleanString(*ud.Name)
		ud.Name = &name
	}
	return validate.Struct(ud)
}

// SchoolYear is an academic year; at most one is active at a time.
type SchoolYear struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Contains reports whether t falls within the school year.
func (sy SchoolYear) Contains(t time.Time) bool {
	return !t.Before(sy.StartDate) && !t.After(sy.EndDate)
}

type NewSchoolYear struct {
	Name      string    `json:"name" validate:"required,notblank"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	IsActive  bool      `json:"is_active"`
}

func (ny *NewSchoolYear) Validate(validate *validator.Validate) error {
	ny.Name = core.CleanString(ny.Name)
	return validate.Struct(ny)
}
