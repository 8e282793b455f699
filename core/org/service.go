package org

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

var (
	// errors
	ErrDepartmentNotFound = core.E(core.KindNotFound, "", errors.New("department not found"))
	ErrSchoolYearNotFound = core.E(core.KindNotFound, "", errors.New("school year not found"))
	ErrNoActiveSchoolYear = core.E(core.KindNotFound, "", errors.New("no active school year"))

	errHeadNotMember = core.NewValidationError(nil, core.FieldError{
		Field: "head_teacher_id", Error: "the head must be a member of the department",
	})
	errHeadRole = core.NewValidationError(nil, core.FieldError{
		Field: "head_teacher_id", Error: "the head must have the department_head role",
	})
	errHeadElsewhere = core.NewValidationError(nil, core.FieldError{
		Field: "head_teacher_id", Error: "this teacher already heads another department",
	})
)

type (
	Repository interface {
		CreateDepartment(ctx context.Context, d Department) (Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)
		UpdateDepartment(ctx context.Context, d Department) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error

		CreateSchoolYear(ctx context.Context, sy SchoolYear) (SchoolYear, error)
		GetSchoolYear(ctx context.Context, id string) (SchoolYear, error)
		QuerySchoolYears(ctx context.Context) ([]SchoolYear, error)
		// ActivateSchoolYear marks `id` as the only active school year.
		ActivateSchoolYear(ctx context.Context, id string) (SchoolYear, error)
	}

	UserGetter interface {
		GetManyByID(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Service struct {
		repo  Repository
		users UserGetter
	}
)

func NewService(repo Repository, users UserGetter) *Service {
	return &Service{repo: repo, users: users}
}

// Departments

func (svc *Service) CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error) {
	now := core.NowFunc()
	if err := svc.checkMembers(ctx, nd.TeacherIDs); err != nil {
		return Department{}, err
	}
	return svc.repo.CreateDepartment(ctx, Department{
		ID:          uuid.New().String(),
		Name:        nd.Name,
		Description: nd.Description,
		TeacherIDs:  nd.TeacherIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *Service) QueryDepartments(ctx context.Context) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx)
}

// DepartmentOf returns the department `uid` belongs to, if any.
func (svc *Service) DepartmentOf(ctx context.Context, uid string) (Department, bool, error) {
	deps, err := svc.repo.QueryDepartments(ctx)
	if err != nil {
		return Department{}, false, err
	}
	for _, d := range deps {
		if d.HasMember(uid) || d.HeadTeacherID == uid {
			return d, true, nil
		}
	}
	return Department{}, false, nil
}

// UpdateDepartment applies `ud` to the department.
// A head, when set, must be a member whose role is department_head and may head only one department.
func (svc *Service) UpdateDepartment(ctx context.Context, id string, ud UpdateDepartment) (Department, error) {
	dep, err := svc.repo.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}

	if ud.Name != nil {
		dep.Name = *ud.Name
	}
	if ud.Description != nil {
		dep.Description = core.CleanString(*ud.Description)
	}
	if ud.TeacherIDs != nil {
		if err = svc.checkMembers(ctx, ud.TeacherIDs); err != nil {
			return Department{}, err
		}
		dep.TeacherIDs = ud.TeacherIDs
	}
	if ud.HeadTeacherID != nil {
		dep.HeadTeacherID = core.CleanString(*ud.HeadTeacherID)
	}
	// a head removed from the members loses the headship
	if dep.HeadTeacherID != "" && !dep.HasMember(dep.HeadTeacherID) {
		if ud.HeadTeacherID != nil {
			return Department{}, errHeadNotMember
		}
		dep.HeadTeacherID = ""
	}
	if ud.HeadTeacherID != nil && dep.HeadTeacherID != "" {
		if err = svc.checkHead(ctx, dep); err != nil {
			return Department{}, err
		}
	}

	dep.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateDepartment(ctx, dep)
}

func (svc *Service) DeleteDepartment(ctx context.Context, id string) error {
	return svc.repo.DeleteDepartment(ctx, id)
}

func (svc *Service) checkMembers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	users, err := svc.users.GetManyByID(ctx, ids...)
	if err != nil {
		return pkgerrors.Wrap(err, "loading members")
	}
	if len(users) != len(ids) {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_ids", Error: "unknown user in teacher_ids"})
	}
	return nil
}

func (svc *Service) checkHead(ctx context.Context, dep Department) error {
	users, err := svc.users.GetManyByID(ctx, dep.HeadTeacherID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading head")
	}
	if len(users) == 0 || users[0].Role != user.RoleDepartmentHead {
		return errHeadRole
	}

	deps, err := svc.repo.QueryDepartments(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "querying departments")
	}
	for _, d := range deps {
		if d.ID != dep.ID && d.HeadTeacherID == dep.HeadTeacherID {
			return errHeadElsewhere
		}
	}
	return nil
}

// School years

func (svc *Service) CreateSchoolYear(ctx context.Context, ny NewSchoolYear) (SchoolYear, error) {
	sy, err := svc.repo.CreateSchoolYear(ctx, SchoolYear{
		ID:        uuid.New().String(),
		Name:      ny.Name,
		StartDate: ny.StartDate.UTC(),
		EndDate:   ny.EndDate.UTC(),
		CreatedAt: core.NowFunc(),
	})
	if err != nil {
		return SchoolYear{}, err
	}
	if ny.IsActive {
		return svc.repo.ActivateSchoolYear(ctx, sy.ID)
	}
	return sy, nil
}

// QuerySchoolYears returns the school years, most recent first.
func (svc *Service) QuerySchoolYears(ctx context.Context) ([]SchoolYear, error) {
	years, err := svc.repo.QuerySchoolYears(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(years, func(i, j int) bool { return years[i].StartDate.After(years[j].StartDate) })
	return years, nil
}

func (svc *Service) ActivateSchoolYear(ctx context.Context, id string) (SchoolYear, error) {
	return svc.repo.ActivateSchoolYear(ctx, id)
}

func (svc *Service) ActiveSchoolYear(ctx context.Context) (SchoolYear, error) {
	years, err := svc.repo.QuerySchoolYears(ctx)
	if err != nil {
		return SchoolYear{}, err
	}
	for _, sy := range years {
		if sy.IsActive {
			return sy, nil
		}
	}
	return SchoolYear{}, ErrNoActiveSchoolYear
}
