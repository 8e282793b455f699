package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/schooldesk/core/org"
)

type orgRepository struct {
	db *orgTables
}

var _ org.Repository = (*orgRepository)(nil) // interface compliance check

func NewOrgRepository(db *DB) org.Repository {
	return &orgRepository{db: db.org}
}

func (repo *orgRepository) CreateDepartment(_ context.Context, d org.Department) (org.Department, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	d.TeacherIDs = copyStrings(d.TeacherIDs)
	repo.db.departments[d.ID] = &d
	return d, nil
}

func (repo *orgRepository) GetDepartment(_ context.Context, id string) (org.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.departments[id]; ok {
		return *d, nil
	}
	return org.Department{}, org.ErrDepartmentNotFound
}

func (repo *orgRepository) QueryDepartments(_ context.Context) ([]org.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	deps := make([]org.Department, 0, len(repo.db.departments))
	for _, d := range repo.db.departments {
		deps = append(deps, *d)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps, nil
}

func (repo *orgRepository) UpdateDepartment(_ context.Context, d org.Department) (org.Department, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.departments[d.ID]; !ok {
		return org.Department{}, org.ErrDepartmentNotFound
	}
	d.TeacherIDs = copyStrings(d.TeacherIDs)
	repo.db.departments[d.ID] = &d
	return d, nil
}

func (repo *orgRepository) DeleteDepartment(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.departments[id]; !ok {
		return org.ErrDepartmentNotFound
	}
	delete(repo.db.departments, id)
	return nil
}

func (repo *orgRepository) CreateSchoolYear(_ context.Context, sy org.SchoolYear) (org.SchoolYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.schoolYears[sy.ID] = &sy
	return sy, nil
}

func (repo *orgRepository) GetSchoolYear(_ context.Context, id string) (org.SchoolYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sy, ok := repo.db.schoolYears[id]; ok {
		return *sy, nil
	}
	return org.SchoolYear{}, org.ErrSchoolYearNotFound
}

func (repo *orgRepository) QuerySchoolYears(_ context.Context) ([]org.SchoolYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	years := make([]org.SchoolYear, 0, len(repo.db.schoolYears))
	for _, sy := range repo.db.schoolYears {
		years = append(years, *sy)
	}
	return years, nil
}

func (repo *orgRepository) ActivateSchoolYear(_ context.Context, id string) (org.SchoolYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	target, ok := repo.db.schoolYears[id]
	if !ok {
		return org.SchoolYear{}, org.ErrSchoolYearNotFound
	}
	for _, sy := range repo.db.schoolYears {
		sy.IsActive = false
	}
	target.IsActive = true
	return *target, nil
}
