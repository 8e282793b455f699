package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core/org"
)

const (
	departmentColumns = `id, name, description, teacher_ids, head_teacher_id, created_at, updated_at`
	schoolYearColumns = `id, name, start_date, end_date, is_active, created_at`
)

type departmentRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Description   string         `db:"description"`
	TeacherIDs    pq.StringArray `db:"teacher_ids"`
	HeadTeacherID string         `db:"head_teacher_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func newDepartmentRow(d org.Department) departmentRow {
	return departmentRow{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		TeacherIDs:    stringArray(d.TeacherIDs),
		HeadTeacherID: d.HeadTeacherID,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func (r departmentRow) department() org.Department {
	return org.Department{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		TeacherIDs:    []string(r.TeacherIDs),
		HeadTeacherID: r.HeadTeacherID,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type schoolYearRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

func (r schoolYearRow) schoolYear() org.SchoolYear {
	return org.SchoolYear{
		ID:        r.ID,
		Name:      r.Name,
		StartDate: r.StartDate.UTC(),
		EndDate:   r.EndDate.UTC(),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type orgRepository struct {
	db *sqlx.DB
}

var _ org.Repository = (*orgRepository)(nil) // interface compliance check

func NewOrgRepository(db *sqlx.DB) org.Repository {
	return &orgRepository{db: db}
}

func (repo *orgRepository) CreateDepartment(ctx context.Context, d org.Department) (org.Department, error) {
	q := `INSERT INTO departments (` + departmentColumns + `)
		VALUES (:id, :name, :description, :teacher_ids, :head_teacher_id, :created_at, :updated_at)`
	row := newDepartmentRow(d)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return org.Department{}, errors.Wrap(err, "inserting department")
	}
	return row.department(), nil
}

func (repo *orgRepository) GetDepartment(ctx context.Context, id string) (org.Department, error) {
	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id); err != nil {
		return org.Department{}, trapNoRowsErr(err, org.ErrDepartmentNotFound, "selecting department")
	}
	return row.department(), nil
}

func (repo *orgRepository) QueryDepartments(ctx context.Context) ([]org.Department, error) {
	var rows []departmentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+departmentColumns+` FROM departments ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "selecting departments")
	}
	deps := make([]org.Department, 0, len(rows))
	for _, r := range rows {
		deps = append(deps, r.department())
	}
	return deps, nil
}

func (repo *orgRepository) UpdateDepartment(ctx context.Context, d org.Department) (org.Department, error) {
	q := `UPDATE departments SET name = :name, description = :description, teacher_ids = :teacher_ids,
		head_teacher_id = :head_teacher_id, updated_at = :updated_at WHERE id = :id`
	row := newDepartmentRow(d)
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err = mustAffect(res, err, org.ErrDepartmentNotFound, "updating department"); err != nil {
		return org.Department{}, err
	}
	return row.department(), nil
}

func (repo *orgRepository) DeleteDepartment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	return mustAffect(res, err, org.ErrDepartmentNotFound, "deleting department")
}

func (repo *orgRepository) CreateSchoolYear(ctx context.Context, sy org.SchoolYear) (org.SchoolYear, error) {
	q := `INSERT INTO school_years (` + schoolYearColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, q, sy.ID, sy.Name, sy.StartDate.UTC(), sy.EndDate.UTC(), sy.IsActive, sy.CreatedAt.UTC())
	if err != nil {
		return org.SchoolYear{}, errors.Wrap(err, "inserting school year")
	}
	return sy, nil
}

func (repo *orgRepository) GetSchoolYear(ctx context.Context, id string) (org.SchoolYear, error) {
	var row schoolYearRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+schoolYearColumns+` FROM school_years WHERE id = $1`, id); err != nil {
		return org.SchoolYear{}, trapNoRowsErr(err, org.ErrSchoolYearNotFound, "selecting school year")
	}
	return row.schoolYear(), nil
}

func (repo *orgRepository) QuerySchoolYears(ctx context.Context) ([]org.SchoolYear, error) {
	var rows []schoolYearRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+schoolYearColumns+` FROM school_years ORDER BY start_date DESC`); err != nil {
		return nil, errors.Wrap(err, "selecting school years")
	}
	years := make([]org.SchoolYear, 0, len(rows))
	for _, r := range rows {
		years = append(years, r.schoolYear())
	}
	return years, nil
}

// ActivateSchoolYear swaps the active flag in one transaction.
func (repo *orgRepository) ActivateSchoolYear(ctx context.Context, id string) (org.SchoolYear, error) {
	var row schoolYearRow
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE school_years SET is_active = FALSE WHERE is_active AND id <> $1`, id); err != nil {
			return errors.Wrap(err, "deactivating school years")
		}
		q := `UPDATE school_years SET is_active = TRUE WHERE id = $1 RETURNING ` + schoolYearColumns
		if err := tx.GetContext(ctx, &row, q, id); err != nil {
			return trapNoRowsErr(err, org.ErrSchoolYearNotFound, "activating school year")
		}
		return nil
	})
	if err != nil {
		return org.SchoolYear{}, err
	}
	return row.schoolYear(), nil
}
