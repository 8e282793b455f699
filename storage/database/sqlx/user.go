package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

const userColumns = `id, email, display_name, photo_url, role, is_active, push_token, created_at, updated_at`

type userRow struct {
	ID          string    `db:"id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	PhotoURL    string    `db:"photo_url"`
	Role        string    `db:"role"`
	IsActive    bool      `db:"is_active"`
	PushToken   string    `db:"push_token"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		PhotoURL:    r.PhotoURL,
		Role:        r.Role,
		IsActive:    r.IsActive,
		PushToken:   r.PushToken,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func usersOf(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

type whitelistRow struct {
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	AddedBy   string    `db:"added_by"`
	CreatedAt time.Time `db:"created_at"`
}

func (r whitelistRow) entry() user.WhitelistEntry {
	return user.WhitelistEntry{Email: r.Email, Role: r.Role, AddedBy: r.AddedBy, CreatedAt: r.CreatedAt.UTC()}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :display_name, :photo_url, :role, :is_active, :push_token, :created_at, :updated_at)`
	row := userRow{
		ID:          usr.ID,
		Email:       usr.Email,
		DisplayName: usr.DisplayName,
		PhotoURL:    usr.PhotoURL,
		Role:        usr.Role,
		IsActive:    usr.IsActive,
		PushToken:   usr.PushToken,
		CreatedAt:   usr.CreatedAt.UTC(),
		UpdatedAt:   usr.UpdatedAt.UTC(),
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "uid", Error: "user already exists"})
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}

	// keep the order of `ids`
	byID := make(map[string]user.User, len(rows))
	for _, r := range rows {
		byID[r.ID] = r.user()
	}
	users := make([]user.User, 0, len(rows))
	for _, id := range ids {
		if usr, ok := byID[id]; ok {
			users = append(users, usr)
		}
	}
	return users, nil
}

var userOrderings = map[string]string{
	"display_name": "LOWER(display_name)",
	"email":        "email",
	"role":         "role",
	"created_at":   "created_at",
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var c conds
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			c.add("(display_name ILIKE ? OR email ILIKE ?)", like, like)
		}
		if len(filter.Roles) > 0 {
			c.add("role = ANY(?)", stringArray(filter.Roles))
		}
		if filter.IsActive != nil {
			c.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []userRow
	suffix := orderBy(ordering, userOrderings, "LOWER(display_name) ASC")
	if err := selectWhere(ctx, repo.db, &rows, `SELECT `+userColumns+` FROM users`, c, suffix); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return usersOf(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET email = $2, display_name = $3, photo_url = $4, role = $5, is_active = $6,
		push_token = $7, updated_at = $8 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Email, usr.DisplayName, usr.PhotoURL, usr.Role, usr.IsActive, usr.PushToken, usr.UpdatedAt.UTC())
	if err = mustAffect(res, err, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetWhitelistEntry(ctx context.Context, email string) (user.WhitelistEntry, error) {
	var row whitelistRow
	err := repo.db.GetContext(ctx, &row, `SELECT email, role, added_by, created_at FROM whitelist WHERE email = $1`, email)
	if err != nil {
		return user.WhitelistEntry{}, trapNoRowsErr(err, user.ErrWhitelistNotFound, "selecting whitelist entry")
	}
	return row.entry(), nil
}

func (repo *userRepository) QueryWhitelist(ctx context.Context) ([]user.WhitelistEntry, error) {
	var rows []whitelistRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT email, role, added_by, created_at FROM whitelist ORDER BY email`); err != nil {
		return nil, errors.Wrap(err, "selecting whitelist")
	}
	entries := make([]user.WhitelistEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// SaveWhitelistEntry upserts the entry, keeping the original creation time.
func (repo *userRepository) SaveWhitelistEntry(ctx context.Context, entry user.WhitelistEntry) (user.WhitelistEntry, error) {
	q := `INSERT INTO whitelist (email, role, added_by, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET role = EXCLUDED.role, added_by = EXCLUDED.added_by
		RETURNING email, role, added_by, created_at`
	var row whitelistRow
	if err := repo.db.GetContext(ctx, &row, q, entry.Email, entry.Role, entry.AddedBy, entry.CreatedAt.UTC()); err != nil {
		return user.WhitelistEntry{}, errors.Wrap(err, "saving whitelist entry")
	}
	return row.entry(), nil
}

func (repo *userRepository) DeleteWhitelistEntry(ctx context.Context, email string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM whitelist WHERE email = $1`, email)
	return mustAffect(res, err, user.ErrWhitelistNotFound, "deleting whitelist entry")
}
