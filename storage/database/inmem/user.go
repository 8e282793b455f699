package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; ok {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "uid", Error: "user already exists"})
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.table[id]; ok {
			users = append(users, *usr)
		}
	}
	return users, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()
	if filter != nil && !filter.IsEmpty() {
		search := strings.ToLower(filter.Search)
		res := users[:0]
		for _, usr := range users {
			if search != "" &&
				!strings.Contains(strings.ToLower(usr.DisplayName), search) &&
				!strings.Contains(strings.ToLower(usr.Email), search) {
				continue
			}
			if len(filter.Roles) > 0 && !usr.HasRole(filter.Roles...) {
				continue
			}
			if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
				continue
			}
			res = append(res, usr)
		}
		users = res
	}

	ordering = core.FilterOrderings(ordering, "display_name", "email", "role", "created_at")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "display_name", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := userField(users[i], ord.Field), userField(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
	return users, nil
}

func userField(usr user.User, field string) string {
	switch field {
	case "email":
		return usr.Email
	case "role":
		return usr.Role
	case "created_at":
		return usr.CreatedAt.Format("20060102150405.000000")
	default:
		return strings.ToLower(usr.DisplayName)
	}
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetWhitelistEntry(_ context.Context, email string) (user.WhitelistEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if entry, ok := repo.db.whitelist[email]; ok {
		return *entry, nil
	}
	return user.WhitelistEntry{}, user.ErrWhitelistNotFound
}

func (repo *userRepository) QueryWhitelist(_ context.Context) ([]user.WhitelistEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]user.WhitelistEntry, 0, len(repo.db.whitelist))
	for _, e := range repo.db.whitelist {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
	return entries, nil
}

func (repo *userRepository) SaveWhitelistEntry(_ context.Context, entry user.WhitelistEntry) (user.WhitelistEntry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if prev, ok := repo.db.whitelist[entry.Email]; ok {
		entry.CreatedAt = prev.CreatedAt
	}
	repo.db.whitelist[entry.Email] = &entry
	return entry, nil
}

func (repo *userRepository) DeleteWhitelistEntry(_ context.Context, email string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.whitelist[email]; !ok {
		return user.ErrWhitelistNotFound
	}
	delete(repo.db.whitelist, email)
	return nil
}
