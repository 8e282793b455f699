package user

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/schooldesk/core"
)

var (
	// errors
	ErrNotFound          = core.E(core.KindNotFound, "", errors.New("user not found"))
	ErrNotWhitelisted    = core.E(core.KindPermission, "", errors.New("email is not allowed to sign in"))
	ErrAccountDisabled   = core.E(core.KindPermission, "", errors.New("account deactivated"))
	ErrEmailNotVerified  = core.E(core.KindPermission, "", errors.New("email address not verified"))
	ErrWhitelistNotFound = core.E(core.KindNotFound, "", errors.New("whitelist entry not found"))
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUsersByID(ctx context.Context, ids ...string) ([]User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.DisplayName or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)

		GetWhitelistEntry(ctx context.Context, email string) (WhitelistEntry, error)
		QueryWhitelist(ctx context.Context) ([]WhitelistEntry, error)
		SaveWhitelistEntry(ctx context.Context, entry WhitelistEntry) (WhitelistEntry, error)
		DeleteWhitelistEntry(ctx context.Context, email string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SignIn lets an identity-provider principal in, provided its email is allow-listed.
// The profile is created on the first successful sign-in with the whitelist entry's role.
func (svc *Service) SignIn(ctx context.Context, p Principal) (User, error) {
	email := core.CleanString(p.Email, true /* lower */)
	if email == "" || !p.Verified {
		return User{}, ErrEmailNotVerified
	}

	entry, err := svc.repo.GetWhitelistEntry(ctx, email)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			return User{}, ErrNotWhitelisted
		}
		return User{}, pkgerrors.Wrap(err, "checking whitelist")
	}

	now := core.NowFunc()
	usr, err := svc.repo.GetUserByID(ctx, p.Subject)
	switch {
	case err == nil:
		if !usr.IsActive {
			return User{}, ErrAccountDisabled
		}
		// keep provider-owned attributes in sync
		if usr.Email != email || (p.Picture != "" && usr.PhotoURL != p.Picture) {
			usr.Email = email
			if p.Picture != "" {
				usr.PhotoURL = p.Picture
			}
			usr.UpdatedAt = now
			if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
				return User{}, pkgerrors.Wrap(err, "refreshing profile")
			}
		}
		return usr, nil
	case core.IsKind(err, core.KindNotFound):
		name := core.CleanString(p.Name)
		if name == "" {
			name = email
		}
		role := entry.Role
		if role == "" {
			role = RoleTeacher
		}
		usr, err = svc.repo.CreateUser(ctx, User{
			ID:          p.Subject,
			Email:       email,
			DisplayName: name,
			PhotoURL:    p.Picture,
			Role:        role,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return usr, pkgerrors.Wrap(err, "creating profile")
	default:
		return User{}, pkgerrors.Wrap(err, "loading profile")
	}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetManyByID(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.GetUsersByID(ctx, ids...)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if uu.DisplayName != nil {
		usr.DisplayName = *uu.DisplayName
	}
	if uu.PhotoURL != nil {
		usr.PhotoURL = *uu.PhotoURL
	}
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPushToken registers (or clears, when empty) the device token used for push messages.
func (svc *Service) SetPushToken(ctx context.Context, usr User, token string) (User, error) {
	usr.PushToken = core.CleanString(token)
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryWhitelist(ctx context.Context) ([]WhitelistEntry, error) {
	return svc.repo.QueryWhitelist(ctx)
}

func (svc *Service) AddToWhitelist(ctx context.Context, entry WhitelistEntry) (WhitelistEntry, error) {
	entry.Email = core.CleanString(entry.Email, true /* lower */)
	if entry.Role == "" {
		entry.Role = RoleTeacher
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = core.NowFunc()
	}
	return svc.repo.SaveWhitelistEntry(ctx, entry)
}

func (svc *Service) RemoveFromWhitelist(ctx context.Context, email string) error {
	return svc.repo.DeleteWhitelistEntry(ctx, core.CleanString(email, true /* lower */))
}
