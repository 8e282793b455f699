package user

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schooldesk/core"
)

// Roles
const (
	RoleAdmin          = "admin"
	RoleVicePrincipal  = "vice_principal"
	RoleDepartmentHead = "department_head"
	RoleTeacher        = "teacher"
)

var (
	AllRoles      = []string{RoleAdmin, RoleVicePrincipal, RoleDepartmentHead, RoleTeacher}
	ElevatedRoles = []string{RoleAdmin, RoleVicePrincipal}

	rolePriorities = map[string]int{
		RoleAdmin:          40,
		RoleVicePrincipal:  30,
		RoleDepartmentHead: 20,
		RoleTeacher:        10,
	}

	Roles = []Role{
		{Name: "Giáo viên", Value: RoleTeacher},
		{Name: "Tổ trưởng", Value: RoleDepartmentHead},
		{Name: "Phó hiệu trưởng", Value: RoleVicePrincipal},
		{Name: "Quản trị viên", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func IsValidRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is the profile record of a signed-in principal, keyed by the identity provider's subject id.
type User struct {
	ID          string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	PushToken   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (u User) HasRole(roles ...string) bool {
	return core.ContainsString(roles, u.Role)
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsElevated reports whether the user sees school-wide data un-anonymized.
func (u User) IsElevated() bool { return u.HasRole(ElevatedRoles...) }

func (u User) IsTeacher() bool { return u.Role == RoleTeacher }

func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

func (u User) MailAddress() mail.Address {
	return mail.Address{Name: u.DisplayName, Address: u.Email}
}

// Principal is an identity asserted by the identity provider.
type Principal struct {
	Subject  string
	Email    string
	Name     string
	Picture  string
	Verified bool
}

// WhitelistEntry is an allow-listed email along with the role given on first sign-in.
type WhitelistEntry struct {
	Email     string    `json:"email" validate:"required,email"`
	Role      string    `json:"role" validate:"omitempty,role"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (we *WhitelistEntry) Validate(validate *validator.Validate) error {
	we.Email = core.CleanString(we.Email, true /* lower */)
	we.Role = core.CleanString(we.Role, true /* lower */)
	if err := validate.Struct(we); err != nil {
		return err
	}
	if we.Role == "" {
		we.Role = RoleTeacher
	}
	return nil
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	DisplayName *string `json:"display_name" validate:"omitempty,notblank"`
	PhotoURL    *string `json:"photo_url" validate:"omitempty,url"`
	Role        *string `json:"role" validate:"omitempty,role"`
	IsActive    *bool   `json:"is_active"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	if uu.DisplayName != nil {
		name := core.CleanString(*uu.DisplayName)
		uu.DisplayName = &name
	}
	if uu.Role != nil {
		role := core.CleanString(*uu.Role, true /* lower */)
		uu.Role = &role
	}
	return validate.Struct(uu)
}

// IsAdminOnly reports whether the update touches fields only admins may change.
func (uu UpdateUser) IsAdminOnly() bool {
	return uu.Role != nil || uu.IsActive != nil
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
