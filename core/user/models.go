package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Designation  string    `json:"designation,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

// Summary is the public face of a user shown next to the things they own or wrote.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

// Claim is the identity put in the user's session tokens.
func (u User) Claim() auth.Claim {
	return auth.Claim{SubjectID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}
}

func (u User) IsAdmin() bool   { return u.Role == auth.RoleAdmin }
func (u User) IsMentor() bool  { return u.Role == auth.RoleMentor }
func (u User) IsStudent() bool { return u.Role == auth.RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name        string    `json:"name" validate:"required,notblank,max=255"`
	Email       string    `json:"email" validate:"required,email,max=254"`
	Phone       string    `json:"phone" validate:"omitempty,max=32"`
	Designation string    `json:"designation" validate:"omitempty,max=255"`
	Password    string    `json:"password" validate:"required"`
	Role        auth.Role `json:"role" validate:"omitempty,role"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Designation = core.CleanString(nu.Designation)
	if nu.Role == "" {
		nu.Role = auth.RoleStudent
	}
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

// UpdateProfile defines what information a user may change on their own profile.
type UpdateProfile struct {
	Name            string `json:"name" validate:"omitempty,max=255"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Designation     string `json:"designation" validate:"omitempty,max=255"`
	Bio             string `json:"bio" validate:"omitempty,max=2000"`
	Avatar          string `json:"avatar" validate:"omitempty,url,max=1024"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	email string // for password similarity checks
}

// Validate fills blank fields from origUsr before validating.
func (up *UpdateProfile) Validate(origUsr User, validate *validator.Validate) error {
	fill := func(val *string, orig string) {
		if s := core.CleanString(*val); s != "" {
			*val = s
		} else {
			*val = orig
		}
	}
	fill(&up.Name, origUsr.Name)
	fill(&up.Phone, origUsr.Phone)
	fill(&up.Designation, origUsr.Designation)
	fill(&up.Bio, origUsr.Bio)
	fill(&up.Avatar, origUsr.Avatar)
	up.email = origUsr.Email

	return validate.Struct(up)
}

type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	name, email string
}

func (sp *SetPassword) Validate(usr User, validate *validator.Validate) error {
	sp.name = usr.Name
	sp.email = usr.Email
	return validate.Struct(sp)
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type QueryFilter struct {
	Search      string      `query:"search"`
	Roles       []auth.Role `query:"role"`
	IsActive    *bool       `query:"is_active"`
	CreatedFrom time.Time   `query:"created_from"`
	CreatedTo   time.Time   `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter looks a user up by ID or by email.
type GetFilter struct {
	ID    string
	Email string
}
