package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
)

var (
	ErrNotFound           = core.NewError(core.KindNotFound, "user not found")
	ErrEmailExists        = core.NewError(core.KindConflict, "a user with this email already exists")
	ErrInvalidCredentials = core.NewError(core.KindUnauthenticated, "invalid email or password")
	ErrAccountDeactivated = core.NewError(core.KindForbidden, "this account has been deactivated")
	errRoleNotAllowed     = errors.New("this role cannot be self-assigned")

	// roles open to public registration
	registrationRoles = []auth.Role{auth.RoleStudent, auth.RoleMentor}
)

type (
	Repository interface {
		// CreateUser fails with ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	// PasswordHasher is satisfied by auth.Hasher.
	PasswordHasher interface {
		Hash(secret string) ([]byte, error)
		Verify(secret string, digest []byte) bool
	}

	Service struct {
		repo     Repository
		hasher   PasswordHasher
		validate *validator.Validate

		// checked when there is no digest to compare against so that
		// every failed login costs one full hash comparison
		dummyHash []byte
	}
)

func NewService(repo Repository, hasher PasswordHasher, validate *validator.Validate) *Service {
	dummy, _ := hasher.Hash("elimu:no-such-user")
	return &Service{repo: repo, hasher: hasher, validate: validate, dummyHash: dummy}
}

func emailExistsError() error {
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	switch {
	case err == nil:
		return emailExistsError()
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return err
	}
}

// Create validates and stores a new user of any role.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	hash, err := svc.hasher.Hash(nu.Password)
	if err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	now := time.Now().UTC()
	usr, err := svc.repo.CreateUser(ctx, User{
		Email:        nu.Email,
		Name:         nu.Name,
		Phone:        nu.Phone,
		Designation:  nu.Designation,
		Role:         nu.Role,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, ErrEmailExists) {
		return User{}, emailExistsError()
	}
	return usr, err
}

// Register is the public sign-up: admins cannot be self-registered.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	allowed := false
	for _, role := range registrationRoles {
		if nu.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return User{}, core.NewValidationError(errRoleNotAllowed, core.FieldError{Field: "role", Error: errRoleNotAllowed.Error()})
	}
	return svc.Create(ctx, nu)
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	digest := usr.PasswordHash
	if len(digest) == 0 {
		digest = svc.dummyHash
	}
	valid := svc.hasher.Verify(pwd, digest)
	if err != nil || len(usr.PasswordHash) == 0 || !valid {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = up.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}

	usr.Name = up.Name
	usr.Phone = up.Phone
	usr.Designation = up.Designation
	usr.Bio = up.Bio
	usr.Avatar = up.Avatar
	if up.Password != "" {
		if usr.PasswordHash, err = svc.hasher.Hash(up.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetPassword(ctx context.Context, usr User, sp SetPassword) (User, error) {
	if err := sp.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}
	hash, err := svc.hasher.Hash(sp.Password)
	if err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.PasswordHash = hash
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
