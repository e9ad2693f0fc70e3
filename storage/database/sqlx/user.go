package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

const userColumns = `id, email, name, phone, designation, bio, avatar, role, is_active, password_hash, created_at, updated_at, last_login`

var (
	userConstraints = map[string]error{"users_email_key": user.ErrEmailExists}
	userOrderings   = map[string]bool{
		"name": true, "email": true, "role": true, "is_active": true, "created_at": true, "last_login": true,
	}
)

type userRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	Name         string      `db:"name"`
	Phone        null.String `db:"phone"`
	Designation  null.String `db:"designation"`
	Bio          null.String `db:"bio"`
	Avatar       null.String `db:"avatar"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		Phone:        r.Phone.String,
		Designation:  r.Designation.String,
		Bio:          r.Bio.String,
		Avatar:       r.Avatar.String,
		Role:         auth.Role(r.Role),
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	if usr.PasswordHash == nil {
		usr.PasswordHash = []byte{}
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		usr.ID, usr.Email, usr.Name, nullString(usr.Phone), nullString(usr.Designation), nullString(usr.Bio),
		nullString(usr.Avatar), string(usr.Role), usr.IsActive, usr.PasswordHash,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, translate(err, "inserting user", userConstraints)
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	if filter.ID != "" {
		if !validID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("email = ?", filter.Email)
	}
	if len(w.args) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users`+w.String(), w.args...); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("(name ILIKE ? OR email ILIKE ?)", "%"+filter.Search+"%")
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roles = append(roles, string(role))
			}
			w.add("role = ANY(?)", pq.Array(roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q := `SELECT ` + userColumns + ` FROM users` + w.String() + orderBy(ordering, userOrderings, core.DBOrdering{Field: "created_at"})
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

// UpdateUser keeps the stored password hash when usr.PasswordHash is nil.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE users SET email = $2, name = $3, phone = $4, designation = $5, bio = $6, avatar = $7, role = $8,
		is_active = $9, password_hash = COALESCE($10, password_hash), updated_at = $11, last_login = $12
		WHERE id = $1 RETURNING `+userColumns,
		usr.ID, usr.Email, usr.Name, nullString(usr.Phone), nullString(usr.Designation), nullString(usr.Bio),
		nullString(usr.Avatar), string(usr.Role), usr.IsActive, null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		usr.UpdatedAt.UTC(), nullTime(usr.LastLogin),
	)
	if err != nil {
		if _, ok := violation(err, uniqueViolation); ok {
			return user.User{}, translate(err, "updating user", userConstraints)
		}
		return user.User{}, notFound(err, user.ErrNotFound, "updating user")
	}
	return row.toUser(), nil
}
