package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
)

const (
	httpStatusBadRequest = 400
	httpStatusNotFound   = 404
)

type queryProvider interface {
	GetUserByID(ctx context.Context, id int64) (db.User, error)
	ListUsers(ctx context.Context, arg db.ListUsersParams) ([]db.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUser(ctx context.Context, arg db.UpdateUserParams) (db.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

var validRoles = map[string]bool{
	"cliente":  true,
	"empleado": true,
	"admin":    true,
}

// User is the directory view of an account, without credential material.
type User struct {
	ID        int64     `json:"id"`
	Cedula    string    `json:"cedula"`
	PNombre   string    `json:"pNombre"`
	SNombre   string    `json:"sNombre,omitempty"`
	PApellido string    `json:"pApellido"`
	SApellido string    `json:"sApellido,omitempty"`
	Nombre    string    `json:"nombre"`
	Email     string    `json:"email"`
	Telefono  string    `json:"telefono"`
	Rol       string    `json:"rol"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input captures the mutable profile fields. Empty fields keep their
// current value; role changes must name a known role.
type Input struct {
	Cedula    string `json:"cedula"`
	Email     string `json:"email"`
	PNombre   string `json:"pNombre"`
	SNombre   string `json:"sNombre"`
	PApellido string `json:"pApellido"`
	SApellido string `json:"sApellido"`
	Telefono  string `json:"telefono"`
	Rol       string `json:"rol"`
}

// Service manages the account directory. Registration and passwords are
// handled by the auth service; this covers the admin-facing rest.
type Service struct {
	Q queryProvider
}

// Get returns a single account by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	row, err := s.Q.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NewAppError("NOT_FOUND", "user not found", httpStatusNotFound, nil)
		}
		return User{}, err
	}
	return convertUser(row), nil
}

// List returns a paginated slice of the directory plus the total count.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, int64, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	rows, err := s.Q.ListUsers(ctx, db.ListUsersParams{
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Q.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, convertUser(row))
	}
	return users, total, nil
}

// Update applies the provided profile fields over the stored record.
func (s *Service) Update(ctx context.Context, id int64, in Input) (User, error) {
	current, err := s.Q.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NewAppError("NOT_FOUND", "user not found", httpStatusNotFound, nil)
		}
		return User{}, err
	}

	params := db.UpdateUserParams{
		ID:        current.ID,
		Cedula:    current.Cedula,
		Email:     current.Email,
		PNombre:   current.PNombre,
		SNombre:   current.SNombre,
		PApellido: current.PApellido,
		SApellido: current.SApellido,
		Telefono:  current.Telefono,
		Rol:       current.Rol,
	}
	if v := strings.TrimSpace(in.Cedula); v != "" {
		params.Cedula = v
	}
	if v := strings.TrimSpace(strings.ToLower(in.Email)); v != "" {
		params.Email = v
	}
	if v := strings.TrimSpace(in.PNombre); v != "" {
		params.PNombre = v
	}
	if v := strings.TrimSpace(in.SNombre); v != "" {
		params.SNombre = pgtype.Text{String: v, Valid: true}
	}
	if v := strings.TrimSpace(in.PApellido); v != "" {
		params.PApellido = v
	}
	if v := strings.TrimSpace(in.SApellido); v != "" {
		params.SApellido = pgtype.Text{String: v, Valid: true}
	}
	if v := strings.TrimSpace(in.Telefono); v != "" {
		params.Telefono = v
	}
	if v := strings.TrimSpace(strings.ToLower(in.Rol)); v != "" {
		if !validRoles[v] {
			return User{}, common.NewAppError("VALIDATION_ERROR", "unknown role: "+in.Rol, httpStatusBadRequest, nil)
		}
		params.Rol = v
	}

	updated, err := s.Q.UpdateUser(ctx, params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, common.NewAppError("ACCOUNT_EXISTS", "email or cedula is already registered", 409, err)
		}
		return User{}, err
	}
	return convertUser(updated), nil
}

// Delete removes an account. Accounts referenced by parcels or invoices
// are protected by foreign keys and reported as a validation error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Q.GetUserByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewAppError("NOT_FOUND", "user not found", httpStatusNotFound, nil)
		}
		return err
	}
	if err := s.Q.DeleteUser(ctx, id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return common.NewAppError("USER_IN_USE", "user has parcels or invoices and cannot be deleted", httpStatusBadRequest, err)
		}
		return err
	}
	return nil
}

func convertUser(row db.User) User {
	return User{
		ID:        row.ID,
		Cedula:    row.Cedula,
		PNombre:   row.PNombre,
		SNombre:   textToString(row.SNombre),
		PApellido: row.PApellido,
		SApellido: textToString(row.SApellido),
		Nombre:    row.FullName(),
		Email:     row.Email,
		Telefono:  row.Telefono,
		Rol:       row.Rol,
		CreatedAt: timeFromPG(row.CreatedAt),
		UpdatedAt: timeFromPG(row.UpdatedAt),
	}
}

func textToString(value pgtype.Text) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

func timeFromPG(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
