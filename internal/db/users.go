package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, cedula, email, p_nombre, s_nombre, p_apellido, s_apellido, telefono, password_hash, rol, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Cedula, &u.Email, &u.PNombre, &u.SNombre, &u.PApellido,
		&u.SApellido, &u.Telefono, &u.PasswordHash, &u.Rol, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams carries the fields required to insert a user.
type CreateUserParams struct {
	Cedula       string
	Email        string
	PNombre      string
	SNombre      pgtype.Text
	PApellido    string
	SApellido    pgtype.Text
	Telefono     string
	PasswordHash string
	Rol          string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO users (cedula, email, p_nombre, s_nombre, p_apellido, s_apellido, telefono, password_hash, rol)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+userColumns,
		arg.Cedula, arg.Email, arg.PNombre, arg.SNombre, arg.PApellido,
		arg.SApellido, arg.Telefono, arg.PasswordHash, arg.Rol,
	)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// ListUsersParams pages through the directory ordered by id.
type ListUsersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total)
	return total, err
}

// UpdateUserParams rewrites the mutable profile fields of a user.
type UpdateUserParams struct {
	ID        int64
	Cedula    string
	Email     string
	PNombre   string
	SNombre   pgtype.Text
	PApellido string
	SApellido pgtype.Text
	Telefono  string
	Rol       string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
UPDATE users
SET cedula = $2, email = $3, p_nombre = $4, s_nombre = $5, p_apellido = $6,
    s_apellido = $7, telefono = $8, rol = $9, updated_at = now()
WHERE id = $1
RETURNING `+userColumns,
		arg.ID, arg.Cedula, arg.Email, arg.PNombre, arg.SNombre,
		arg.PApellido, arg.SApellido, arg.Telefono, arg.Rol,
	)
	return scanUser(row)
}

// UpdateUserPasswordParams swaps the stored credential hash.
type UpdateUserPasswordParams struct {
	ID           int64
	PasswordHash string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, arg.ID, arg.PasswordHash)
	return err
}

func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
