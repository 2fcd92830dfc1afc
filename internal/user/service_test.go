package user

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
)

type fakeQueries struct {
	users      map[int64]db.User
	referenced map[int64]bool
}

func newFakeQueries() *fakeQueries {
	f := &fakeQueries{users: map[int64]db.User{}, referenced: map[int64]bool{}}
	f.users[1] = db.User{
		ID: 1, Cedula: "V-100", Email: "admin@cargotrack.test",
		PNombre: "Luisa", PApellido: "Paredes", Telefono: "+58 212 5550001", Rol: "admin",
	}
	f.users[2] = db.User{
		ID: 2, Cedula: "V-200", Email: "ana@example.com",
		PNombre: "Ana", PApellido: "Marcano", Telefono: "+58 412 5550000", Rol: "cliente",
	}
	return f
}

func (f *fakeQueries) GetUserByID(_ context.Context, id int64) (db.User, error) {
	u, ok := f.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeQueries) ListUsers(_ context.Context, arg db.ListUsersParams) ([]db.User, error) {
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []db.User
	for i, id := range ids {
		if i < int(arg.Offset) {
			continue
		}
		if len(out) == int(arg.Limit) {
			break
		}
		out = append(out, f.users[id])
	}
	return out, nil
}

func (f *fakeQueries) CountUsers(_ context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeQueries) UpdateUser(_ context.Context, arg db.UpdateUserParams) (db.User, error) {
	u, ok := f.users[arg.ID]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	for id, other := range f.users {
		if id != arg.ID && (other.Email == arg.Email || other.Cedula == arg.Cedula) {
			return db.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u.Cedula = arg.Cedula
	u.Email = arg.Email
	u.PNombre = arg.PNombre
	u.SNombre = arg.SNombre
	u.PApellido = arg.PApellido
	u.SApellido = arg.SApellido
	u.Telefono = arg.Telefono
	u.Rol = arg.Rol
	f.users[arg.ID] = u
	return u, nil
}

func (f *fakeQueries) DeleteUser(_ context.Context, id int64) error {
	if f.referenced[id] {
		return &pgconn.PgError{Code: "23503", ConstraintName: "parcels_customer_id_fkey"}
	}
	delete(f.users, id)
	return nil
}

func TestListPagination(t *testing.T) {
	svc := &Service{Q: newFakeQueries()}

	users, total, err := svc.List(context.Background(), 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, users, 1)
	require.EqualValues(t, 1, users[0].ID)

	users, _, err = svc.List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.EqualValues(t, 2, users[0].ID)
}

func TestUpdatePartialFieldsKeepRest(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}

	updated, err := svc.Update(context.Background(), 2, Input{Telefono: "+58 424 5551234"})
	require.NoError(t, err)
	require.Equal(t, "+58 424 5551234", updated.Telefono)
	require.Equal(t, "ana@example.com", updated.Email)
	require.Equal(t, "cliente", updated.Rol)
}

func TestUpdatePromotesRole(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}

	updated, err := svc.Update(context.Background(), 2, Input{Rol: "empleado"})
	require.NoError(t, err)
	require.Equal(t, "empleado", updated.Rol)
	require.Equal(t, "empleado", q.users[2].Rol)
}

func TestUpdateRejectsUnknownRole(t *testing.T) {
	svc := &Service{Q: newFakeQueries()}
	_, err := svc.Update(context.Background(), 2, Input{Rol: "superuser"})
	requireAppCode(t, err, "VALIDATION_ERROR", 400)
}

func TestUpdateDuplicateEmail(t *testing.T) {
	svc := &Service{Q: newFakeQueries()}
	_, err := svc.Update(context.Background(), 2, Input{Email: "admin@cargotrack.test"})
	requireAppCode(t, err, "ACCOUNT_EXISTS", 409)
}

func TestUpdateMissingUser(t *testing.T) {
	svc := &Service{Q: newFakeQueries()}
	_, err := svc.Update(context.Background(), 99, Input{Telefono: "x"})
	requireAppCode(t, err, "NOT_FOUND", 404)
}

func TestDeleteReferencedUser(t *testing.T) {
	q := newFakeQueries()
	q.referenced[2] = true
	svc := &Service{Q: q}

	err := svc.Delete(context.Background(), 2)
	requireAppCode(t, err, "USER_IN_USE", 400)
	require.Contains(t, q.users, int64(2))
}

func TestDeleteUser(t *testing.T) {
	q := newFakeQueries()
	svc := &Service{Q: q}

	require.NoError(t, svc.Delete(context.Background(), 2))
	require.NotContains(t, q.users, int64(2))

	err := svc.Delete(context.Background(), 2)
	requireAppCode(t, err, "NOT_FOUND", 404)
}

func TestGetIncludesFullName(t *testing.T) {
	q := newFakeQueries()
	u := q.users[2]
	u.SNombre = pgtype.Text{String: "Lucia", Valid: true}
	q.users[2] = u
	svc := &Service{Q: q}

	got, err := svc.Get(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "Ana Lucia Marcano", got.Nombre)
}

func requireAppCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}
