package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/cargotrack/backend-cargo/internal/common"
	"github.com/cargotrack/backend-cargo/internal/db"
)

type fakeQueries struct {
	users       map[int64]db.User
	sessions    map[string]db.Session
	resets      map[string]db.PasswordReset
	nextUserID  int64
	nextSessID  int64
	nextResetID int64
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		users:       map[int64]db.User{},
		sessions:    map[string]db.Session{},
		resets:      map[string]db.PasswordReset{},
		nextUserID:  1,
		nextSessID:  1,
		nextResetID: 1,
	}
}

func (f *fakeQueries) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	for _, u := range f.users {
		if u.Email == arg.Email || u.Cedula == arg.Cedula {
			return db.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	u := db.User{
		ID:           f.nextUserID,
		Cedula:       arg.Cedula,
		Email:        arg.Email,
		PNombre:      arg.PNombre,
		SNombre:      arg.SNombre,
		PApellido:    arg.PApellido,
		SApellido:    arg.SApellido,
		Telefono:     arg.Telefono,
		PasswordHash: arg.PasswordHash,
		Rol:          arg.Rol,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	f.nextUserID++
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeQueries) GetUserByID(_ context.Context, id int64) (db.User, error) {
	u, ok := f.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeQueries) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQueries) CreateSession(_ context.Context, arg db.CreateSessionParams) (db.Session, error) {
	s := db.Session{
		ID:        f.nextSessID,
		UserID:    arg.UserID,
		TokenHash: arg.TokenHash,
		UserAgent: arg.UserAgent,
		IP:        arg.IP,
		ExpiresAt: arg.ExpiresAt,
	}
	f.nextSessID++
	f.sessions[s.TokenHash] = s
	return s, nil
}

func (f *fakeQueries) GetSessionByToken(_ context.Context, tokenHash string) (db.Session, error) {
	s, ok := f.sessions[tokenHash]
	if !ok {
		return db.Session{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeQueries) RotateSessionToken(_ context.Context, arg db.RotateSessionTokenParams) error {
	for hash, s := range f.sessions {
		if s.ID == arg.ID {
			delete(f.sessions, hash)
			s.TokenHash = arg.TokenHash
			s.ExpiresAt = arg.ExpiresAt
			f.sessions[s.TokenHash] = s
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeQueries) DeleteSessionByToken(_ context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeQueries) DeleteSessionsByUser(_ context.Context, userID int64) error {
	for hash, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func (f *fakeQueries) CreatePasswordReset(_ context.Context, arg db.CreatePasswordResetParams) (db.PasswordReset, error) {
	r := db.PasswordReset{
		ID:        f.nextResetID,
		UserID:    arg.UserID,
		Token:     arg.Token,
		ExpiresAt: arg.ExpiresAt,
	}
	f.nextResetID++
	f.resets[r.Token] = r
	return r, nil
}

func (f *fakeQueries) GetPasswordResetByToken(_ context.Context, token string) (db.PasswordReset, error) {
	r, ok := f.resets[token]
	if !ok {
		return db.PasswordReset{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeQueries) UsePasswordReset(_ context.Context, token string) error {
	r, ok := f.resets[token]
	if !ok {
		return pgx.ErrNoRows
	}
	r.UsedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	f.resets[token] = r
	return nil
}

func (f *fakeQueries) UpdateUserPassword(_ context.Context, arg db.UpdateUserPasswordParams) error {
	u, ok := f.users[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.PasswordHash = arg.PasswordHash
	f.users[arg.ID] = u
	return nil
}

func (f *fakeQueries) DeletePasswordResetsByUser(_ context.Context, userID int64) error {
	for token, r := range f.resets {
		if r.UserID == userID {
			delete(f.resets, token)
		}
	}
	return nil
}

func newTestService(t *testing.T, q queryProvider) *Service {
	t.Helper()
	svc, err := NewService(Config{Queries: q, Secret: "test-secret"})
	require.NoError(t, err)
	return svc
}

func registerCustomer(t *testing.T, svc *Service, email string) User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Cedula:    "V-" + email,
		Email:     email,
		PNombre:   "Ana",
		PApellido: "Marcano",
		Telefono:  "+58 412 5550000",
		Password:  "correct horse",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterAssignsCustomerRole(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)

	user := registerCustomer(t, svc, "ana@example.com")
	require.Equal(t, RoleCustomer, user.Rol)
	require.Equal(t, "Ana Marcano", user.Nombre)

	stored := q.users[user.ID]
	require.NotEqual(t, "correct horse", stored.PasswordHash)
	match, err := argon2id.ComparePasswordAndHash("correct horse", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, match)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	registerCustomer(t, svc, "ana@example.com")

	_, err := svc.Register(context.Background(), RegisterInput{
		Cedula:    "V-ana@example.com",
		Email:     "ana@example.com",
		PNombre:   "Ana",
		PApellido: "Marcano",
		Telefono:  "+58 412 5550000",
		Password:  "correct horse",
	})
	requireAppCode(t, err, "ACCOUNT_EXISTS", 409)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService(t, newFakeQueries())
	_, err := svc.Register(context.Background(), RegisterInput{
		Cedula:    "V-1",
		Email:     "ana@example.com",
		PNombre:   "Ana",
		PApellido: "Marcano",
		Telefono:  "1",
		Password:  "short",
	})
	requireAppCode(t, err, "VALIDATION_ERROR", 400)
}

func TestLoginIssuesParsableAccessToken(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	user := registerCustomer(t, svc, "ana@example.com")

	result, err := svc.Login(context.Background(), "Ana@Example.com", "correct horse", "go-test", "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.NotEmpty(t, result.RefreshToken)
	require.Len(t, q.sessions, 1)

	subject, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)
}

func TestLoginWrongPassword(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	registerCustomer(t, svc, "ana@example.com")

	_, err := svc.Login(context.Background(), "ana@example.com", "not the password", "", "")
	requireAppCode(t, err, "INVALID_CREDENTIALS", 401)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(t, newFakeQueries())
	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever123", "", "")
	requireAppCode(t, err, "INVALID_CREDENTIALS", 401)
}

func TestRefreshRotatesSession(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	registerCustomer(t, svc, "ana@example.com")

	login, err := svc.Login(context.Background(), "ana@example.com", "correct horse", "", "")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.Len(t, q.sessions, 1)

	// The old token is spent after rotation.
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	requireAppCode(t, err, "UNAUTHORIZED", 401)

	_, err = svc.Refresh(context.Background(), refreshed.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshExpiredSession(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	registerCustomer(t, svc, "ana@example.com")

	login, err := svc.Login(context.Background(), "ana@example.com", "correct horse", "", "")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(48 * time.Hour) })
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	requireAppCode(t, err, "UNAUTHORIZED", 401)
	require.Empty(t, q.sessions)
}

func TestLogoutRevokesSession(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	registerCustomer(t, svc, "ana@example.com")

	login, err := svc.Login(context.Background(), "ana@example.com", "correct horse", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken))
	require.Empty(t, q.sessions)

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	requireAppCode(t, err, "UNAUTHORIZED", 401)
}

func TestParseAccessTokenExpired(t *testing.T) {
	svc := newTestService(t, newFakeQueries())
	registerCustomer(t, svc, "ana@example.com")

	past := time.Now().Add(-2 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	login, err := svc.Login(context.Background(), "ana@example.com", "correct horse", "", "")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(login.AccessToken)
	requireAppCode(t, err, "UNAUTHORIZED", 401)
}

func TestForgotAndResetFlow(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	user := registerCustomer(t, svc, "ana@example.com")

	login, err := svc.Login(context.Background(), "ana@example.com", "correct horse", "", "")
	require.NoError(t, err)

	mail := &common.InMemoryEmail{}
	require.NoError(t, svc.Forgot(context.Background(), "ana@example.com", "https://cargotrack.test", mail))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "ana@example.com", mail.Outbox[0].To)
	require.Len(t, q.resets, 1)

	var token string
	for tok := range q.resets {
		token = tok
	}

	require.NoError(t, svc.Reset(context.Background(), token, "battery staple"))

	// Sessions are revoked and the token is single use.
	require.Empty(t, q.sessions)
	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	requireAppCode(t, err, "UNAUTHORIZED", 401)
	err = svc.Reset(context.Background(), token, "battery staple 2")
	requireAppCode(t, err, "INVALID_TOKEN", 400)

	_, err = svc.Login(context.Background(), "ana@example.com", "correct horse", "", "")
	requireAppCode(t, err, "INVALID_CREDENTIALS", 401)
	relogin, err := svc.Login(context.Background(), "ana@example.com", "battery staple", "", "")
	require.NoError(t, err)
	require.Equal(t, user.ID, relogin.User.ID)
}

func TestForgotUnknownEmailIsSilent(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)

	mail := &common.InMemoryEmail{}
	require.NoError(t, svc.Forgot(context.Background(), "nobody@example.com", "", mail))
	require.Empty(t, mail.Outbox)
	require.Empty(t, q.resets)
}

func TestResetExpiredToken(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	registerCustomer(t, svc, "ana@example.com")

	mail := common.NopEmailSender{}
	require.NoError(t, svc.Forgot(context.Background(), "ana@example.com", "", mail))

	var token string
	for tok := range q.resets {
		token = tok
	}

	svc.WithNow(func() time.Time { return time.Now().Add(72 * time.Hour) })
	err := svc.Reset(context.Background(), token, "battery staple")
	requireAppCode(t, err, "INVALID_TOKEN", 400)
}

func TestRoleLookup(t *testing.T) {
	q := newFakeQueries()
	svc := newTestService(t, q)
	user := registerCustomer(t, svc, "ana@example.com")

	role, err := svc.Role(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, RoleCustomer, role)

	_, err = svc.Role(context.Background(), 9999)
	require.Error(t, err)
}

func requireAppCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}
