package warehouse

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error class 23 covers integrity constraint violations; 23503 is
// foreign_key_violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
