package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the pg repositories translate into common errors.
const (
	pgUniqueViolation           = "23505"
	pgInvalidTextRepresentation = "22P02"
)

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// isMissing treats a malformed id the same as an absent row: no UUID column
// can hold it, so nothing with that id exists.
func isMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || hasPgCode(err, pgInvalidTextRepresentation)
}
