package adapters

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// ErrUniqueViolation marks a driver error caused by a unique constraint.
var ErrUniqueViolation = errors.New("unique constraint violated")

// classify joins ErrUniqueViolation onto driver errors that report SQLSTATE 23505, for pgx and lib/pq alike.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return errors.Join(ErrUniqueViolation, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return errors.Join(ErrUniqueViolation, err)
	}

	return err
}
