package store

import (
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// pgErr wraps a pgx error. Connection-level failures become
// StoreUnavailableError so callers can tell an outage from a bad query.
func pgErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isPgUnavailable(err) {
		return eris.Wrap(errs.Unavailable(op, err), "postgres: "+op)
	}
	return eris.Wrap(err, "postgres: "+op)
}

func isPgUnavailable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P0x are shutdown states and
		// 53300 is too_many_connections.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0") || pgErr.Code == "53300"
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
