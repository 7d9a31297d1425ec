package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// isConstraintViolation はerrが一意・CHECK・外部キー制約違反かどうかを判定する。
func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case pgUniqueViolation, pgCheckViolation, pgForeignKeyViolation:
		return true
	default:
		return false
	}
}
