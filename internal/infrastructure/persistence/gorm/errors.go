package gorm

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// sqlStateError is satisfied by pgconn.PgError from both pgx generations
type sqlStateError interface {
	SQLState() string
}

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint failure
// mentioning column
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	var stateErr sqlStateError
	if errors.As(err, &stateErr) && stateErr.SQLState() == pgUniqueViolation {
		return column == "" || strings.Contains(msg, column)
	}

	return strings.Contains(msg, "UNIQUE constraint failed") &&
		(column == "" || strings.Contains(msg, column))
}
