package db

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// IsUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint failure. When constraint is provided, the failure message must
// also mention it (SQLite names the offending columns, e.g.
// "vouchers.date, vouchers.seq_no").
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	matched := false
	if errors.As(err, &sqliteErr) {
		matched = sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	msg := err.Error()
	if !matched {
		matched = strings.Contains(msg, "UNIQUE constraint failed")
	}
	if !matched {
		return false
	}
	if constraint != "" {
		return strings.Contains(msg, constraint)
	}
	return true
}

// IsDuplicateColumn reports whether err is SQLite's "duplicate column name"
// failure raised by ALTER TABLE ... ADD COLUMN.
func IsDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
