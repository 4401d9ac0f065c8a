// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// booking service to distinguish between different failure scenarios
// without looking at driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested reservation does not exist.
var ErrNotFound = errors.New("not found")

// ErrLineTaken is returned when the unique index on active reservation
// lines rejects a write: another reservation committed the same
// (resource, slot, date) first.
var ErrLineTaken = errors.New("reservation line already taken")

// activeLineIndex is the unique index that enforces one active line per
// (resource, slot, date).
const activeLineIndex = "uq_reservation_lines_active"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// isLineTaken reports a duplicate entry on the active line index.  Older
// servers omit the key name, so any duplicate without a named key counts.
func isLineTaken(err error) bool {
	if !isDuplicateKey(err) {
		return false
	}
	var me *mysql.MySQLError
	errors.As(err, &me)
	return strings.Contains(me.Message, activeLineIndex) || !strings.Contains(me.Message, "for key")
}
