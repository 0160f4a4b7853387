package dbi

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/aprsworld/ingestd/internal/apperrors"
	"github.com/aprsworld/ingestd/internal/validation"
)

// entity describes one singleton lookup/insert table: a name column keyed
// by a unique constraint, returning an auto-increment id. Every ID class
// in spec.md §4.3 ("same shape for name, dest, digi, maidenhead, path,
// status") is an instance of this shape. directives is the validation
// idiom from spec.md §4.1: bind NULL rather than a key that fails it.
type entity struct {
	table      string
	column     string
	directives string
}

var (
	entityCallsign   = entity{table: "callsign", column: "name", directives: "maxlen:10"}
	entityObjectName = entity{table: "object_name", column: "name", directives: "maxlen:10"}
	entityDest       = entity{table: "destination", column: "name", directives: "maxlen:10"}
	entityDigi       = entity{table: "digis", column: "name", directives: "maxlen:10"}
	entityMaidenhead = entity{table: "maidenhead", column: "locator", directives: "maxlen:9"}
	entityPath       = entity{table: "path", column: "value", directives: "maxlen:256"}
	entityStatus     = entity{table: "statuses", column: "text", directives: "maxlen:64"}
)

// Lookup performs the SELECT half of the singleton shape: find the id of
// an existing row with e.column == key. Returns (false, "", nil) on a
// plain miss. A key that is empty or fails e.directives binds SQL NULL
// (spec.md §4.1), which can never match an existing row, so the caller
// falls through to Insert the same way a genuine miss would.
func (d *DBI) Lookup(ctx context.Context, e entity, key string) (bool, string, error) {
	var id string
	query := `SELECT id FROM ` + e.table + ` WHERE ` + e.column + ` = ?`
	err := d.db.GetContext(ctx, &id, query, validation.BindOrNull(e.directives, key))
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", apperrors.Wrapf(err, apperrors.TypeDatabase, "lookup failed on %s", e.table)
	}
	return true, id, nil
}

// Insert performs the INSERT IGNORE half: attempt to create a new row.
// inserted is false when the row already existed (another worker won the
// race or the db chose to coalesce); the caller re-SELECTs in that case
// per spec.md §4.4 step 3. As in Lookup, a key failing e.directives binds
// SQL NULL rather than poisoning the column.
func (d *DBI) Insert(ctx context.Context, e entity, key string) (inserted bool, id string, err error) {
	query := `INSERT IGNORE INTO ` + e.table + ` (` + e.column + `, create_ts) VALUES (?, UNIX_TIMESTAMP())`
	res, execErr := d.db.ExecContext(ctx, query, validation.BindOrNull(e.directives, key))
	if execErr != nil {
		return false, "", apperrors.Wrapf(execErr, apperrors.TypeDatabase, "insert failed on %s", e.table)
	}
	ok, lastID, err := insertIgnoreResult(res)
	if err != nil {
		return false, "", apperrors.Wrapf(err, apperrors.TypeDatabase, "reading insert result failed on %s", e.table)
	}
	if !ok {
		return false, "", nil
	}
	return true, strconv.FormatInt(lastID, 10), nil
}
