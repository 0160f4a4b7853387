// Package dbi is the SQL surface for the ingest pipeline (spec.md §4.3). It
// owns the long-lived *sqlx.DB connection, the one named prepared
// statement, and the raw lookup/insert/inject operations that pkg/store's
// resolver loop and pkg/worker's inject step call into. DBI never retries
// or sleeps; that policy belongs to pkg/store and pkg/worker.
package dbi

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aprsworld/ingestd/internal/apperrors"
)

// stmtLastPosition is pre-prepared at Open time because it is the
// highest-fanout write path (every POSITION packet upserts it).
const stmtLastPosition = "i_last_position"

const queryLastPosition = `
INSERT INTO last_position (packet_id, callsign_id, latitude, longitude, symbol_table, symbol_code, course, speed, altitude, comment, icon_id, name_id, create_ts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	packet_id = VALUES(packet_id), latitude = VALUES(latitude), longitude = VALUES(longitude),
	symbol_table = VALUES(symbol_table), symbol_code = VALUES(symbol_code), course = VALUES(course),
	speed = VALUES(speed), altitude = VALUES(altitude), comment = VALUES(comment),
	icon_id = VALUES(icon_id), name_id = VALUES(name_id), create_ts = VALUES(create_ts)
`

// DBI wraps the MySQL connection pool and the one named prepared
// statement. UseUUIDPacketIDs selects which InsertPacket shape callers get
// (spec.md §9 Open Question, resolved per SPEC_FULL.md).
type DBI struct {
	db               *sqlx.DB
	lastPositionStmt *sqlx.Stmt
	UseUUIDPacketIDs bool
}

// Open dials dsn via the MySQL driver, configures the pool, and prepares
// stmtLastPosition. Reconnection on a dropped connection is handled by the
// driver/pool, matching spec.md §4.3 ("reconnect is handled by the
// driver").
func Open(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int, useUUIDPacketIDs bool) (*DBI, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeDatabase, "failed to connect to database")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	stmt, err := db.PreparexContext(ctx, queryLastPosition)
	if err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.TypeDatabase, "failed to prepare "+stmtLastPosition)
	}

	return &DBI{db: db, lastPositionStmt: stmt, UseUUIDPacketIDs: useUUIDPacketIDs}, nil
}

// Close releases the prepared statement and connection pool.
func (d *DBI) Close() error {
	if d.lastPositionStmt != nil {
		d.lastPositionStmt.Close()
	}
	return d.db.Close()
}

// insertIgnoreResult reports whether an INSERT IGNORE actually inserted a
// row (LastInsertId() == 0 and RowsAffected() == 0 both signal "lost the
// race", per spec.md §4.3).
func insertIgnoreResult(res sql.Result) (inserted bool, id int64, err error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}
	if affected == 0 {
		return false, 0, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return false, 0, err
	}
	return id != 0, id, nil
}

// InsertPacket creates a new row in the packet table per observation and
// returns its id. When UseUUIDPacketIDs is set, a UUID generated here with
// uuid.New() is bound through UUID_TO_BIN(?) and returned as its string form;
// otherwise the table's AUTO_INCREMENT id is read back via
// LastInsertId() (spec.md §6, §9 Open Question; original_source/src/DBI.cpp
// ~1200-1273).
func (d *DBI) InsertPacket(ctx context.Context, createTS int64) (string, error) {
	if d.UseUUIDPacketIDs {
		id := uuid.New().String()
		_, err := d.db.ExecContext(ctx,
			`INSERT INTO packet (id, create_ts) VALUES (UUID_TO_BIN(?), ?)`, id, createTS)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.TypeDatabase, "failed to insert packet (uuid)")
		}
		return id, nil
	}

	res, err := d.db.ExecContext(ctx, `INSERT INTO packet (create_ts) VALUES (?)`, createTS)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeDatabase, "failed to insert packet (autoincrement)")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeDatabase, "failed to read packet insert id")
	}
	return strconv.FormatInt(id, 10), nil
}
