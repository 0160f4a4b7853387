package dbi

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aprsworld/ingestd/internal/apperrors"
)

// IconRow is one row of the getIconBySymbols stored procedure's result
// (spec.md §6): an icon id, its base image path, and whether the image is
// direction-dependent.
type IconRow struct {
	ID        string
	Image     string
	Directional bool
}

// LookupIcon calls the getIconBySymbols(table, code, course) stored
// procedure. course is passed through even though most icon rows ignore
// it; the procedure itself decides whether a direction-specific variant
// exists.
func (d *DBI) LookupIcon(ctx context.Context, symbolTable, symbolCode string, course float64) (bool, IconRow, error) {
	var row struct {
		ID    string `db:"id"`
		Image string `db:"image"`
		Dir   string `db:"dir"`
	}
	err := d.db.GetContext(ctx, &row,
		`CALL getIconBySymbols(?, ?, ?)`, symbolTable, symbolCode, course)
	if errors.Is(err, sql.ErrNoRows) {
		return false, IconRow{}, nil
	}
	if err != nil {
		return false, IconRow{}, apperrors.Wrap(err, apperrors.TypeDatabase, "getIconBySymbols failed")
	}
	return true, IconRow{ID: row.ID, Image: row.Image, Directional: row.Dir == "Y"}, nil
}
