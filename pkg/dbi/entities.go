package dbi

import "context"

// Named singleton lookup/insert pairs, one per ID class in spec.md §4.3.
// pkg/store's generic resolver loop takes a dbLookup/dbInsert pair of
// these as arguments; the method names here (LookupCallsignID,
// InsertCallsign, ...) name the ID class each pair serves.

func (d *DBI) LookupCallsignID(ctx context.Context, name string) (bool, string, error) {
	return d.Lookup(ctx, entityCallsign, name)
}

func (d *DBI) InsertCallsign(ctx context.Context, name string) (bool, string, error) {
	return d.Insert(ctx, entityCallsign, name)
}

func (d *DBI) LookupObjectNameID(ctx context.Context, name string) (bool, string, error) {
	return d.Lookup(ctx, entityObjectName, name)
}

func (d *DBI) InsertObjectName(ctx context.Context, name string) (bool, string, error) {
	return d.Insert(ctx, entityObjectName, name)
}

func (d *DBI) LookupDestinationID(ctx context.Context, name string) (bool, string, error) {
	return d.Lookup(ctx, entityDest, name)
}

func (d *DBI) InsertDestination(ctx context.Context, name string) (bool, string, error) {
	return d.Insert(ctx, entityDest, name)
}

func (d *DBI) LookupDigiID(ctx context.Context, name string) (bool, string, error) {
	return d.Lookup(ctx, entityDigi, name)
}

func (d *DBI) InsertDigi(ctx context.Context, name string) (bool, string, error) {
	return d.Insert(ctx, entityDigi, name)
}

func (d *DBI) LookupMaidenheadID(ctx context.Context, locator string) (bool, string, error) {
	return d.Lookup(ctx, entityMaidenhead, locator)
}

func (d *DBI) InsertMaidenhead(ctx context.Context, locator string) (bool, string, error) {
	return d.Insert(ctx, entityMaidenhead, locator)
}

func (d *DBI) LookupPathID(ctx context.Context, value string) (bool, string, error) {
	return d.Lookup(ctx, entityPath, value)
}

func (d *DBI) InsertPath(ctx context.Context, value string) (bool, string, error) {
	return d.Insert(ctx, entityPath, value)
}

func (d *DBI) LookupStatusID(ctx context.Context, text string) (bool, string, error) {
	return d.Lookup(ctx, entityStatus, text)
}

func (d *DBI) InsertStatus(ctx context.Context, text string) (bool, string, error) {
	return d.Insert(ctx, entityStatus, text)
}
