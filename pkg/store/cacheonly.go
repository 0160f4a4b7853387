package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/aprsworld/ingestd/pkg/cache"
)

// encodeKV/decodeKV implement the ";"-separated "key=value" record layout
// used throughout the cache-only entities and the broker publish
// envelopes (spec.md §4.5/§4.6, "the encoding recognized by the external
// Vars utility").
func encodeKV(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ";")
}

func decodeKV(record string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		fields[k] = v
	}
	return fields
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CheckDuplicate implements spec.md §4.5's duplicate check: key =
// MD5(lowercase(source+":"+body)), namespace "duplicates", TTL 3600. If a
// stored record's ct is within 30s of now, the packet is a duplicate and
// no new record is written; otherwise a fresh record is written and the
// caller proceeds.
func (s *Store) CheckDuplicate(ctx context.Context, source, body string, now time.Time) bool {
	key := md5Hex(strings.ToLower(source) + ":" + body)

	if packed, found, _ := s.cache.Get(ctx, cache.NamespaceDuplicates, key); found {
		fields := decodeKV(packed)
		if ctStr, ok := fields["ct"]; ok {
			if ct, err := strconv.ParseInt(ctStr, 10, 64); err == nil {
				if now.Unix()-ct < 30 {
					return true
				}
			}
		}
	}

	record := encodeKV(map[string]string{"sr": source, "ct": strconv.FormatInt(now.Unix(), 10)})
	s.cache.Put(ctx, cache.NamespaceDuplicates, key, record, cache.TTLDuplicates)
	return false
}

// PositionRecord is the cache-only "position" namespace record used by
// the worker's position-error check (spec.md §4.5).
type PositionRecord struct {
	Source      string
	Latitude    float64
	Longitude   float64
	CreateTS    int64
	CommentHash string
}

// GetPositionRecord returns the prior fix for source, if any.
func (s *Store) GetPositionRecord(ctx context.Context, source string) (PositionRecord, bool) {
	packed, found, _ := s.cache.Get(ctx, cache.NamespacePosition, strings.ToLower(source))
	if !found {
		return PositionRecord{}, false
	}
	fields := decodeKV(packed)
	lat, _ := strconv.ParseFloat(fields["la"], 64)
	lon, _ := strconv.ParseFloat(fields["ln"], 64)
	ct, _ := strconv.ParseInt(fields["ct"], 10, 64)
	return PositionRecord{
		Source:      fields["sr"],
		Latitude:    lat,
		Longitude:   lon,
		CreateTS:    ct,
		CommentHash: fields["cm"],
	}, true
}

// PutPositionRecord stores the latest fix for source, overwriting any
// prior record (spec.md §4.5 "After ... write a new record").
func (s *Store) PutPositionRecord(ctx context.Context, source string, rec PositionRecord) {
	packed := encodeKV(map[string]string{
		"sr": source,
		"la": strconv.FormatFloat(rec.Latitude, 'f', 6, 64),
		"ln": strconv.FormatFloat(rec.Longitude, 'f', 6, 64),
		"ct": strconv.FormatInt(rec.CreateTS, 10),
		"cm": rec.CommentHash,
	})
	s.cache.Put(ctx, cache.NamespacePosition, strings.ToLower(source), packed, cache.TTLPosition)
}

const positionsCap = 100
const positionsMaxAge = 86400

// AppendPosition implements the "positions" cache layout keyed by
// callsign id (spec.md §4.6): prepend the new line, then re-emit previous
// lines filtering out invalid, stale (>86400s), or over-the-100-entry-cap
// records. Objects and posdup packets are never recorded (enforced by the
// caller not invoking this for those packets).
func (s *Store) AppendPosition(ctx context.Context, callsignID string, lat, lon float64, ts int64) {
	newLine := encodeKV(map[string]string{
		"L": strconv.FormatFloat(lat, 'f', 6, 64),
		"G": strconv.FormatFloat(lon, 'f', 6, 64),
		"T": strconv.FormatInt(ts, 10),
	})

	existing, _, _ := s.cache.Get(ctx, cache.NamespacePositions, callsignID)
	lines := []string{newLine}
	for _, line := range splitRecords(existing) {
		if len(lines) >= positionsCap {
			break
		}
		fields := decodeKV(line)
		lineTS, err := strconv.ParseInt(fields["T"], 10, 64)
		if err != nil {
			continue
		}
		if ts-lineTS > positionsMaxAge {
			continue
		}
		lines = append(lines, line)
	}

	s.cache.Put(ctx, cache.NamespacePositions, callsignID, strings.Join(lines, "\n"), cache.TTLPositions)
}

// AppendLastPosition implements the "lastpositions" cache layout keyed by
// maidenhead locator (spec.md §4.6): prepend the new line, then re-emit
// previous lines filtering out invalid (missing sr/ct), stale (>86400s),
// or same-source (replaced-in-place) records.
func (s *Store) AppendLastPosition(ctx context.Context, locator, source string, ts int64) {
	newLine := encodeKV(map[string]string{"sr": source, "ct": strconv.FormatInt(ts, 10)})

	existing, _, _ := s.cache.Get(ctx, cache.NamespaceLastPositions, locator)
	lines := []string{newLine}
	for _, line := range splitRecords(existing) {
		fields := decodeKV(line)
		sr, hasSR := fields["sr"]
		ctStr, hasCT := fields["ct"]
		if !hasSR || !hasCT {
			continue
		}
		lineTS, err := strconv.ParseInt(ctStr, 10, 64)
		if err != nil {
			continue
		}
		if ts-lineTS > positionsMaxAge {
			continue
		}
		if sr == source {
			continue
		}
		lines = append(lines, line)
	}

	s.cache.Put(ctx, cache.NamespaceLastPositions, locator, strings.Join(lines, "\n"), cache.TTLLastPositions)
}

func splitRecords(blob string) []string {
	if blob == "" {
		return nil
	}
	return strings.Split(blob, "\n")
}

// FlushLocatorsSeen writes each grid square the worker batched since its
// last locator flush to the "locatorseen" namespace with the default
// ID-cache TTL (spec.md §4.5 "Locator flush").
func (s *Store) FlushLocatorsSeen(ctx context.Context, locators []string) {
	for _, locator := range locators {
		s.cache.Put(ctx, cache.NamespaceLocatorSeen, locator, "1", s.defaultTTL)
	}
}
