// Package store implements the two-tier cache→DB resolver (spec.md §4.4):
// for every ID class the same cache-hit / db-hit / insert-and-retry shape
// applies, so this package collapses that repeated sequence into one
// generic resolve loop plus thin per-entity wrappers, and additionally
// owns the cache-only entities and the stats bookkeeping described in
// spec.md §4.2/§4.6.
package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aprsworld/ingestd/pkg/cache"
	"github.com/aprsworld/ingestd/pkg/dbi"
)

// resolveCycles/resolveSleep implement spec.md §4.4 step 3's "up to 3
// cycles ... sleep 3s" retry shape.
const (
	resolveCycles = 3
	resolveSleep  = 3 * time.Second
)

// lookupFunc/insertFunc are the DBI singleton method shapes every ID class
// in pkg/dbi shares (LookupCallsignID, InsertCallsign, ...).
type lookupFunc func(ctx context.Context, key string) (bool, string, error)
type insertFunc func(ctx context.Context, key string) (bool, string, error)

// Store wires the cache, DBI, and per-namespace stats together.
type Store struct {
	cache      cache.Cache
	db         *dbi.DBI
	defaultTTL time.Duration
	log        *logrus.Entry

	stats *statsRegistry
}

// New returns a Store bound to the given cache, DBI, and default ID-cache
// TTL (duplicates/position/positions/lastpositions use their own fixed
// TTLs per spec.md §4.2).
func New(c cache.Cache, db *dbi.DBI, defaultTTL time.Duration, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		cache:      c,
		db:         db,
		defaultTTL: defaultTTL,
		log:        log.WithField("component", "store"),
		stats:      newStatsRegistry(),
	}
}

// resolve implements the resolver loop from spec.md §4.4:
//  1. cache hit -> return
//  2. cache miss, db SELECT hit -> write-through to cache, return
//  3. db miss -> up to resolveCycles of {INSERT IGNORE; hit->cache+return;
//     else SELECT; hit->cache+return; else sleep}
//  4. all cycles exhausted -> failed
func (s *Store) resolve(ctx context.Context, namespace, key string, dbLookup lookupFunc, dbInsert insertFunc) (string, bool) {
	start := time.Now()
	defer func() { s.RecordLatency(namespace, time.Since(start)) }()

	s.stats.try(namespace)

	if v, found, _ := s.cache.Get(ctx, namespace, key); found {
		s.stats.hit(namespace)
		return v, true
	}

	if found, id, err := dbLookup(ctx, key); err == nil && found {
		s.stats.miss(namespace)
		s.writeThrough(ctx, namespace, key, id)
		return id, true
	}

	for cycle := 0; cycle < resolveCycles; cycle++ {
		inserted, id, err := dbInsert(ctx, key)
		if err == nil && inserted {
			s.stats.stored(namespace)
			s.writeThrough(ctx, namespace, key, id)
			return id, true
		}

		if found, id, err := dbLookup(ctx, key); err == nil && found {
			s.writeThrough(ctx, namespace, key, id)
			return id, true
		}

		if cycle < resolveCycles-1 {
			time.Sleep(resolveSleep)
		}
	}

	s.stats.failed(namespace)
	s.log.WithField("namespace", namespace).WithField("key", key).Warn("failed to resolve id after retry cycles")
	return "", false
}

func (s *Store) writeThrough(ctx context.Context, namespace, key, value string) {
	s.cache.Put(ctx, namespace, key, value, s.defaultTTL)
}

func (s *Store) GetCallsignID(ctx context.Context, name string) (string, bool) {
	return s.resolve(ctx, cache.NamespaceCallsign, name, s.db.LookupCallsignID, s.db.InsertCallsign)
}

func (s *Store) GetObjectNameID(ctx context.Context, name string) (string, bool) {
	return s.resolve(ctx, cache.NamespaceObjectName, name, s.db.LookupObjectNameID, s.db.InsertObjectName)
}

func (s *Store) GetDestinationID(ctx context.Context, name string) (string, bool) {
	return s.resolve(ctx, cache.NamespaceDest, name, s.db.LookupDestinationID, s.db.InsertDestination)
}

func (s *Store) GetDigiID(ctx context.Context, name string) (string, bool) {
	return s.resolve(ctx, cache.NamespaceDigi, name, s.db.LookupDigiID, s.db.InsertDigi)
}

func (s *Store) GetMaidenheadID(ctx context.Context, locator string) (string, bool) {
	return s.resolve(ctx, cache.NamespaceMaidenhead, locator, s.db.LookupMaidenheadID, s.db.InsertMaidenhead)
}

func (s *Store) GetPathID(ctx context.Context, value string) (string, bool) {
	return s.resolve(ctx, cache.NamespacePath, value, s.db.LookupPathID, s.db.InsertPath)
}

func (s *Store) GetStatusID(ctx context.Context, text string) (string, bool) {
	return s.resolve(ctx, cache.NamespaceStatus, text, s.db.LookupStatusID, s.db.InsertStatus)
}

// StatsSnapshot returns a point-in-time copy of the per-namespace counters
// accumulated since the last log-report cycle (3600s default, spec.md §3).
func (s *Store) StatsSnapshot() map[string]NamespaceStats {
	return s.stats.reportSnapshot()
}

// ResetStats clears the report-window counters, called after each
// log-report cycle reads its snapshot.
func (s *Store) ResetStats() {
	s.stats.reset()
}

// ProfileSnapshot returns a point-in-time copy of the per-namespace
// latency running means accumulated since the last log-report cycle.
func (s *Store) ProfileSnapshot() map[string]ProfileBucket {
	return s.stats.reportProfileSnapshot()
}

// TelemetryStatsSnapshot returns a point-in-time copy of the per-namespace
// counters accumulated since the last telemetry-emit cycle (5s default,
// spec.md §3's independently-reset "second copy").
func (s *Store) TelemetryStatsSnapshot() map[string]NamespaceStats {
	return s.stats.telemetrySnapshot()
}

// TelemetryProfileSnapshot returns a point-in-time copy of the
// per-namespace latency running means accumulated since the last
// telemetry-emit cycle.
func (s *Store) TelemetryProfileSnapshot() map[string]ProfileBucket {
	return s.stats.telemetryProfileSnapshot()
}

// ResetTelemetryStats clears the telemetry-window counters and profiles,
// called after each telemetry-emit cycle reads its snapshot.
func (s *Store) ResetTelemetryStats() {
	s.stats.resetTelemetry()
}

// RecordLatency feeds one latency sample into a namespace's report and
// telemetry profile buckets. resolve records one sample per ID resolution;
// GetIconID and the cache-only entity calls are not timed.
func (s *Store) RecordLatency(namespace string, d time.Duration) {
	s.stats.recordLatency(namespace, d)
}
