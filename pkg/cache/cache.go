// Package cache provides the namespaced get/put-with-TTL KV abstraction
// used by pkg/store, backed by Redis, wrapped in a circuit breaker so a
// cache outage degrades the system to SQL-only rather than propagating
// errors to callers (spec.md §3 invariant 4, §4.2).
package cache

import (
	"context"
	"time"
)

// Namespaces used across the ingest pipeline (spec.md §4.2).
const (
	NamespaceCallsign      = "callsign"
	NamespaceObjectName    = "objectname"
	NamespaceDest          = "dest"
	NamespaceDigi          = "digi"
	NamespaceIcon          = "icon"
	NamespacePath          = "path"
	NamespaceMaidenhead    = "maidenhead"
	NamespaceStatus        = "status"
	NamespaceMessage       = "message"
	NamespaceDuplicates    = "duplicates"
	NamespacePosition      = "position"
	NamespacePositions     = "positions"
	NamespaceLastPositions = "lastpositions"
	NamespaceLocatorSeen   = "locatorseen"
)

// Explicit TTLs (spec.md §4.2); all other namespaces use the configured
// default TTL.
const (
	TTLDuplicates    = 3600 * time.Second
	TTLPosition      = 3600 * time.Second
	TTLPositions     = 86400 * time.Second
	TTLLastPositions = 86400 * time.Second
)

// Cache is the namespaced KV surface Store depends on. A miss is reported
// as (_, false, nil); an actual backend error is reported as (_, false,
// err) by the underlying implementation, but every caller in this module
// talks to a Cache through the circuit breaker, which never returns err.
type Cache interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Put(ctx context.Context, namespace, key, value string, ttl time.Duration) error
	Close() error
}
