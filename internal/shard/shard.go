// Package shard maps item and shop identifiers onto instance indexes so
// that, for a fixed instance count, no two instances ever own the same id.
package shard

import (
	"hash/fnv"
	"strconv"
)

// Spec describes this instance's slice of the keyspace.
type Spec struct {
	Index int
	Count int
	UUID  bool // ids are opaque strings rather than integers
}

// Owns reports whether this instance is responsible for id.
func (s Spec) Owns(id string) bool {
	return Of(id, s.Count, s.UUID) == s.Index
}

// Of returns the shard index for id in [0, count). Integer ids use plain
// modulo, kept non-negative for any input. Opaque ids use a 32-bit FNV-1a
// hash; any stable, roughly uniform hash works here, and a malformed
// integer id falls back to the same hash so every id maps to exactly one
// shard.
func Of(id string, count int, uuidMode bool) int {
	if count <= 1 {
		return 0
	}
	if !uuidMode {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return int(((n % int64(count)) + int64(count)) % int64(count))
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(count))
}
