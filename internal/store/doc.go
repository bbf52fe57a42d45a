// Package store is the typed replicated key/value store shared by robot and surface.
//
// Ownership boundary:
// - typed tokens over an erased entry map
// - owned (local) vs shared (remote) update origin
// - staleness-aware reads
// - per-key wire adapters
//
// Mutations are expected from one owning goroutine per Store. Readers on other
// goroutines see whole immutable entries swapped into the map.
package store
