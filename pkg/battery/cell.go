// Package battery mirrors battery state of charge reported through events.
package battery

import "sync/atomic"

// written marks a Cell that has been stored to at least once.
const written = 1 << 8

// Cell holds one state of charge reading. The level and the written flag
// share a single atomic word, so readers never see a torn value.
//
// The zero value is ready to use and reads as 0 with no value.
type Cell struct {
	v atomic.Uint32
}

// Load returns the stored level, or 0 if nothing was stored yet.
func (c *Cell) Load() uint8 {
	return uint8(c.v.Load())
}

// Snapshot returns the stored level and whether anything was stored yet.
func (c *Cell) Snapshot() (uint8, bool) {
	v := c.v.Load()
	return uint8(v), v&written != 0
}

// Store overwrites the level.
func (c *Cell) Store(level uint8) {
	c.v.Store(uint32(level) | written)
}
