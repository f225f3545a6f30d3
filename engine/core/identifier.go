package core

import "sync/atomic"

// IDGenerator hands out monotonically increasing identifiers starting at 1.
// Zero is never returned so it can be used as the null handle.
type IDGenerator struct {
	next atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next() uint64 {
	return g.next.Add(1)
}

// Last returns the most recently issued identifier, or 0 if none was issued.
func (g *IDGenerator) Last() uint64 {
	return g.next.Load()
}
