package hooking

import (
	"sync"
)

// PosCounter counts how many times each hook position is triggered.
type PosCounter struct {
	lock     sync.Mutex
	posNames []string
	count    map[string]uint64
}

// NewPosCounter creates a new PosCounter.
func NewPosCounter() *PosCounter {
	return &PosCounter{
		count: make(map[string]uint64),
	}
}

// Func counts the invocation.
func (c *PosCounter) Func(ctx HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	_, ok := c.count[ctx.Pos.Name]
	if !ok {
		c.posNames = append(c.posNames, ctx.Pos.Name)
	}

	c.count[ctx.Pos.Name]++
}

// PosNames returns the names of the positions seen so far, in the order they
// were first seen.
func (c *PosCounter) PosNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	names := make([]string, len(c.posNames))
	copy(names, c.posNames)

	return names
}

// Counts returns a snapshot of all counters.
func (c *PosCounter) Counts() map[string]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	counts := make(map[string]uint64, len(c.count))
	for k, v := range c.count {
		counts[k] = v
	}

	return counts
}
