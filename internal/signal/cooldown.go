package signal

import "sync"

// CooldownTracker blocks re-entry for a number of bars after a stop-out.
// Counters tick down once per cycle, in-process only: a restart clears
// cooldowns, which is acceptable for a paper account.
type CooldownTracker struct {
	mu   sync.Mutex
	bars map[string]int
}

// NewCooldownTracker creates an empty tracker
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{bars: make(map[string]int)}
}

// RecordStopOut starts a cooldown of bars for the symbol
func (c *CooldownTracker) RecordStopOut(symbol string, bars int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if bars > 0 {
		c.bars[symbol] = bars
	}
}

// Active reports whether the symbol is still cooling down
func (c *CooldownTracker) Active(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bars[symbol] > 0
}

// Tick advances one bar for every cooling symbol
func (c *CooldownTracker) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, n := range c.bars {
		if n <= 1 {
			delete(c.bars, sym)
		} else {
			c.bars[sym] = n - 1
		}
	}
}
