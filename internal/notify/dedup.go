package notify

import (
	"sync"
	"time"
)

// pruneThreshold is the entry count above which IsDuplicate sweeps expired
// keys.
const pruneThreshold = 256

// Dedup suppresses identical alerts seen within a time-to-live window. A
// flapping symbol or a burst of identical rejections then reaches operators
// once per window. It is safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // alert key -> last sent
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewDedup creates a Dedup that considers a key a duplicate if it was seen
// within ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate returns true if key was seen within the TTL window. Otherwise
// the key is recorded and false is returned.
func (d *Dedup) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if lastSeen, ok := d.seen[key]; ok && now.Sub(lastSeen) < d.ttl {
		return true
	}
	d.seen[key] = now
	if len(d.seen) > pruneThreshold {
		d.pruneLocked(now)
	}
	return false
}

func (d *Dedup) pruneLocked(now time.Time) {
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}

// Len returns the number of tracked keys.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
