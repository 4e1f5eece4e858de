package service

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/juryline/internal/domain/leaderboard"
	"github.com/okian/juryline/pkg/metrics"
)

type cachedLeaderboard struct {
	result leaderboard.Result
	at     time.Time
	gen    uint64
}

// leaderboardCache memoizes leaderboards per event until a write to the
// event bumps its generation or the TTL expires. Concurrent misses for the
// same event share one computation.
type leaderboardCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cachedLeaderboard
	gens    map[string]uint64
	group   singleflight.Group
}

func newLeaderboardCache(ttl time.Duration, now func() time.Time) *leaderboardCache {
	return &leaderboardCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedLeaderboard),
		gens:    make(map[string]uint64),
	}
}

func (c *leaderboardCache) get(eventID string, compute func() (leaderboard.Result, error)) (leaderboard.Result, error) {
	c.mu.Lock()
	gen := c.gens[eventID]
	if e, ok := c.entries[eventID]; ok && e.gen == gen && c.now().Sub(e.at) < c.ttl {
		c.mu.Unlock()
		metrics.RecordReportCache("hit")
		return e.result, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do(eventID, func() (any, error) {
		res, err := compute()
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			if c.gens[eventID] == gen {
				c.entries[eventID] = cachedLeaderboard{result: res, at: c.now(), gen: gen}
			}
			c.mu.Unlock()
		}
		return res, nil
	})
	if err != nil {
		return leaderboard.Result{}, err
	}
	if shared {
		metrics.RecordReportCache("shared")
	} else {
		metrics.RecordReportCache("miss")
	}
	return v.(leaderboard.Result), nil
}

func (c *leaderboardCache) invalidate(eventID string) {
	c.mu.Lock()
	c.gens[eventID]++
	delete(c.entries, eventID)
	c.mu.Unlock()
	c.group.Forget(eventID)
}

func (c *leaderboardCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
