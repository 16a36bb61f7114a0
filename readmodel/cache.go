// Package readmodel keeps the displayed vote aggregates of a set of subjects
// and lets a local vote show up before the server confirms it.
package readmodel

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"flashvote/logging"
	"flashvote/votes"
)

// LoadFailed is what Err reports after a failed refresh.
const LoadFailed = "Failed to load voting results"

// Fetcher loads the authoritative aggregates, e.g. *client.Client.
type Fetcher interface {
	Batch(ctx context.Context, subjectIDs []string, locationID string) (map[string]votes.Counts, error)
}

type State int

const (
	Loading State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "loading"
}

// Result is one subject's displayed aggregate.
type Result struct {
	votes.Counts
	PositivePct int `json:"positive_pct"`
	NegativePct int `json:"negative_pct"`
}

// Cache holds the last fetched aggregates plus any optimistic bumps made
// since. Every refresh replaces the whole map; optimistic deltas are not
// merged back.
type Cache struct {
	fetcher    Fetcher
	subjectIDs []string
	locationID string
	log        *logrus.Entry

	mu     sync.RWMutex
	counts map[string]votes.Counts
	state  State
	err    string
}

func New(f Fetcher, subjectIDs []string, locationID string) *Cache {
	return &Cache{
		fetcher:    f,
		subjectIDs: append([]string(nil), subjectIDs...),
		locationID: locationID,
		log:        logging.Component("readmodel"),
		counts:     map[string]votes.Counts{},
	}
}

// Refresh refetches every subject. On failure the previous values stay and
// Err reports LoadFailed.
func (c *Cache) Refresh(ctx context.Context) error {
	if len(c.subjectIDs) == 0 {
		c.mu.Lock()
		c.counts, c.state, c.err = map[string]votes.Counts{}, Ready, ""
		c.mu.Unlock()
		return nil
	}

	fresh, err := c.fetcher.Batch(ctx, c.subjectIDs, c.locationID)
	if err != nil {
		c.log.WithError(err).WithField(logging.FldLocation, c.locationID).Warn("refresh failed, keeping previous results")
		c.mu.Lock()
		c.err = LoadFailed
		c.mu.Unlock()
		return err
	}

	next := make(map[string]votes.Counts, len(c.subjectIDs))
	for _, id := range c.subjectIDs {
		next[id] = fresh[id]
	}

	c.mu.Lock()
	c.counts, c.state, c.err = next, Ready, ""
	c.mu.Unlock()
	return nil
}

// OptimisticVote bumps the local counter of subjectID right away. The next
// Refresh overwrites it.
func (c *Cache) OptimisticVote(subjectID string, choice bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.counts[subjectID]
	if choice {
		cur.Positive++
	} else {
		cur.Negative++
	}
	c.counts[subjectID] = cur
}

// Get returns the displayed aggregate; unknown subjects read as zero votes.
func (c *Cache) Get(subjectID string) Result {
	c.mu.RLock()
	cur := c.counts[subjectID]
	c.mu.RUnlock()

	pos, neg := cur.Percentages()
	return Result{Counts: cur, PositivePct: pos, NegativePct: neg}
}

// Snapshot copies the current map.
func (c *Cache) Snapshot() map[string]votes.Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]votes.Counts, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err is empty unless the last refresh failed.
func (c *Cache) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Cache) watches(subjectID string) bool {
	for _, id := range c.subjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Watch refreshes once for every change notification about one of the
// cache's subjects until ctx is done or changes is closed.
func (c *Cache) Watch(ctx context.Context, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-changes:
			if !ok {
				return
			}
			if !c.watches(id) {
				continue
			}
			// 失敗已記錄在 Err()，下一次通知再試
			_ = c.Refresh(ctx)
		}
	}
}
