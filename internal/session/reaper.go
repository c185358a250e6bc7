package session

import (
	"context"
	"time"
)

// StartReaper evicts sessions that have been idle past the configured
// TTL, bounding memory across long-running deployments. Blocks until
// ctx is done; run it in its own goroutine.
func (e *Engine) StartReaper(ctx context.Context) {
	interval := e.cfg.SessionTTL / 4
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evictIdle()
		}
	}
}

func (e *Engine) evictIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	for id, s := range e.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastTurn)
		s.mu.Unlock()

		if idle > e.cfg.SessionTTL {
			delete(e.sessions, id)
			if e.logger != nil {
				e.logger.LogSessionEvicted(id, idle)
			}
		}
	}
}
