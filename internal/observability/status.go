package observability

import (
	"sync"
	"time"
)

type SystemStatus struct {
	mu             sync.RWMutex
	ActiveSessions int
	LastUtterance  string
	LastTurn       time.Time
}

var globalStatus = &SystemStatus{
	LastTurn: time.Now(),
}

// SetStatus updates the global system status after a turn.
func SetStatus(activeSessions int, lastUtterance string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.ActiveSessions = activeSessions
	globalStatus.LastUtterance = lastUtterance
	globalStatus.LastTurn = time.Now()
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() (int, string, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.ActiveSessions, globalStatus.LastUtterance, globalStatus.LastTurn
}
