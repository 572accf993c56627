// internal/ranker/history.go
package ranker

import (
	"fmt"
	"sync"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// History tracks (action, tag, text, id) tuples that previously resolved
// and acted successfully, feeding the small historical-success bonus.
// In-memory, per session.
type History struct {
	mu sync.RWMutex
	m  map[string]int
}

// NewHistory creates an empty success history.
func NewHistory() *History {
	return &History{m: make(map[string]int)}
}

func historyKey(action schemas.Action, c schemas.ElementCandidate) string {
	return fmt.Sprintf("%s|%s|%s|%s", action, c.Tag, head(c.Text, 50), c.ID)
}

// RecordSuccess marks a candidate as having worked for an action.
func (h *History) RecordSuccess(action schemas.Action, c schemas.ElementCandidate) {
	key := historyKey(action, c)
	h.mu.Lock()
	h.m[key]++
	h.mu.Unlock()
}

// Seen reports whether this exact tuple succeeded before.
func (h *History) Seen(action schemas.Action, c schemas.ElementCandidate) bool {
	key := historyKey(action, c)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.m[key] > 0
}
