package reducer

import (
	"sync"

	"github.com/charleschow/arcade-client/internal/telemetry"
)

// Latch fires once per key. A lobby can be announced closed by both
// LobbyClosed and LobbyDeleted; only the first one is acted on.
type Latch struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewLatch() *Latch {
	return &Latch{seen: make(map[string]bool)}
}

// Trip reports true the first time key is seen and false afterwards.
func (l *Latch) Trip(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[key] {
		telemetry.Metrics.DuplicateEvents.Inc()
		return false
	}
	l.seen[key] = true
	return true
}
