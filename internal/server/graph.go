package server

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// ModuleGraph remembers which modules have been served to a client. An
// invalidated address only turns into a push when a client holds the
// module.
type ModuleGraph struct {
	mu     sync.RWMutex
	served map[string]time.Time
}

// NewModuleGraph creates an empty graph.
func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{served: make(map[string]time.Time)}
}

// Record marks address as served. Addresses are stored without a leading
// slash.
func (g *ModuleGraph) Record(address string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.served[strings.TrimPrefix(address, "/")] = time.Now()
}

// Has reports whether address has been served.
func (g *ModuleGraph) Has(address string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.served[strings.TrimPrefix(address, "/")]
	return ok
}

// Forget drops address from the graph.
func (g *ModuleGraph) Forget(address string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.served, strings.TrimPrefix(address, "/"))
}

// Addresses returns the served addresses in sorted order.
func (g *ModuleGraph) Addresses() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	addresses := make([]string, 0, len(g.served))
	for address := range g.served {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

// Len returns the number of served modules.
func (g *ModuleGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.served)
}
