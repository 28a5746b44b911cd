package sync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"chora/core/graph"
	"chora/core/store"
)

// Change is one pending cloud-sync payload, queued by the router for an
// external transport to drain.
type Change struct {
	EntityID  string
	CircleIDs []string
	Payload   map[string]any
	Ts        time.Time
}

// SyncRouter is the save-hook-driven bridge deciding which entities
// propagate to cloud circles. Injectable and non-global: a per-Store
// collaborator rather than a package-level table.
type SyncRouter struct {
	Store   *store.Store
	Keyring *Keyring
	Clock   clock.Clock

	hookName string

	mu        sync.Mutex
	pending   []Change
	onEnqueue func(Change)
}

// NewSyncRouter constructs a router over s and kr. clk defaults to the
// real clock when nil.
func NewSyncRouter(s *store.Store, kr *Keyring, clk clock.Clock) *SyncRouter {
	if clk == nil {
		clk = clock.New()
	}
	return &SyncRouter{Store: s, Keyring: kr, Clock: clk, hookName: "sync-router"}
}

// Register installs the router's save hook. Call once, after construction.
func (r *SyncRouter) Register() {
	r.Store.RegisterHook(r.hookName, r.onSave)
}

// Close removes the router's save hook. Safe to call after Register;
// idempotent if the hook was never installed.
func (r *SyncRouter) Close() {
	r.Store.UnregisterHook(r.hookName)
}

// OnEnqueue sets a callback fired synchronously whenever a change is
// queued. A nil callback disables notification.
func (r *SyncRouter) OnEnqueue(cb func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnqueue = cb
}

func (r *SyncRouter) onSave(id string, _ graph.EntityType, data map[string]any) {
	should, circles, err := r.route(id)
	if err != nil || !should {
		return
	}
	change := Change{EntityID: id, CircleIDs: circles, Payload: data, Ts: r.Clock.Now()}

	r.mu.Lock()
	r.pending = append(r.pending, change)
	cb := r.onEnqueue
	r.mu.Unlock()

	if cb != nil {
		cb(change)
	}
}

// ShouldEmit reports whether entityID inhabits at least one cloud circle.
func (r *SyncRouter) ShouldEmit(entityID string) (bool, error) {
	should, _, err := r.route(entityID)
	return should, err
}

// TargetCircles returns the union of cloud circle ids entityID inhabits.
func (r *SyncRouter) TargetCircles(entityID string) ([]string, error) {
	_, circles, err := r.route(entityID)
	return circles, err
}

func (r *SyncRouter) route(entityID string) (bool, []string, error) {
	cons, err := r.Store.GetConstellation(entityID)
	if err != nil {
		return false, nil, err
	}
	var circles []string
	for _, entry := range cons["inhabits"] {
		if !entry.Outbound {
			continue // entityID is the circle side of this bond, not the inhabitant
		}
		if r.Keyring.IsCloud(entry.Counterpart.ID) {
			circles = append(circles, entry.Counterpart.ID)
		}
	}
	return len(circles) > 0, circles, nil
}

// Flush returns and clears the pending queue. Per-entity order is
// preserved: every save that routes to the cloud produces its own queue
// entry, never a collapsed latest-write-wins entry.
func (r *SyncRouter) Flush() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}
