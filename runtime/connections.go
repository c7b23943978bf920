// Package runtime owns the in-memory state of the relay: the connection
// registry and the room membership table. Both are constructor-injected
// singletons; no other component reaches into their maps directly.
package runtime

import (
	"log/slog"
	"sync"

	"alumnet/contract"
	"alumnet/domain"
	"alumnet/observability"
)

// CloseReasonSuperseded is sent when a new handshake replaces a live handle.
const CloseReasonSuperseded = "superseded by a new connection"

// connection pairs a transport with its liveness flag. The flag is reset to
// true on any inbound traffic, set to false right before a probe, and checked
// on the next sweep.
type connection struct {
	transport contract.Transport
	alive     bool
}

// ConnectionRegistry maps an authenticated identity to exactly one live
// transport. A new handshake for an already-registered identity closes and
// replaces the prior handle.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	log   *slog.Logger
	stats *observability.RelayStats
}

func NewConnectionRegistry(log *slog.Logger, stats *observability.RelayStats) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*connection),
		log:   log,
		stats: stats,
	}
}

// Register inserts or replaces the handle for userID. At most one handle per
// identity may be live: a superseded handle is closed before replacement.
func (r *ConnectionRegistry) Register(userID string, transport contract.Transport) {
	r.mu.Lock()
	prior, existed := r.conns[userID]
	r.conns[userID] = &connection{transport: transport, alive: true}
	count := len(r.conns)
	r.mu.Unlock()

	if existed {
		r.log.Info("Replacing live connection", "user_id", userID)
		_ = prior.transport.Close(CloseReasonSuperseded)
	}
	r.stats.SetConnectedUsers(count)
}

// Unregister removes the entry; no-op if absent. It does not close the
// transport: callers unregister as part of tearing the connection down.
func (r *ConnectionRegistry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	count := len(r.conns)
	r.mu.Unlock()
	r.stats.SetConnectedUsers(count)
}

// Release removes the entry only if it still holds transport, and reports
// whether it did. A superseded connection's teardown calls this instead of
// Unregister so it cannot evict the handle that replaced it.
func (r *ConnectionRegistry) Release(userID string, transport contract.Transport) bool {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	if ok && conn.transport == transport {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	count := len(r.conns)
	r.mu.Unlock()
	r.stats.SetConnectedUsers(count)
	return ok
}

// Send relays an envelope to userID, best-effort. A missing handle or a
// transport error drops the send and bumps the dropped counter; the entry is
// left in place so a transient write failure does not evict a live peer.
func (r *ConnectionRegistry) Send(userID string, envelope domain.Envelope) {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()

	if !ok {
		r.stats.IncrDroppedSends()
		return
	}
	if err := conn.transport.WriteEnvelope(envelope); err != nil {
		r.log.Debug("Dropped envelope on transport error",
			"user_id", userID, "type", envelope.Type, "error", err)
		r.stats.IncrDroppedSends()
	}
}

// MarkAlive resets the liveness flag. Called on any inbound traffic,
// including probe responses.
func (r *ConnectionRegistry) MarkAlive(userID string) {
	r.mu.Lock()
	if conn, ok := r.conns[userID]; ok {
		conn.alive = true
	}
	r.mu.Unlock()
}

// SweepDead evicts every connection whose liveness flag is still false since
// the previous sweep, then flags the survivors false and fires a probe at
// each. A peer that neither answers the probe nor sends traffic is therefore
// evicted within two sweeps.
func (r *ConnectionRegistry) SweepDead() []string {
	var evicted []string
	var dead, probes []contract.Transport

	r.mu.Lock()
	for userID, conn := range r.conns {
		if !conn.alive {
			evicted = append(evicted, userID)
			dead = append(dead, conn.transport)
			delete(r.conns, userID)
			continue
		}
		conn.alive = false
		probes = append(probes, conn.transport)
	}
	count := len(r.conns)
	r.mu.Unlock()

	// Close and probe outside the lock: neither waits on the peer, but there
	// is no reason to serialize other registry traffic behind them.
	for i, t := range dead {
		_ = t.Close("heartbeat timeout")
		r.stats.IncrEvictedConnections()
		r.log.Info("Evicting stale connection", "user_id", evicted[i])
	}
	for _, t := range probes {
		_ = t.Ping()
	}
	r.stats.SetConnectedUsers(count)
	return evicted
}

// IsOnline reports whether a live handle exists for userID.
func (r *ConnectionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// OnlineUsers returns a snapshot of all registered identities.
func (r *ConnectionRegistry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	return users
}
