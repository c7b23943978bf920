// Package observability aggregates relay counters for the admin surface
// and for tests, which assert on dropped counts instead of parsing logs.
package observability

import "sync/atomic"

// RelayStats is the injectable telemetry collaborator of the relay.
// All counters are atomic; the zero value is ready to use.
type RelayStats struct {
	messagesRelayed    atomic.Uint64
	typingRelayed      atomic.Uint64
	droppedSends       atomic.Uint64
	droppedEnvelopes   atomic.Uint64
	malformedEnvelopes atomic.Uint64
	evictedConnections atomic.Uint64

	connectedUsers atomic.Int64
	activeRooms    atomic.Int64
}

func NewRelayStats() *RelayStats {
	return &RelayStats{}
}

func (s *RelayStats) IncrMessagesRelayed()    { s.messagesRelayed.Add(1) }
func (s *RelayStats) IncrTypingRelayed()      { s.typingRelayed.Add(1) }
func (s *RelayStats) IncrDroppedSends()       { s.droppedSends.Add(1) }
func (s *RelayStats) IncrDroppedEnvelopes()   { s.droppedEnvelopes.Add(1) }
func (s *RelayStats) IncrMalformedEnvelopes() { s.malformedEnvelopes.Add(1) }
func (s *RelayStats) IncrEvictedConnections() { s.evictedConnections.Add(1) }

func (s *RelayStats) SetConnectedUsers(n int) { s.connectedUsers.Store(int64(n)) }
func (s *RelayStats) SetActiveRooms(n int)    { s.activeRooms.Store(int64(n)) }

func (s *RelayStats) DroppedSends() uint64 { return s.droppedSends.Load() }

// Snapshot is the JSON shape served on the admin /stats endpoint.
type Snapshot struct {
	MessagesRelayed    uint64 `json:"messages_relayed"`
	TypingRelayed      uint64 `json:"typing_relayed"`
	DroppedSends       uint64 `json:"dropped_sends"`
	DroppedEnvelopes   uint64 `json:"dropped_envelopes"`
	MalformedEnvelopes uint64 `json:"malformed_envelopes"`
	EvictedConnections uint64 `json:"evicted_connections"`
	ConnectedUsers     int64  `json:"connected_users"`
	ActiveRooms        int64  `json:"active_rooms"`
}

func (s *RelayStats) Snapshot() Snapshot {
	return Snapshot{
		MessagesRelayed:    s.messagesRelayed.Load(),
		TypingRelayed:      s.typingRelayed.Load(),
		DroppedSends:       s.droppedSends.Load(),
		DroppedEnvelopes:   s.droppedEnvelopes.Load(),
		MalformedEnvelopes: s.malformedEnvelopes.Load(),
		EvictedConnections: s.evictedConnections.Load(),
		ConnectedUsers:     s.connectedUsers.Load(),
		ActiveRooms:        s.activeRooms.Load(),
	}
}
