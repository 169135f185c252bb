package gateway

import (
	"sync"
	"sync/atomic"
	"time"
)

// ShardHealth is the five-valued health tag for a single shard.
type ShardHealth int

const (
	ShardConnecting ShardHealth = iota
	ShardReady
	ShardResuming
	ShardDisconnected
	ShardDead
)

func (h ShardHealth) String() string {
	switch h {
	case ShardConnecting:
		return "connecting"
	case ShardReady:
		return "ready"
	case ShardResuming:
		return "resuming"
	case ShardDisconnected:
		return "disconnected"
	case ShardDead:
		return "dead"
	default:
		return "unknown"
	}
}

// IsHealthy reports whether this health value should count toward the
// pool's healthy-shard total.
func (h ShardHealth) IsHealthy() bool {
	return h == ShardReady || h == ShardResuming
}

// IsReady reports whether this health value should count toward the
// pool's ready-shard total.
func (h ShardHealth) IsReady() bool {
	return h == ShardReady
}

// shardEntry is the per-shard record held by ShardState. Health, guild
// count, and the two timestamps are guarded by mu so a reader never
// observes a torn combination of them; counters are plain atomics since
// they only ever move forward.
type shardEntry struct {
	mu sync.RWMutex

	health      ShardHealth
	guilds      uint64
	lastHeartbeat time.Time
	connectedAt   time.Time

	eventsReceived atomic.Uint64
	eventsRouted   atomic.Uint64
	routeFailures  atomic.Uint64
}

// ShardState tracks per-shard health and counters for every shard this
// pool owns, plus the aggregate views the health server reads.
type ShardState struct {
	poolID      uint64
	totalShards uint64

	mu      sync.RWMutex
	shards  map[uint32]*shardEntry
}

// NewShardState seeds one entry per shard ID in the given range. The key
// set is fixed at construction and never changes afterward.
func NewShardState(poolID uint64, shardIDs []uint32, totalShards uint64) *ShardState {
	shards := make(map[uint32]*shardEntry, len(shardIDs))
	for _, id := range shardIDs {
		shards[id] = &shardEntry{health: ShardConnecting}
	}

	return &ShardState{poolID: poolID, totalShards: totalShards, shards: shards}
}

func (s *ShardState) entry(shardID uint32) *shardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.shards[shardID]
}

// SetHealth transitions a shard's health. connectedAt is stamped the
// first time, and only the first time, a shard becomes Ready.
func (s *ShardState) SetHealth(shardID uint32, health ShardHealth) {
	e := s.entry(shardID)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if health == ShardReady && e.connectedAt.IsZero() {
		e.connectedAt = time.Now().UTC()
	}

	e.health = health
}

// SetGuilds overwrites a shard's guild count.
func (s *ShardState) SetGuilds(shardID uint32, count uint64) {
	e := s.entry(shardID)
	if e == nil {
		return
	}

	e.mu.Lock()
	e.guilds = count
	e.mu.Unlock()
}

// RecordEvent increments the events-received counter for a shard.
func (s *ShardState) RecordEvent(shardID uint32) {
	if e := s.entry(shardID); e != nil {
		e.eventsReceived.Add(1)
	}
}

// RecordRoute increments the events-routed counter for a shard.
func (s *ShardState) RecordRoute(shardID uint32) {
	if e := s.entry(shardID); e != nil {
		e.eventsRouted.Add(1)
	}
}

// RecordRouteFailure increments the route-failures counter for a shard.
func (s *ShardState) RecordRouteFailure(shardID uint32) {
	if e := s.entry(shardID); e != nil {
		e.routeFailures.Add(1)
	}
}

// RecordHeartbeat stamps the last-heartbeat time for a shard.
func (s *ShardState) RecordHeartbeat(shardID uint32) {
	e := s.entry(shardID)
	if e == nil {
		return
	}

	e.mu.Lock()
	e.lastHeartbeat = time.Now().UTC()
	e.mu.Unlock()
}

// GetHealth returns a shard's current health.
func (s *ShardState) GetHealth(shardID uint32) ShardHealth {
	e := s.entry(shardID)
	if e == nil {
		return ShardDead
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.health
}

// Guilds returns a shard's current guild count.
func (s *ShardState) Guilds(shardID uint32) uint64 {
	e := s.entry(shardID)
	if e == nil {
		return 0
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.guilds
}

// ShardCount returns the number of shards this pool owns.
func (s *ShardState) ShardCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.shards)
}

// ReadyShards returns the number of shards currently Ready.
func (s *ShardState) ReadyShards() int {
	return s.countWhere(ShardHealth.IsReady)
}

// HealthyShards returns the number of shards currently Ready or Resuming.
func (s *ShardState) HealthyShards() int {
	return s.countWhere(ShardHealth.IsHealthy)
}

func (s *ShardState) countWhere(pred func(ShardHealth) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0

	for _, e := range s.shards {
		e.mu.RLock()
		h := e.health
		e.mu.RUnlock()

		if pred(h) {
			count++
		}
	}

	return count
}

// TotalGuilds sums guild counts across every shard in this pool. This sum
// is approximate: shards update their own counts via an independent
// read-modify-write against this same total, so a racing pair of updates
// can undercount or overcount by a small margin. That is accepted; the
// number is for observability, not authorization.
func (s *ShardState) TotalGuilds() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64

	for _, e := range s.shards {
		e.mu.RLock()
		total += e.guilds
		e.mu.RUnlock()
	}

	return total
}

// TotalEventsReceived sums the events-received counter across all shards.
func (s *ShardState) TotalEventsReceived() uint64 {
	return s.sumCounter(func(e *shardEntry) uint64 { return e.eventsReceived.Load() })
}

// TotalEventsRouted sums the events-routed counter across all shards.
func (s *ShardState) TotalEventsRouted() uint64 {
	return s.sumCounter(func(e *shardEntry) uint64 { return e.eventsRouted.Load() })
}

// TotalRouteFailures sums the route-failures counter across all shards.
func (s *ShardState) TotalRouteFailures() uint64 {
	return s.sumCounter(func(e *shardEntry) uint64 { return e.routeFailures.Load() })
}

func (s *ShardState) sumCounter(get func(*shardEntry) uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, e := range s.shards {
		total += get(e)
	}

	return total
}

// IsReady reports pool readiness: at least one shard must be Ready.
func (s *ShardState) IsReady() bool {
	return s.ReadyShards() >= 1
}

// IsHealthy reports whether every shard in the pool is healthy.
func (s *ShardState) IsHealthy() bool {
	return s.HealthyShards() == s.ShardCount()
}

// ShardIDs returns the shard IDs this state tracks, in ascending order.
func (s *ShardState) ShardIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint32, 0, len(s.shards))
	for id := range s.shards {
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}

	return ids
}
