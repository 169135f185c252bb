package gateway

import "testing"

func newTestState(ids ...uint32) *ShardState {
	return NewShardState(0, ids, uint64(len(ids)))
}

func TestShardStateKeySetMatchesRange(t *testing.T) {
	s := newTestState(0, 1, 2)

	if s.ShardCount() != 3 {
		t.Fatalf("expected 3 shards, got %d", s.ShardCount())
	}

	for _, id := range []uint32{0, 1, 2} {
		if s.GetHealth(id) != ShardConnecting {
			t.Errorf("shard %d: expected Connecting at construction", id)
		}
	}
}

func TestShardStateReadiness(t *testing.T) {
	s := newTestState(0, 1, 2, 3)

	for _, id := range []uint32{0, 1, 2} {
		s.SetHealth(id, ShardConnecting)
	}

	s.SetHealth(3, ShardReady)

	if s.ReadyShards() != 1 {
		t.Fatalf("expected 1 ready shard, got %d", s.ReadyShards())
	}

	if !s.IsReady() {
		t.Fatal("expected pool to be ready")
	}

	for _, id := range []uint32{0, 1, 2} {
		s.SetHealth(id, ShardConnecting)
	}

	s.SetHealth(3, ShardConnecting)

	if s.IsReady() {
		t.Fatal("expected pool to not be ready with all shards connecting")
	}
}

func TestShardStateGuildAccounting(t *testing.T) {
	s := newTestState(0)

	s.SetGuilds(0, 10)

	if s.TotalGuilds() != 10 {
		t.Fatalf("expected 10 guilds, got %d", s.TotalGuilds())
	}

	s.SetGuilds(0, s.TotalGuilds()+1)

	if s.TotalGuilds() != 11 {
		t.Fatalf("expected 11 guilds after create, got %d", s.TotalGuilds())
	}

	// unavailable delete does not decrement
	s.SetGuilds(0, s.TotalGuilds())

	if s.TotalGuilds() != 11 {
		t.Fatalf("expected 11 guilds after unavailable delete, got %d", s.TotalGuilds())
	}

	s.SetGuilds(0, s.TotalGuilds()-1)

	if s.TotalGuilds() != 10 {
		t.Fatalf("expected 10 guilds after delete, got %d", s.TotalGuilds())
	}
}

func TestShardStateCountersAreMonotone(t *testing.T) {
	s := newTestState(0)

	for i := 0; i < 5; i++ {
		s.RecordEvent(0)
	}

	s.RecordRoute(0)
	s.RecordRouteFailure(0)

	if got := s.TotalEventsReceived(); got != 5 {
		t.Fatalf("expected 5 events received, got %d", got)
	}

	if got := s.TotalEventsRouted(); got != 1 {
		t.Fatalf("expected 1 event routed, got %d", got)
	}
}

func TestShardStateConnectedAtSetOnce(t *testing.T) {
	s := newTestState(0)

	s.SetHealth(0, ShardReady)

	first := s.entry(0).connectedAt
	if first.IsZero() {
		t.Fatal("expected connectedAt to be set on the first transition to Ready")
	}

	s.SetHealth(0, ShardResuming)
	s.SetHealth(0, ShardReady)

	if got := s.entry(0).connectedAt; !got.Equal(first) {
		t.Fatalf("expected connectedAt to stay %v, got %v", first, got)
	}

	if s.GetHealth(0) != ShardReady {
		t.Fatalf("expected final health Ready, got %s", s.GetHealth(0))
	}
}

func TestShardStateUnknownShardIsNoop(t *testing.T) {
	s := newTestState(0)

	// Should not panic for a shard ID this state never saw.
	s.SetHealth(99, ShardReady)
	s.RecordEvent(99)

	if s.GetHealth(99) != ShardDead {
		t.Fatalf("expected unknown shard to report Dead, got %s", s.GetHealth(99))
	}
}
