package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xHoneyJar/loa-freeside/structs"
)

// fakeShard replays a fixed sequence of (event, error) pairs, one per
// NextEvent call, then blocks until shutdown or context cancellation. If
// consumedAll is non-nil it is closed the first time the queue is found
// exhausted, letting a test synchronize on "every queued item has been
// handed to the runner" without sleeping.
type fakeShard struct {
	id     uint32
	events []Event
	errs   []error
	fatal  []bool
	cursor int
	closed bool

	consumedAll chan struct{}
}

func (f *fakeShard) ID() uint32                       { return f.id }
func (f *fakeShard) Connect(ctx context.Context) error { return nil }
func (f *fakeShard) Close(ctx context.Context) error   { f.closed = true; return nil }

func (f *fakeShard) NextEvent(ctx context.Context) (Event, error) {
	if f.cursor >= len(f.events) {
		if f.consumedAll != nil {
			select {
			case <-f.consumedAll:
			default:
				close(f.consumedAll)
			}
		}

		<-ctx.Done()

		return nil, ctx.Err()
	}

	i := f.cursor
	f.cursor++

	if f.errs[i] != nil {
		if i < len(f.fatal) && f.fatal[i] {
			return nil, &fakeFatalErr{err: f.errs[i]}
		}

		return nil, f.errs[i]
	}

	return f.events[i], nil
}

type fakeFatalErr struct{ err error }

func (e *fakeFatalErr) Error() string { return e.err.Error() }
func (e *fakeFatalErr) Fatal() bool   { return true }

func TestRunShardCircuitBreakerTrips(t *testing.T) {
	events := make([]Event, MaxConsecutiveErrors)
	errs := make([]error, MaxConsecutiveErrors)

	for i := range errs {
		errs[i] = errors.New("transient recv error")
	}

	sh := &fakeShard{id: 7, events: events, errs: errs}
	state := newTestState(7)

	err := runShard(context.Background(), sh, state, nil, noopMetrics{}, zerolog.Nop(), make(chan struct{}))

	var broken *ShardCircuitBrokenError
	if !errors.As(err, &broken) {
		t.Fatalf("expected *ShardCircuitBrokenError, got %T: %v", err, err)
	}

	if broken.ShardID != 7 || broken.Count != MaxConsecutiveErrors || broken.Max != MaxConsecutiveErrors {
		t.Fatalf("unexpected circuit breaker error contents: %+v", broken)
	}

	if state.GetHealth(7) != ShardDead {
		t.Fatalf("expected shard 7 to be Dead, got %s", state.GetHealth(7))
	}
}

func TestRunShardFatalErrorBypassesCounter(t *testing.T) {
	sh := &fakeShard{
		id:     1,
		events: []Event{nil},
		errs:   []error{errors.New("invalid token")},
		fatal:  []bool{true},
	}
	state := newTestState(1)

	err := runShard(context.Background(), sh, state, nil, noopMetrics{}, zerolog.Nop(), make(chan struct{}))

	var reconnectErr *ShardReconnectFailedError
	if !errors.As(err, &reconnectErr) {
		t.Fatalf("expected *ShardReconnectFailedError, got %T: %v", err, err)
	}

	if state.GetHealth(1) != ShardDead {
		t.Fatalf("expected shard 1 to be Dead, got %s", state.GetHealth(1))
	}
}

// TestRunShardSkipsPublishWhenNoPublisherConfigured covers the degraded
// local-mode path: with no publisher wired in, the runner still tracks
// shard state from the event stream and shuts down cleanly, it just never
// attempts to route anything.
func TestRunShardSkipsPublishWhenNoPublisherConfigured(t *testing.T) {
	consumedAll := make(chan struct{})
	sh := &fakeShard{
		id:          0,
		events:      []Event{&GuildCreateEvent{GuildID: "1", Name: "g", OwnerID: "2", MemberCount: 1}},
		errs:        []error{nil},
		consumedAll: consumedAll,
	}
	state := newTestState(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- runShard(ctx, sh, state, nil, noopMetrics{}, zerolog.Nop(), shutdown)
	}()

	<-consumedAll
	close(shutdown)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	if got := state.TotalEventsReceived(); got != 1 {
		t.Fatalf("expected 1 event received, got %d", got)
	}

	if got := state.TotalGuilds(); got != 1 {
		t.Fatalf("expected guild count 1 after GuildCreate, got %d", got)
	}
}

// failingPublisher always fails the publish, counting attempts so a test
// can assert the runner made exactly one.
type failingPublisher struct {
	attempts int
	err      error
}

func (p *failingPublisher) Publish(ctx context.Context, env *structs.Envelope) error {
	p.attempts++

	return p.err
}

// routeFailureMetrics wraps noopMetrics to count RecordRouteFailure calls,
// so a test can assert the metric was tagged without a live Prometheus
// registry.
type routeFailureMetrics struct {
	noopMetrics
	routeFailures int
}

func (m *routeFailureMetrics) RecordRouteFailure(uint32) {
	m.routeFailures++
}

// TestRunShardPublishFailureIsIsolated covers the publish-failure isolation
// scenario: once the shard is Ready, a single failed publish increments the
// shard's routeFailures counter and the RecordRouteFailure metric by exactly
// one, never touches eventsRouted, and never changes shard health or
// terminates the runner.
func TestRunShardPublishFailureIsIsolated(t *testing.T) {
	consumedAll := make(chan struct{})
	sh := &fakeShard{
		id: 2,
		events: []Event{
			&ReadyEvent{},
			&GuildCreateEvent{GuildID: "1", Name: "g", OwnerID: "2", MemberCount: 1},
		},
		errs:        []error{nil, nil},
		consumedAll: consumedAll,
	}
	state := newTestState(2)

	pub := &failingPublisher{err: errors.New("broker unreachable")}
	metrics := &routeFailureMetrics{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- runShard(ctx, sh, state, pub, metrics, zerolog.Nop(), shutdown)
	}()

	<-consumedAll
	close(shutdown)
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	if pub.attempts != 1 {
		t.Fatalf("expected exactly 1 publish attempt, got %d", pub.attempts)
	}

	if got := state.TotalRouteFailures(); got != 1 {
		t.Fatalf("expected 1 route failure, got %d", got)
	}

	if metrics.routeFailures != 1 {
		t.Fatalf("expected 1 RecordRouteFailure call, got %d", metrics.routeFailures)
	}

	if got := state.TotalEventsRouted(); got != 0 {
		t.Fatalf("expected 0 events routed, got %d", got)
	}

	if state.GetHealth(2) != ShardReady {
		t.Fatalf("expected shard 2 health to remain Ready, got %s", state.GetHealth(2))
	}
}

// noopMetrics discards every call; used where a test only cares about
// ShardState and error returns.
type noopMetrics struct{}

func (noopMetrics) RecordEvent(uint32, string)               {}
func (noopMetrics) RecordRouteSuccess(uint32, time.Duration) {}
func (noopMetrics) RecordRouteFailure(uint32)                {}
func (noopMetrics) RecordError(uint32, string)               {}
func (noopMetrics) RecordHeartbeat(uint32)                   {}
func (noopMetrics) SetGuilds(uint32, uint64)                 {}
func (noopMetrics) SetShardsReady(uint64, int)               {}
func (noopMetrics) SetNATSConnected(bool)                    {}
