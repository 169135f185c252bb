package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xHoneyJar/loa-freeside/structs"
)

// MaxConsecutiveErrors is the circuit breaker threshold: a shard that
// accumulates this many consecutive receive errors without an
// intervening success is marked Dead and its runner returns.
const MaxConsecutiveErrors = 10

// FatalError is implemented by gateway client errors that should bypass
// the circuit breaker entirely and terminate the shard immediately.
type FatalError interface {
	error
	Fatal() bool
}

// eventPublisher is the narrow publish contract runShard depends on.
// *Publisher satisfies it against a live broker; tests inject a fake to
// exercise the publish-failure path without one.
type eventPublisher interface {
	Publish(ctx context.Context, env *structs.Envelope) error
}

// GatewayShard is the per-shard Discord gateway connection this runner
// drives. A concrete implementation dials the real gateway; tests use a
// fake that replays a fixed event/error sequence.
type GatewayShard interface {
	ID() uint32
	Connect(ctx context.Context) error
	NextEvent(ctx context.Context) (Event, error)
	Close(ctx context.Context) error
}

// runShard drives a single shard's event loop until its client's event
// stream ends, a fatal error occurs, the circuit breaker trips, or
// shutdown is signalled. It never blocks the caller past the in-flight
// publish when shutdown fires; the next loop iteration observes it.
func runShard(
	ctx context.Context,
	sh GatewayShard,
	state *ShardState,
	publisher eventPublisher,
	metrics Metrics,
	logger zerolog.Logger,
	shutdown <-chan struct{},
) error {
	shardID := sh.ID()
	log := logger.With().Uint32("shard_id", shardID).Logger()

	state.SetHealth(shardID, ShardConnecting)

	if err := sh.Connect(ctx); err != nil {
		state.SetHealth(shardID, ShardDead)

		return &ShardReconnectFailedError{ShardID: shardID, Cause: err}
	}

	defer func() {
		_ = sh.Close(ctx)
	}()

	consecutiveErrors := 0

	for {
		select {
		case <-shutdown:
			return nil
		default:
		}

		ev, err := sh.NextEvent(ctx)
		if err != nil {
			// A receive cut short by shutdown or context cancellation is
			// not a receive error: return without touching health.
			select {
			case <-shutdown:
				return nil
			default:
			}

			if ctx.Err() != nil {
				return nil
			}

			if fatal, ok := err.(FatalError); ok && fatal.Fatal() {
				state.SetHealth(shardID, ShardDead)
				metrics.RecordError(shardID, labelReconnectFailed)

				return &ShardReconnectFailedError{ShardID: shardID, Cause: err}
			}

			consecutiveErrors++

			if consecutiveErrors >= MaxConsecutiveErrors {
				state.SetHealth(shardID, ShardDead)
				metrics.RecordError(shardID, labelCircuitBroken)

				return &ShardCircuitBrokenError{ShardID: shardID, Count: consecutiveErrors, Max: MaxConsecutiveErrors}
			}

			state.SetHealth(shardID, ShardDisconnected)
			log.Warn().Err(err).Int("consecutive_errors", consecutiveErrors).Msg("shard receive error")

			continue
		}

		consecutiveErrors = 0

		state.RecordEvent(shardID)
		metrics.RecordEvent(shardID, eventTypeName(ev))

		applyWellKnownEvent(state, shardID, ev)

		if _, ok := ev.(*HeartbeatAckEvent); ok {
			metrics.RecordHeartbeat(shardID)
		}

		if publisher == nil {
			continue
		}

		env, ok := SerializeEvent(ev, shardID)
		if !ok {
			continue
		}

		start := time.Now()

		if err := publisher.Publish(ctx, env); err != nil {
			state.RecordRouteFailure(shardID)
			metrics.RecordRouteFailure(shardID)
			log.Warn().Err(err).Str("event_type", env.EventType).Msg("failed to publish event")

			continue
		}

		state.RecordRoute(shardID)
		metrics.RecordRouteSuccess(shardID, time.Since(start))
	}
}

func applyWellKnownEvent(state *ShardState, shardID uint32, ev Event) {
	switch e := ev.(type) {
	case *ReadyEvent:
		state.SetHealth(shardID, ShardReady)
		state.SetGuilds(shardID, uint64(len(e.Guilds)))
	case *ResumedEvent:
		state.SetHealth(shardID, ShardReady)
	case *HeartbeatAckEvent:
		state.RecordHeartbeat(shardID)
	case *GuildCreateEvent:
		// Deliberately racy: this reads the pool-wide total and writes
		// shardID's own entry with total+1, same as every other shard's
		// concurrent update. See ShardState.TotalGuilds.
		state.SetGuilds(shardID, state.TotalGuilds()+1)
	case *GuildDeleteEvent:
		if !e.Unavailable {
			total := state.TotalGuilds()
			if total > 0 {
				state.SetGuilds(shardID, total-1)
			}
		}
	}
}

func eventTypeName(ev Event) string {
	switch ev.(type) {
	case *ReadyEvent:
		return "READY"
	case *ResumedEvent:
		return "RESUMED"
	case *HeartbeatAckEvent:
		return "HEARTBEAT_ACK"
	case *GuildCreateEvent:
		return "GUILD_CREATE"
	case *GuildDeleteEvent:
		return "GUILD_DELETE"
	case *MemberAddEvent:
		return "GUILD_MEMBER_ADD"
	case *MemberRemoveEvent:
		return "GUILD_MEMBER_REMOVE"
	case *MemberUpdateEvent:
		return "GUILD_MEMBER_UPDATE"
	case *InteractionCreateEvent:
		return "INTERACTION_CREATE"
	default:
		return "UNKNOWN"
	}
}
