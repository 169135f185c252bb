package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	jsoniter "github.com/json-iterator/go"

	"github.com/0xHoneyJar/loa-freeside/structs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	commandsMaxAge = 60 * time.Second
	eventsMaxAge   = 300 * time.Second
)

// Publisher owns the broker connection and publish-with-ack path. It is
// safe for concurrent use by every shard runner in a pool.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream

	connected          atomic.Bool
	messagesPublished  atomic.Uint64
	publishFailures    atomic.Uint64
}

// ConnectPublisher opens a connection to the given broker URLs and
// ensures the streams this system depends on exist. Stream creation is
// idempotent: an "already exists" response is not treated as an error.
func ConnectPublisher(ctx context.Context, urls []string) (*Publisher, error) {
	nc, err := nats.Connect(natsURLOrDefault(urls))
	if err != nil {
		return nil, &NatsConnectionError{Cause: err}
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, &NatsConnectionError{Cause: err}
	}

	p := &Publisher{nc: nc, js: js}
	p.connected.Store(true)

	if err := p.ensureStreams(ctx); err != nil {
		nc.Close()

		return nil, &NatsConnectionError{Cause: err}
	}

	return p, nil
}

func natsURLOrDefault(urls []string) string {
	if len(urls) == 0 {
		return nats.DefaultURL
	}

	joined := urls[0]
	for _, u := range urls[1:] {
		joined += "," + u
	}

	return joined
}

func (p *Publisher) ensureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      StreamCommands,
			Subjects:  []string{"commands.>"},
			MaxAge:    commandsMaxAge,
			Storage:   jetstream.MemoryStorage,
			Retention: jetstream.LimitsPolicy,
		},
		{
			Name:      StreamEvents,
			Subjects:  []string{"events.>"},
			MaxAge:    eventsMaxAge,
			Storage:   jetstream.MemoryStorage,
			Retention: jetstream.LimitsPolicy,
		},
		{
			// Reserved for a future consumer. No route in RouteEvent
			// targets this stream; it is declared for forward
			// compatibility only.
			Name:      StreamEligibility,
			Subjects:  []string{"eligibility.>"},
			Storage:   jetstream.MemoryStorage,
			Retention: jetstream.LimitsPolicy,
		},
	}

	for _, cfg := range streams {
		// CreateOrUpdateStream makes this idempotent: a stream that
		// already exists with the same config is left alone rather
		// than treated as an error.
		if _, err := p.js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return wrapf("ensureStreams %s: %w", cfg.Name, err)
		}
	}

	return nil
}

// Publish serializes the envelope, routes it to a subject, and publishes
// it with an acknowledgement wait. A publish failure never closes the
// connection; the caller is expected to drop the event and continue.
func (p *Publisher) Publish(ctx context.Context, env *structs.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		p.publishFailures.Add(1)

		return &SerializationFailedError{EventType: env.EventType, ShardID: env.ShardID, Cause: err}
	}

	subject := RouteEvent(env.EventType)

	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		p.publishFailures.Add(1)

		return &PublishFailedError{Subject: subject, Cause: err}
	}

	p.messagesPublished.Add(1)

	return nil
}

// IsConnected reports the current broker connection status.
func (p *Publisher) IsConnected() bool {
	return p.connected.Load() && p.nc.IsConnected()
}

// Close drains and closes the underlying broker connection.
func (p *Publisher) Close() {
	p.connected.Store(false)

	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
