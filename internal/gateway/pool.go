package gateway

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// ShardsPerPool is the fixed width of the shard range a single pool
// process owns.
const ShardsPerPool = 25

// ShardRange computes the half-open shard ID range this pool owns, given
// its pool ID and the total number of shards across every pool.
func ShardRange(poolID, totalShards uint64) (start, end uint64) {
	start = poolID * ShardsPerPool
	end = (poolID + 1) * ShardsPerPool

	if end > totalShards {
		end = totalShards
	}

	if start > end {
		start = end
	}

	return start, end
}

// NewShardFunc constructs the concrete GatewayShard for a given shard ID.
// Pool accepts this as a constructor so tests can supply a fake.
type NewShardFunc func(shardID uint32) GatewayShard

// Pool owns a contiguous range of shards, runs one goroutine per shard,
// and exposes the shared ShardState to the health server.
type Pool struct {
	poolID      uint64
	totalShards uint64

	shards    []GatewayShard
	state     *ShardState
	publisher eventPublisher
	metrics   Metrics
	logger    zerolog.Logger

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// NewPool validates the pool descriptor, computes this pool's shard
// range, and constructs one shard client per ID via newShard.
func NewPool(
	poolID, totalShards uint64,
	newShard NewShardFunc,
	publisher *Publisher,
	metrics Metrics,
	logger zerolog.Logger,
) (*Pool, error) {
	if totalShards > math.MaxUint32 {
		return nil, &ShardIDOverflowError{Value: totalShards}
	}

	start, end := ShardRange(poolID, totalShards)

	ids := make([]uint32, 0, end-start)
	shards := make([]GatewayShard, 0, end-start)

	for id := start; id < end; id++ {
		ids = append(ids, uint32(id))
		shards = append(shards, newShard(uint32(id)))
	}

	state := NewShardState(poolID, ids, totalShards)

	// publisher is a concrete *Publisher here, possibly nil. Only box it
	// into the eventPublisher field when non-nil: assigning a nil *Publisher
	// straight into an interface field would leave that field holding a
	// non-nil interface wrapping a nil pointer, and runShard's
	// `publisher == nil` check would stop working.
	var pub eventPublisher
	if publisher != nil {
		pub = publisher
	}

	return &Pool{
		poolID:      poolID,
		totalShards: totalShards,
		shards:      shards,
		state:       state,
		publisher:   pub,
		metrics:     metrics,
		logger:      logger.With().Uint64("pool_id", poolID).Logger(),
		shutdown:    make(chan struct{}),
	}, nil
}

// State returns the shared shard state, for the health server to read.
func (p *Pool) State() *ShardState { return p.state }

// Run spawns one goroutine per shard and blocks until every shard's
// runner has returned (either the event stream ended, the shard died, or
// shutdown was signalled).
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, sh := range p.shards {
		sh := sh

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := runShard(ctx, sh, p.state, p.publisher, p.metrics, p.logger, p.shutdown); err != nil {
				p.logger.Error().Err(err).Uint32("shard_id", sh.ID()).Msg("shard runner exited")
			}
		}()
	}

	if p.metrics != nil {
		p.metrics.SetShardsReady(p.poolID, p.state.ReadyShards())
	}

	wg.Wait()

	return nil
}

// Shutdown broadcasts shutdown to every running shard. Safe to call more
// than once and safe to call before Run.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}
