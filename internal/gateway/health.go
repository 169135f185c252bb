package gateway

import (
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/0xHoneyJar/loa-freeside/structs"
)

// HealthServer serves /health, /ready, and /metrics off the shared pool
// state and publisher connection status.
type HealthServer struct {
	pool      *Pool
	publisher *Publisher
	metrics   *PrometheusMetrics
}

// NewHealthServer builds a health server bound to the given pool. metrics
// may be nil if Prometheus was not wired in; /metrics then 404s.
func NewHealthServer(pool *Pool, publisher *Publisher, metrics *PrometheusMetrics) *HealthServer {
	return &HealthServer{pool: pool, publisher: publisher, metrics: metrics}
}

// Handler returns the fasthttp request handler to pass to fasthttp.Server.
func (h *HealthServer) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health":
			h.handleHealth(ctx)
		case "/ready":
			h.handleReady(ctx)
		case "/metrics":
			h.handleMetrics(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

func (h *HealthServer) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, structs.HealthResponse{
		Status: "healthy",
		PoolID: h.pool.poolID,
	})
}

func (h *HealthServer) handleReady(ctx *fasthttp.RequestCtx) {
	state := h.pool.State()

	natsConnected := h.publisher != nil && h.publisher.IsConnected()
	shardsReady := state.ReadyShards()
	ready := shardsReady > 0 && natsConnected

	status := fasthttp.StatusServiceUnavailable
	if ready {
		status = fasthttp.StatusOK
	}

	writeJSON(ctx, status, structs.ReadyResponse{
		Ready:         ready,
		PoolID:        h.pool.poolID,
		ShardsTotal:   state.ShardCount(),
		ShardsReady:   shardsReady,
		NATSConnected: natsConnected,
		GuildsTotal:   state.TotalGuilds(),
	})
}

func (h *HealthServer) handleMetrics(ctx *fasthttp.RequestCtx) {
	if h.metrics == nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)

		return
	}

	fasthttpadaptor.NewFastHTTPHandler(h.metrics.Handler())(ctx)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)

		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	_, _ = ctx.Write(data)
}
