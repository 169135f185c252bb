package structs

// HealthResponse is returned by GET /health. Its presence on a 200
// response means the process is alive, not that it is serving traffic.
type HealthResponse struct {
	Status string `json:"status"`
	PoolID uint64 `json:"pool_id"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready         bool   `json:"ready"`
	PoolID        uint64 `json:"pool_id"`
	ShardsTotal   int    `json:"shards_total"`
	ShardsReady   int    `json:"shards_ready"`
	NATSConnected bool   `json:"nats_connected"`
	GuildsTotal   uint64 `json:"guilds_total"`
}

// BaseResponse is a generic success/data/error JSON envelope. No handler
// on the health router writes it; /health and /ready use the types above.
type BaseResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
