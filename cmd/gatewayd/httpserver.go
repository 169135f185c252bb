package main

import (
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/0xHoneyJar/loa-freeside/internal/gateway"
)

// httpServer is a thin wrapper so main can treat the health surface like
// any other component with a ListenAndServe/Shutdown pair.
type httpServer struct {
	srv *fasthttp.Server
}

func newHTTPServer(port string, health *gateway.HealthServer, logger zerolog.Logger) *httpServer {
	return &httpServer{
		srv: &fasthttp.Server{
			Handler: health.Handler(),
			Name:    "gatewayd",
		},
	}
}

func (h *httpServer) ListenAndServe(addr string) error {
	return h.srv.ListenAndServe(addr)
}

func (h *httpServer) Shutdown() error {
	return h.srv.Shutdown()
}
