package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/catalog"
	"github.com/DoyleJ11/live-cursor/internal/hub"
	"github.com/DoyleJ11/live-cursor/internal/ws"
)

type Options struct {
	Catalog catalog.Store
	Logger  *zap.Logger
	WS      ws.Options
	// Metrics serves /metrics; promhttp.Handler() when nil.
	Metrics http.Handler
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WS.Logger == nil {
		opts.WS.Logger = opts.Logger
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()

	// Public routes
	r.Post("/channels", CreateChannel(h, opts.Catalog, opts.Logger))
	r.Get("/channels", ListChannels(h, opts.Catalog, opts.Logger))
	r.Get("/channels/{name}/peers", Peers(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, opts.WS))
	r.Method(http.MethodGet, "/metrics", opts.Metrics)
	return r
}
