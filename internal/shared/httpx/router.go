package httpx

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes is implemented by resource handlers that mount themselves on the mux.
// protect wraps handlers that need an authenticated caller.
type Routes interface {
	Register(mux *http.ServeMux, protect func(http.Handler) http.Handler)
}

type RouterConfig struct {
	// Protect authenticates requests to protected routes. Nil leaves them open.
	Protect func(http.Handler) http.Handler

	Metrics  *Metrics
	Gatherer prometheus.Gatherer

	// Ready reports readiness for /readyz. Nil means always ready.
	Ready func(r *http.Request) error
}

func NewRouter(log *slog.Logger, cfg RouterConfig, routes ...Routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r); err != nil {
				log.Warn("readyz_failed", slog.String("err", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	protect := cfg.Protect
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	for _, rt := range routes {
		rt.Register(mux, protect)
	}

	var h http.Handler = mux
	if cfg.Metrics != nil {
		h = cfg.Metrics.Middleware(h)
	}
	h = AccessLog(log)(h)
	h = RequestID(h)

	return h
}
