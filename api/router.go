package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/iov-one/fedescrow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendermint/tendermint/libs/log"
)

// NewRouter returns the guardian HTTP API. Metrics are served from the
// gatherer, if not nil.
func NewRouter(b Backend, gatherer prometheus.Gatherer, logger log.Logger) http.Handler {
	if logger == nil {
		logger = fedescrow.DefaultLogger
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))

	r.Method(http.MethodPost, "/tx", &SubmitTxHandler{Backend: b, Logger: logger})
	r.Method(http.MethodGet, "/tx/{id}", &TxStatusHandler{Backend: b, Logger: logger})
	r.Method(http.MethodGet, "/escrow/{id}", &EscrowHandler{Backend: b, Logger: logger})
	r.Method(http.MethodGet, "/balance/{pubkey}", &BalanceHandler{Backend: b, Logger: logger})
	r.Method(http.MethodGet, "/config", &ConfigHandler{Backend: b, Logger: logger})
	r.Method(http.MethodGet, "/healthz", &HealthHandler{Backend: b, Logger: logger})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.NotFound(notFoundHandler(logger))
	return r
}

func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"took", time.Since(start).String(),
				"request", chimw.GetReqID(r.Context()))
		})
	}
}
