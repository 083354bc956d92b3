// Package server wires HTTP handlers into a router for the relay via
// routing helpers.
package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Tyrowin/partyrelay/internal/metrics"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SetupRoutes configures the router with every relay endpoint and wraps it
// with recovery, proxy header, access log and CORS middleware. reg may be
// nil, in which case /metrics is not served.
func SetupRoutes(hub *Hub, reg *prometheus.Registry) http.Handler {
	policy := NewOriginPolicy(hub.Config().AllowedOrigins, hub.logger)

	router := mux.NewRouter()
	router.HandleFunc("/", HealthHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/healthz", HealthzHandler(hub)).Methods(http.MethodGet)
	router.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", WebSocketHandler(hub, NewUpgrader(policy)))
	if reg != nil {
		router.Handle("/metrics", metrics.Handler(reg)).Methods(http.MethodGet)
	}

	var h http.Handler = router
	h = CORS(policy)(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLogger(hub.logger))
	h = handlers.ProxyHeaders(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{hub.logger}))(h)
	return h
}

func accessLogger(logger *zap.Logger) handlers.LogFormatter {
	return func(_ io.Writer, params handlers.LogFormatterParams) {
		r := params.Request
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("uri", params.URL.RequestURI()),
			zap.Int("status", params.StatusCode),
			zap.Int("size", params.Size),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
			zap.Duration("elapsed", time.Since(params.TimeStamp)),
		)
	}
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("recovered from panic in http handler", zap.String("panic", fmt.Sprint(v...)))
}
