// Package api is the thin management HTTP/WS surface: the deploy,
// node-catalog, event-stream, health, and metrics endpoints an
// operator or editor front-end talks to. Kept deliberately small —
// every handler delegates straight into the runtime core
// (flowmanager.Manager, registry.Registry) and none of it re-derives
// runtime state of its own.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rauldose/node-red-new-sub000/internal/flowmanager"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtevents"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
)

// NewRouter builds the management router: flow deploy/read endpoints,
// a node-type catalog listing, a websocket status/event stream, a
// health check, and the Prometheus /metrics endpoint the ambient
// logging/metrics stack (internal/rtlog, internal/rtmetrics) feeds.
func NewRouter(mgr *flowmanager.Manager, reg *registry.Registry, events *rtevents.Emitter, log *rtlog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	flowHandler := &FlowHandler{mgr: mgr}
	nodeHandler := &NodeHandler{reg: reg}
	wsHandler := &WebSocketHandler{events: events}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/flows", flowHandler.GetFlows).Methods(http.MethodGet)
	apiRouter.HandleFunc("/flows", flowHandler.SetFlows).Methods(http.MethodPost, http.MethodPut)
	apiRouter.HandleFunc("/nodes", nodeHandler.ListNodeTypes).Methods(http.MethodGet)
	apiRouter.HandleFunc("/nodes/{type}", nodeHandler.GetNodeInfo).Methods(http.MethodGet)
	apiRouter.HandleFunc("/ws", wsHandler.Handle).Methods(http.MethodGet)
	apiRouter.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(log *rtlog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Debug(fmt.Sprintf("%s %s %s", r.Method, r.URL.Path, time.Since(start)), rtlog.WithType("api"))
			}
		})
	}
}

func recoveryMiddleware(log *rtlog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Error("api: panic recovered", rtlog.WithType("api"))
					}
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
