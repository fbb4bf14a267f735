package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/camlink/camlink"
	"github.com/camlink/camlink/internal/stats"
)

// statusResponse is the JSON body of GET /status.
type statusResponse struct {
	State             string `json:"state"`
	Health            string `json:"health"`
	Running           bool   `json:"running"`
	FramesDecoded     uint64 `json:"frames_decoded"`
	DecodeErrors      uint64 `json:"decode_errors"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

// newStatusServer serves liveness, a JSON status snapshot, and Prometheus
// metrics for one pipeline.
func newStatusServer(addr string, pipe *camlink.Pipeline, m *stats.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			State:             pipe.State().String(),
			Health:            pipe.Health().String(),
			Running:           pipe.IsRunning(),
			FramesDecoded:     pipe.FrameCount(),
			DecodeErrors:      pipe.ErrorCount(),
			ReconnectAttempts: pipe.Manager().ReconnectAttempts(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	r.Post("/reconnect", func(w http.ResponseWriter, _ *http.Request) {
		pipe.Manager().TriggerReconnect()
		w.WriteHeader(http.StatusAccepted)
	})

	r.Handle("/metrics", m.Handler())

	return &http.Server{Addr: addr, Handler: r}
}
