package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hexpg/pgwire/metrics"
)

// startAdmin serves /metrics (Prometheus) and /healthz on address,
// mirroring JeelKantaria-db-bouncer's internal/api pattern.
func startAdmin(address string, collector *metrics.Collector, logger *slog.Logger) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(collector.Registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         address,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("pgwire: admin surface listening", slog.String("addr", address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("pgwire: admin surface failed", slog.Any("err", err))
		}
	}()

	return srv
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
