package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes wires the station API, its websocket, metrics and the static page.
func (h *Handler) Routes(gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/enrollments", h.HandleCreateEnrollment).Methods("POST")
	r.HandleFunc("/api/enrollments", h.HandleListEnrollments).Methods("GET")
	r.HandleFunc("/api/enrollments/{id}", h.HandleGetEnrollment).Methods("GET")
	r.HandleFunc("/api/enrollments/{id}", h.HandleDeleteEnrollment).Methods("DELETE")
	r.HandleFunc("/api/enrollments/{id}/input", h.HandleInput).Methods("POST")
	r.HandleFunc("/api/station/ws", h.HandleStation)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	}).Methods("GET")

	r.PathPrefix("/").HandlerFunc(h.HandleStatic)
	return r
}
