package health

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler serves a Checker over HTTP.
type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// Mount registers the probe routes under prefix:
//
//	GET {prefix}              full report
//	GET {prefix}/live         process is up, no checks run
//	GET {prefix}/ready        critical checks only
//	GET {prefix}/check/{name} one check
func (h *Handler) Mount(r *mux.Router, prefix string) {
	r.HandleFunc(prefix, h.report).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/live", h.live).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/ready", h.ready).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/check/{name}", h.single).Methods(http.MethodGet)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	report := h.checker.RunAll(r.Context())
	writeJSON(w, httpStatus(report.Status), report)
}

func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": string(StatusHealthy)})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	report := h.checker.RunAll(r.Context())
	if report.Ready() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

func (h *Handler) single(w http.ResponseWriter, r *http.Request) {
	res, err := h.checker.Run(r.Context(), mux.Vars(r)["name"])
	if errors.Is(err, ErrUnknownCheck) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, httpStatus(res.Status), res)
}

// httpStatus maps a status to a response code. Degraded answers 200.
func httpStatus(s Status) int {
	if s == StatusHealthy || s == StatusDegraded {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
