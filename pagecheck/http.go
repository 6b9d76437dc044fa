package pagecheck

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/pagecheck/safe"
	"github.com/hazyhaar/pagecheck/shield"
)

// NewHandler serves the run history and artifacts read-only:
//
//	GET /health
//	GET /api/runs?limit=N
//	GET /api/runs/{id}
//	GET /api/runs/{id}/excerpt/{scenario}
//	GET /artifacts/*
//	GET /metrics
//
// st may be nil (history routes answer 503); gatherer may be nil (no
// /metrics route).
func NewHandler(st *Store, artifactsDir string, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if artifactsDir == "" {
		artifactsDir = "."
	}
	h := &apiHandler{st: st, artifacts: artifactsDir, policy: bluemonday.UGCPolicy()}

	r := chi.NewRouter()
	for _, mw := range shield.APIStack(logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Get("/{id}", h.getRun)
		r.Get("/{id}/excerpt/{scenario}", h.getExcerpt)
	})
	r.Get("/artifacts/*", h.getArtifact)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type apiHandler struct {
	st        *Store
	artifacts string
	policy    *bluemonday.Policy
}

func (h *apiHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.st == nil {
		writeError(w, http.StatusServiceUnavailable, ErrHistoryDisabled)
		return
	}
	runs, err := h.st.ListRuns(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		shield.GetLogger(r.Context()).Error("api: list runs", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *apiHandler) getRun(w http.ResponseWriter, r *http.Request) {
	if h.st == nil {
		writeError(w, http.StatusServiceUnavailable, ErrHistoryDisabled)
		return
	}
	id := chi.URLParam(r, "id")
	if err := safe.Identifier(id); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rep, err := h.st.GetRun(r.Context(), id)
	if errors.Is(err, ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		shield.GetLogger(r.Context()).Error("api: get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// getExcerpt serves the failure DOM excerpt as an HTML fragment. It was
// sanitized when captured and is sanitized again on the way out.
func (h *apiHandler) getExcerpt(w http.ResponseWriter, r *http.Request) {
	if h.st == nil {
		writeError(w, http.StatusServiceUnavailable, ErrHistoryDisabled)
		return
	}
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "scenario")
	for _, v := range []string{id, name} {
		if err := safe.Identifier(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	frag, err := h.st.Excerpt(r.Context(), id, name)
	if errors.Is(err, ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.policy.Sanitize(frag)))
}

func (h *apiHandler) getArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := safe.Path(h.artifacts, chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		writeError(w, http.StatusNotFound, errors.New("artifact not found"))
		return
	}
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
