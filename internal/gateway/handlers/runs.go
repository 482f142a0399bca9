package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"strider/internal/storage"
)

// defaultRunsPageSize bounds unpaginated run listings.
const defaultRunsPageSize = 50

// RunsHandler handles run history HTTP endpoints.
type RunsHandler struct {
	db *storage.DB
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(db *storage.DB) *RunsHandler {
	return &RunsHandler{db: db}
}

// RegisterRoutes registers run routes on the router.
func (h *RunsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/runs", h.HandleListRuns).Methods("GET")
	router.HandleFunc("/runs/{id}", h.HandleGetRun).Methods("GET")
	router.HandleFunc("/runs/{id}", h.HandleDeleteRun).Methods("DELETE")
}

// HandleListRuns returns recorded runs, newest first.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultRunsPageSize)
	offset := queryInt(r, "offset", 0)

	runs, err := h.db.ListRuns(limit, offset)
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun returns a run by ID.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.db.GetRun(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			SendError(w, http.StatusNotFound, ErrCodeNotFound, "run not found")
			return
		}
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	SendJSON(w, http.StatusOK, run)
}

// HandleDeleteRun removes a run record.
func (h *RunsHandler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.db.DeleteRun(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			SendError(w, http.StatusNotFound, ErrCodeNotFound, "run not found")
			return
		}
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	SendJSON(w, http.StatusNoContent, nil)
}

// queryInt reads an integer query parameter, falling back on absence
// or garbage.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
