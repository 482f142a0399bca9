package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"strider/internal/profile"
	"strider/internal/storage"
)

// defaultProfilePageSize bounds unpaginated memory listings.
const defaultProfilePageSize = 50

// ProfileHandler handles profile memory HTTP endpoints.
type ProfileHandler struct {
	store *profile.Store
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(store *profile.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// RegisterRoutes registers profile routes on the router.
func (h *ProfileHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/profile", h.HandleListMemories).Methods("GET")
	router.HandleFunc("/profile", h.HandleAddMemory).Methods("POST")
	router.HandleFunc("/profile/{id}", h.HandleDeleteMemory).Methods("DELETE")
}

// HandleListMemories returns stored memories. A q parameter switches
// from newest-first listing to relevance search.
func (h *ProfileHandler) HandleListMemories(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultProfilePageSize)

	var (
		memories []*profile.Memory
		err      error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		memories, err = h.store.Search(q, limit)
	} else {
		memories, err = h.store.Recent(limit)
	}
	if err != nil {
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{
		"memories": memories,
		"count":    len(memories),
	})
}

// HandleAddMemory stores a new memory.
func (h *ProfileHandler) HandleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	mem, err := h.store.Add(req.Content, req.Source)
	if err != nil {
		if errors.Is(err, profile.ErrEmptyContent) {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "content is required")
			return
		}
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	SendJSON(w, http.StatusCreated, mem)
}

// HandleDeleteMemory removes a memory by ID.
func (h *ProfileHandler) HandleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			SendError(w, http.StatusNotFound, ErrCodeNotFound, "memory not found")
			return
		}
		SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	SendJSON(w, http.StatusNoContent, nil)
}
