package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/wavestop/internal/store"
)

const (
	defaultExecutionLimit = 50
	maxExecutionLimit     = 500
)

// ExecutionsHandler serves GET /api/executions.
type ExecutionsHandler struct {
	store *store.Store
}

// NewExecutionsHandler creates an ExecutionsHandler.
func NewExecutionsHandler(s *store.Store) *ExecutionsHandler {
	return &ExecutionsHandler{store: s}
}

type executionsResponse struct {
	Executions []*store.Execution `json:"executions"`
}

func (h *ExecutionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultExecutionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxExecutionLimit)
	}

	executions, err := h.store.Executions().ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, executionsResponse{Executions: executions})
}
