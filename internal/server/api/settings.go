package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/wavestop/internal/config"
	"github.com/ayusman/wavestop/internal/store"
)

// SettingsHandler serves /api/settings. Stored overrides take effect on the
// next start; every write is validated against base first.
type SettingsHandler struct {
	store *store.Store
	base  config.Config
}

// NewSettingsHandler creates a SettingsHandler validating against base.
func NewSettingsHandler(s *store.Store, base config.Config) *SettingsHandler {
	return &SettingsHandler{store: s, base: base}
}

type settingsResponse struct {
	Settings        map[string]string `json:"settings"`
	Keys            []string          `json:"keys"`
	RestartRequired bool              `json:"restart_required,omitempty"`
}

// ServeHTTP routes /api/settings and /api/settings/{key}.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/settings"), "/")

	if key == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPut:
			h.update(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.delete(w, r, key)
}

func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Settings: settings,
		Keys:     config.OverrideKeys(),
	})
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}

	incoming := make(map[string]string, len(body))
	for key, v := range body {
		switch v := v.(type) {
		case string:
			incoming[key] = v
		case json.Number:
			incoming[key] = v.String()
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Setting %s must be a number or string", key))
			return
		}
	}

	stored, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	for k, v := range incoming {
		stored[k] = v
	}

	// Validate the combined result, not just the new keys.
	cfg := h.base
	if err := cfg.ApplyOverrides(stored); err != nil {
		if errors.Is(err, config.ErrUnknownSetting) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.Settings().SetMany(incoming); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Settings:        stored,
		Keys:            config.OverrideKeys(),
		RestartRequired: true,
	})
}

func (h *SettingsHandler) delete(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.store.Settings().Delete(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
