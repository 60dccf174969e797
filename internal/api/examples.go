package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sqlpilot/sqlpilot/internal/examples"
	"github.com/sqlpilot/sqlpilot/internal/pilot"
)

func handleListExamples(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pilot == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PILOT_NOT_CONFIGURED", "ask service is not configured", false, nil)
		return
	}
	corpus := deps.Pilot.Examples()
	writeJSON(w, http.StatusOK, map[string]any{
		"examples": corpus,
		"count":    len(corpus),
	})
}

func handleAppendExample(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pilot == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PILOT_NOT_CONFIGURED", "ask service is not configured", false, nil)
		return
	}

	var example examples.Example
	if err := json.NewDecoder(r.Body).Decode(&example); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid example body", false, map[string]any{"details": err.Error()})
		return
	}
	example = example.Normalize()
	if err := example.Validate(); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXAMPLE", err.Error(), false, nil)
		return
	}

	if err := deps.Pilot.SaveExample(r.Context(), example); err != nil {
		switch {
		case errors.Is(err, pilot.ErrSavingDisabled):
			writeError(r.Context(), w, http.StatusForbidden, "SAVING_DISABLED", "saving examples is disabled", false, nil)
		case errors.Is(err, examples.ErrInvalidExample):
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXAMPLE", err.Error(), false, nil)
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "EXAMPLE_SAVE_FAILED", "failed to save example", true, map[string]any{"details": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"example": example,
		"count":   len(deps.Pilot.Examples()),
	})
}
