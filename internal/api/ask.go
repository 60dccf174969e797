package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/database"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/pilot"
	"github.com/sqlpilot/sqlpilot/internal/prompt"
)

type pingRequest struct {
	DatabaseInfo *database.Info `json:"databaseInfo"`
}

// The legacy routes tolerate extra fields, and /ping also takes the
// connection fields at the top level of the body.
func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request, legacy bool) {
	if deps.Pilot == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PILOT_NOT_CONFIGURED", "ask service is not configured", false, nil)
		return
	}

	var request pilot.AskRequest
	decoder := json.NewDecoder(r.Body)
	if !legacy {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}

	response, err := deps.Pilot.Ask(r.Context(), request)
	if err != nil {
		writeAskError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func handlePing(deps Dependencies, w http.ResponseWriter, r *http.Request, legacy bool) {
	if deps.Pilot == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PILOT_NOT_CONFIGURED", "ask service is not configured", false, nil)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ping request body", false, map[string]any{"details": err.Error()})
		return
	}
	var request pingRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ping request body", false, map[string]any{"details": err.Error()})
		return
	}
	var info database.Info
	switch {
	case request.DatabaseInfo != nil:
		info = *request.DatabaseInfo
	case legacy:
		if err := json.Unmarshal(raw, &info); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ping request body", false, map[string]any{"details": err.Error()})
			return
		}
	}
	if err := deps.Pilot.Ping(r.Context(), info); err != nil {
		writeAskError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeAskError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var connErr *database.ConnectionError
	var modelErr *agent.ModelError
	switch {
	case errors.Is(err, pilot.ErrQueryRequired):
		writeError(ctx, w, http.StatusBadRequest, "QUERY_REQUIRED", "query is required", false, nil)
	case errors.Is(err, pilot.ErrInvalidDatabaseInfo):
		writeError(ctx, w, http.StatusBadRequest, "DATABASE_INFO_INVALID", err.Error(), false, nil)
	case errors.Is(err, prompt.ErrCustomPromptRejected):
		writeError(ctx, w, http.StatusBadRequest, "CUSTOM_PROMPT_REJECTED", "customPrompt is not accepted by this server", false, nil)
	case errors.As(err, &connErr):
		writeError(ctx, w, http.StatusBadGateway, "CONNECTION_FAILED", "failed to connect to database", false, map[string]any{
			"dialect": string(connErr.Dialect),
			"target":  connErr.Target,
			"details": connErr.Err.Error(),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "REQUEST_CANCELLED", "request was cancelled before an answer was found", true, nil)
	case errors.As(err, &modelErr):
		writeError(ctx, w, http.StatusBadGateway, "LLM_FAILED", "language model call failed", true, map[string]any{"details": modelErr.Err.Error()})
	default:
		if deps.Logger != nil {
			observability.LoggerFromContext(ctx, deps.Logger).ErrorContext(ctx, "ask failed", slog.Any("error", err))
		}
		writeError(ctx, w, http.StatusInternalServerError, "ASK_FAILED", "failed to answer question", true, map[string]any{"details": err.Error()})
	}
}
