package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
)

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireOperation(w, r, auth.OpAuditRead); !ok {
		return
	}

	filter := audit.ListFilter{
		ActorID:      strings.TrimSpace(r.URL.Query().Get("actor_id")),
		ResourceType: strings.TrimSpace(r.URL.Query().Get("resource_type")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("action")); raw != "" {
		action, ok := audit.ParseAction(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown action")
			return
		}
		filter.Action = action
	}

	var err error
	if filter.From, err = parseTimeParam(r.URL.Query().Get("start_date")); err != nil {
		writeError(w, r, http.StatusBadRequest, "start_date must be RFC 3339")
		return
	}
	if filter.To, err = parseTimeParam(r.URL.Query().Get("end_date")); err != nil {
		writeError(w, r, http.StatusBadRequest, "end_date must be RFC 3339")
		return
	}

	if filter.Page, err = parseIntParam(r.URL.Query().Get("page"), 1); err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	if filter.Limit, err = parseIntParam(r.URL.Query().Get("limit"), 50); err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	result, err := a.recorder.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to fetch audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseIntParam(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return 0, strconv.ErrRange
	}
	return val, nil
}
