package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type auditLogResponse struct {
	ID          string          `json:"id"`
	ActorUserID *string         `json:"actor_user_id,omitempty"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Data        json.RawMessage `json:"data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}
	page := parseInt(query.Get("page"), 1)
	rows, err := h.audit.List(r.Context(), scope.BusinessID, limit, (page-1)*limit)
	if err != nil {
		respondServiceError(w, r, "ListAuditLogs", err)
		return
	}
	out := make([]auditLogResponse, 0, len(rows))
	for _, row := range rows {
		item := auditLogResponse{
			ID:          row.ID,
			ActorUserID: row.ActorUserID,
			Action:      row.Action,
			EntityType:  row.EntityType,
			EntityID:    row.EntityID,
			CreatedAt:   row.CreatedAt,
		}
		if json.Valid([]byte(row.Data)) {
			item.Data = json.RawMessage(row.Data)
		}
		out = append(out, item)
	}
	respondJSON(w, http.StatusOK, out)
}
