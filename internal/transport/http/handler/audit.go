package handler

import (
	"net/http"

	"github.com/carelink-api/internal/application/audit"
)

// AuditHandler exposes the audit ledger to admins.
type AuditHandler struct {
	svc audit.Service
}

func NewAuditHandler(svc audit.Service) *AuditHandler { return &AuditHandler{svc: svc} }

func (h *AuditHandler) ListByActor(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("actor_id")
	if actorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required")
		return
	}
	records, err := h.svc.ListByActor(r.Context(), actorID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
