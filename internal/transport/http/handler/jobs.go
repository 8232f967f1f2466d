package handler

import (
	"net/http"
	"time"

	"github.com/carelink-api/internal/application/audit"
	"github.com/carelink-api/internal/application/dispatch"
	"github.com/carelink-api/internal/application/reminder"
)

// JobHandler exposes manual triggers for the periodic jobs. Admin only; the
// worker runner drives the same code paths on timers.
type JobHandler struct {
	reminders reminder.Service
	deferred  dispatch.Service
	auditSvc  audit.Service
}

func NewJobHandler(reminders reminder.Service, deferred dispatch.Service, auditSvc audit.Service) *JobHandler {
	return &JobHandler{reminders: reminders, deferred: deferred, auditSvc: auditSvc}
}

func (h *JobHandler) FireReminders(w http.ResponseWriter, r *http.Request) {
	report, err := h.reminders.FireDueReminders(r.Context(), time.Now())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobReportEnvelope{Job: "fire-reminders", Report: report})
}

func (h *JobHandler) ProcessDeferred(w http.ResponseWriter, r *http.Request) {
	report, err := h.deferred.ProcessDeferred(r.Context(), time.Now())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobReportEnvelope{Job: "process-deferred", Report: report})
}

func (h *JobHandler) SweepAudit(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.auditSvc.SweepRetention(r.Context(), time.Now())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobReportEnvelope{Job: "sweep-audit", Report: map[string]int{"deleted": deleted}})
}
