package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"autoapply-engine/internal/schedule"
)

type ScheduleHandler struct {
	Scheduler *schedule.Scheduler
}

func (h ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req schedule.CreateRequest
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}

	sched, err := h.Scheduler.Create(r.Context(), req)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_schedule", err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, sched)
}

func (h ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	scheds, err := h.Scheduler.List(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, scheds)
}

// jobIDFromPath parses /schedule/jobs/{id} and /schedule/jobs/{id}/cancel.
func jobIDFromPath(path string) (id string, cancel bool) {
	rest := strings.TrimPrefix(path, "/schedule/jobs/")
	rest = strings.Trim(rest, "/")
	if s, ok := strings.CutSuffix(rest, "/cancel"); ok {
		return s, true
	}
	return rest, false
}

func (h ScheduleHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id, _ := jobIDFromPath(r.URL.Path)
	sched, err := h.Scheduler.Get(r.Context(), id)
	if err != nil {
		writeScheduleErr(w, r, err)
		return
	}
	writeJSON(w, sched)
}

func (h ScheduleHandler) CancelByPath(w http.ResponseWriter, r *http.Request) {
	id, isCancel := jobIDFromPath(r.URL.Path)
	if !isCancel || id == "" {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown schedule action")
		return
	}
	sched, err := h.Scheduler.Cancel(r.Context(), id)
	if err != nil {
		writeScheduleErr(w, r, err)
		return
	}
	writeJSON(w, sched)
}

func (h ScheduleHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	id, isCancel := jobIDFromPath(r.URL.Path)
	if isCancel || id == "" {
		WriteError(w, r, http.StatusNotFound, "not_found", "unknown schedule action")
		return
	}
	if err := h.Scheduler.Delete(r.Context(), id); err != nil {
		writeScheduleErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeScheduleErr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, schedule.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "schedule not found")
		return
	}
	WriteError(w, r, http.StatusInternalServerError, "schedule_failed", err.Error())
}
