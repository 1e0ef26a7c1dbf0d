package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"

	"autoapply-engine/internal/discovery"
	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/store"
)

type DiscoveryHandler struct {
	Engine   *discovery.Engine
	Postings *store.Postings
}

func (h DiscoveryHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.Engine.Running() {
		WriteError(w, r, http.StatusConflict, "already_running", "discovery is already running")
		return
	}
	if err := h.Engine.Start(); err != nil {
		WriteError(w, r, http.StatusBadRequest, "start_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "running": true})
}

func (h DiscoveryHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.Engine.Stop()
	writeJSON(w, map[string]any{"ok": true, "running": false})
}

// Jobs lists stored postings, newest discovery first.
func (h DiscoveryHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	all, err := h.Postings.GetAll(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	out := make([]domain.Posting, 0, len(all))
	for _, p := range all {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscoveredAt > out[j].DiscoveredAt })
	writeJSON(w, out)
}

func (h DiscoveryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	writeJSON(w, stats)
}

type searchReq struct {
	Titles    []string `json:"titles"`
	Locations []string `json:"locations"`
}

func (h DiscoveryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}
	postings, err := h.Engine.SearchCustom(r.Context(), req.Titles, req.Locations)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "search_failed", err.Error())
		return
	}
	writeJSON(w, postings)
}
