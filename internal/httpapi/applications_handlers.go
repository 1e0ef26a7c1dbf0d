package httpapi

import (
	"net/http"
	"sort"
	"strings"

	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/store"
)

type ApplicationsHandler struct {
	History *store.History
}

type applicationsSummary struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Responses int                  `json:"responses"`
	BySource  map[string]int       `json:"bySource"`
	ByMethod  map[string]int       `json:"byMethod"`
	Recent    []domain.Application `json:"recent"`
}

// Summary aggregates one user's application history.
func (h ApplicationsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_user", "user query parameter is required")
		return
	}

	apps, err := h.History.List(r.Context(), user)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}

	out := applicationsSummary{
		Total:    len(apps),
		BySource: map[string]int{},
		ByMethod: map[string]int{},
	}
	for _, app := range apps {
		if app.Success {
			out.Succeeded++
		}
		if app.ResponseReceived {
			out.Responses++
		}
		out.BySource[app.Source]++
		out.ByMethod[string(app.Method)]++
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].AppliedAt.After(apps[j].AppliedAt) })
	if len(apps) > 10 {
		apps = apps[:10]
	}
	out.Recent = apps

	writeJSON(w, out)
}
