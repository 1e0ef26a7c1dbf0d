package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"autoapply-engine/internal/ratelimit"
)

type RateLimitHandler struct {
	Limiter *ratelimit.Limiter
}

func (h RateLimitHandler) Check(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.URL.Query().Get("identity"))
	if identity == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_identity", "identity query parameter is required")
		return
	}
	dec, err := h.Limiter.Check(r.Context(), identity)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "check_failed", err.Error())
		return
	}
	writeJSON(w, dec)
}

type incrementReq struct {
	Identity string `json:"identity"`
}

func (h RateLimitHandler) Increment(w http.ResponseWriter, r *http.Request) {
	var req incrementReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Identity) == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_identity", "identity is required")
		return
	}
	if err := h.Limiter.Increment(r.Context(), req.Identity); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "increment_failed", err.Error())
		return
	}
	dec, err := h.Limiter.Check(r.Context(), req.Identity)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "check_failed", err.Error())
		return
	}
	writeJSON(w, dec)
}
