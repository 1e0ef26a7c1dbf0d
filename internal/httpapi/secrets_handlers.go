package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"autoapply-engine/internal/config"
	"autoapply-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetSMTPPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetSMTPPassword(secrets.SMTPKeyringAccount(cfg), req.Password); err != nil {
		http.Error(w, "failed to store password: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetIMAPPassword(secrets.IMAPKeyringAccount(cfg), req.Password); err != nil {
		http.Error(w, "failed to store password: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
