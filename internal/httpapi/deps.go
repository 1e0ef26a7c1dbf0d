package httpapi

import (
	"net/http"
	"sync/atomic"

	"autoapply-engine/internal/config"
	"autoapply-engine/internal/discovery"
	"autoapply-engine/internal/events"
	"autoapply-engine/internal/ratelimit"
	"autoapply-engine/internal/schedule"
	"autoapply-engine/internal/store"
)

type Deps struct {
	Hub *events.Hub

	// Atomic store for the live config.Config
	CfgVal *atomic.Value

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	Scheduler *schedule.Scheduler
	Discovery *discovery.Engine
	Postings  *store.Postings
	History   *store.History
	Limiter   *ratelimit.Limiter

	// Metrics is mounted at /metrics when set (promhttp handler).
	Metrics http.Handler
}
