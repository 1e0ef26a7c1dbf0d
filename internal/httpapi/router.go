package httpapi

import "net/http"

// NewMux returns the raw mux so main() can still attach extra routes.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Schedules
	sh := ScheduleHandler{Scheduler: d.Scheduler}
	mux.HandleFunc("/schedule", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.Create,
	}))
	mux.HandleFunc("/schedule/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.List,
	}))
	mux.HandleFunc("/schedule/jobs/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:    sh.GetByPath,    // /schedule/jobs/{id}
		http.MethodPost:   sh.CancelByPath, // /schedule/jobs/{id}/cancel
		http.MethodDelete: sh.DeleteByPath, // /schedule/jobs/{id}
	}))

	// Discovery
	dh := DiscoveryHandler{Engine: d.Discovery, Postings: d.Postings}
	mux.HandleFunc("/discovery/start", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Start,
	}))
	mux.HandleFunc("/discovery/stop", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Stop,
	}))
	mux.HandleFunc("/discovery/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: dh.Jobs,
	}))
	mux.HandleFunc("/discovery/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: dh.Stats,
	}))
	mux.HandleFunc("/discovery/search", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Search,
	}))

	// Rate limits
	rh := RateLimitHandler{Limiter: d.Limiter}
	mux.HandleFunc("/ratelimit", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Check,
	}))
	mux.HandleFunc("/ratelimit/increment", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Increment,
	}))

	// Application history
	ah := ApplicationsHandler{History: d.History}
	mux.HandleFunc("/applications/summary", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.Summary,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	seh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/smtp", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: seh.SetSMTPPassword,
	}))
	mux.HandleFunc("/api/secrets/imap", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: seh.SetIMAPPassword,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Health
	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}

	return mux
}
