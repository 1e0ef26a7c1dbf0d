package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/browser"
	"autoapply-engine/internal/config"
	"autoapply-engine/internal/cvtext"
	"autoapply-engine/internal/discovery"
	"autoapply-engine/internal/events"
	"autoapply-engine/internal/httpapi"
	"autoapply-engine/internal/letters"
	"autoapply-engine/internal/metrics"
	"autoapply-engine/internal/notify"
	"autoapply-engine/internal/ratelimit"
	"autoapply-engine/internal/replywatch"
	"autoapply-engine/internal/schedule"
	"autoapply-engine/internal/secrets"
	"autoapply-engine/internal/source"
	"autoapply-engine/internal/store"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

func main() {
	// Engine data dir: use env if provided, else local folder.
	dataDir := os.Getenv("AUTOAPPLY_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// Single-instance guard: two engines sharing one db would double-apply.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("instance lock: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance already holds %s", lock.Path())
	}
	defer lock.Unlock()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "autoapply.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	kv, err := store.NewKV(db)
	if err != nil {
		log.Fatal(err)
	}
	postings := store.NewPostings(kv)
	schedules := store.NewSchedules(kv)
	history := store.NewHistory(kv)

	hub := events.NewHub()

	reg := prometheus.NewRegistry()
	sink := metrics.NewPromSink(reg)

	// Quota counters: redis when shared across machines, in-memory otherwise.
	var counters ratelimit.CounterStore = ratelimit.NewMemoryCounters()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		counters = ratelimit.NewRedisCounters(rdb)
		log.Printf("[main] rate-limit counters on redis %s/%d", cfg.Redis.Addr, cfg.Redis.DB)
	}
	limiter := ratelimit.New(counters, cfg.Limits.Daily, cfg.Limits.Weekly)

	pacer := source.NewHostLimiter(cfg.Discovery.RequestsPerSec, cfg.Discovery.RequestBurst)
	boards := jobBoards(pacer)
	sources := append([]source.JobSource{}, boards...)
	if len(cfg.Discovery.LeverCompanies) > 0 {
		companies := make([]source.LeverCompany, 0, len(cfg.Discovery.LeverCompanies))
		for _, c := range cfg.Discovery.LeverCompanies {
			companies = append(companies, source.LeverCompany{Slug: c.Slug, Name: c.Name})
		}
		sources = append(sources, source.NewLever(companies, pacer))
	}
	multi := &source.Multi{Sources: sources}

	engine := discovery.New(discovery.Options{
		Source:           multi,
		Store:            postings,
		Hub:              hub,
		Sink:             sink,
		FullSpec:         cfg.Discovery.FullSpec,
		PrioritySpec:     cfg.Discovery.PrioritySpec,
		CleanupSpec:      cfg.Discovery.CleanupSpec,
		Retention:        time.Duration(cfg.Discovery.RetentionHours) * time.Hour,
		TitlesPerCycle:   cfg.Discovery.TitlesPerCycle,
		Titles:           cfg.Discovery.Titles,
		Locations:        cfg.Discovery.Locations,
		PriorityTitles:   cfg.Discovery.PriorityTitles,
		HubLocations:     cfg.Discovery.HubLocations,
		Weights:          cfg.Discovery.SourceWeights,
		HiringNowTerms:   cfg.Discovery.HiringNowTerms,
		EmailDenyDomains: cfg.Discovery.EmailDenyDomains,
	})
	if err := engine.Start(); err != nil {
		log.Fatalf("discovery start: %v", err)
	}

	// Mail: SMTP when configured, log-only otherwise. The password lives in
	// the OS keyring, resolved per send so /api/secrets updates apply live.
	smtpPassword := func() (string, error) {
		cur := cfgVal.Load().(config.Config)
		return secrets.GetSMTPPassword(secrets.SMTPKeyringAccount(cur))
	}
	var notifier notify.Notifier = notify.LogNotifier{}
	var emailStrategy apply.Strategy
	emailFallback := false
	if cfg.Notify.Enabled && cfg.Notify.SMTPHost != "" {
		smtp := notify.NewSMTP(cfg.Notify.SMTPHost, cfg.Notify.SMTPPort, cfg.Notify.From, cfg.Notify.Username, smtpPassword)
		notifier = smtp
		emailStrategy = apply.NewEmailStrategy(&notify.ApplicationSender{SMTP: smtp})
		emailFallback = cfg.Apply.EmailFallback
	} else {
		log.Printf("[main] smtp not configured; notifications are log-only and email fallback is off")
	}

	// Submission strategies: one per board, all sharing the browser sessions.
	sessions := semaphore.NewWeighted(int64(cfg.Apply.BrowserSessions))
	submitter := browser.NewFormSubmitter(pacer)
	registry := apply.NewRegistry()
	for _, b := range boards {
		registry.Register(b.Name(), apply.NewBrowserStrategy(b.Name(), submitter, sessions))
	}
	if len(cfg.Discovery.LeverCompanies) > 0 {
		// Lever hosted postings carry a standard apply form.
		registry.Register("lever", apply.NewBrowserStrategy("lever", submitter, sessions))
	}
	if emailStrategy != nil {
		registry.Register("email", emailStrategy)
	}

	orch := apply.NewOrchestrator(apply.Options{
		Registry:       registry,
		Email:          emailStrategy,
		Extractor:      cvtext.Extractor{},
		Letters:        letters.Generator{},
		Renderer:       letters.Renderer{Dir: filepath.Join(dataDir, "letters")},
		History:        history,
		Postings:       postings,
		Source:         multi,
		Notifier:       notifier,
		Quota:          limiter,
		Hub:            hub,
		Sink:           sink,
		BatchSize:      cfg.Apply.BatchSize,
		AttemptTimeout: time.Duration(cfg.Apply.AttemptSeconds) * time.Second,
		EmailFallback:  emailFallback,
	})

	sched := schedule.New(schedule.Options{
		Store:   schedules,
		Runner:  orch,
		Noticer: notifier,
		Hub:     hub,
		Sink:    sink,
		Poll:    time.Duration(cfg.Scheduler.PollSeconds) * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sched.Start(ctx)

	if cfg.Replies.Enabled && cfg.Replies.IMAPHost != "" {
		imapPassword := func() (string, error) {
			cur := cfgVal.Load().(config.Config)
			return secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(cur))
		}
		watcher := replywatch.New(replywatch.Options{
			Inbox: &replywatch.IMAPInbox{
				Host:     cfg.Replies.IMAPHost,
				Port:     cfg.Replies.IMAPPort,
				Username: cfg.Replies.Username,
				Mailbox:  cfg.Replies.Mailbox,
				Password: imapPassword,
			},
			History: history,
			Users:   schedules,
			Hub:     hub,
			Poll:    time.Duration(cfg.Replies.PollSeconds) * time.Second,
		})
		go watcher.Start(ctx)
	}

	mux := httpapi.NewMux(httpapi.Deps{
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Scheduler:   sched,
		Discovery:   engine,
		Postings:    postings,
		History:     history,
		Limiter:     limiter,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.Cors, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(16)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "shutdown_token"), []byte(token), 0o600); err != nil {
		log.Fatal(err)
	}
	mux.HandleFunc("/shutdown", shutdownHandler(&token, srv))

	port := cfg.App.Port
	if port == 0 {
		port = 38471
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("engine listening on http://%s (db=%s)", addr, dbPath)

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
