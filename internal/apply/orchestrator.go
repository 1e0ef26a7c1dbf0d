package apply

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/events"
	"autoapply-engine/internal/metrics"
	"autoapply-engine/internal/ratelimit"
	"autoapply-engine/internal/source"

	"golang.org/x/sync/errgroup"
)

// CVTextExtractor pulls plain text out of a stored CV file.
type CVTextExtractor interface {
	Extract(path string) (string, error)
}

// CoverLetterGenerator produces the letter body for one posting.
type CoverLetterGenerator interface {
	Generate(userName string, posting domain.Posting, cvText string) (string, error)
}

// DocumentRenderer writes the letter to an artifact file and returns its path.
type DocumentRenderer interface {
	Render(userID string, posting domain.Posting, letter string) (string, error)
}

// Notifier delivers per-application confirmations and the end-of-run summary.
type Notifier interface {
	SendConfirmation(ctx context.Context, userEmail string, app domain.Application) error
	SendRunSummary(ctx context.Context, userEmail string, summary RunSummary) error
}

// HistoryStore is the per-user application history the orchestrator dedups
// against and appends to.
type HistoryStore interface {
	AppliedKeys(ctx context.Context, userID string) (ids map[string]bool, urls map[string]bool, err error)
	Append(ctx context.Context, userID string, app domain.Application) error
}

// CandidateStore supplies already-discovered postings.
type CandidateStore interface {
	GetAll(ctx context.Context) (map[string]domain.Posting, error)
}

// QuotaReserver is the rate limiter's check-and-increment entry point.
type QuotaReserver interface {
	Reserve(ctx context.Context, identity string) (ratelimit.Decision, error)
}

type RunRequest struct {
	UserID          string
	UserName        string
	UserEmail       string
	JobTitle        string
	Location        string
	CVPath          string
	MaxApplications int
}

type AttemptResult struct {
	PostingID string             `json:"postingId"`
	Title     string             `json:"title"`
	Company   string             `json:"company"`
	Source    string             `json:"source"`
	URL       string             `json:"url"`
	Method    domain.ApplyMethod `json:"method,omitempty"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
}

type RunSummary struct {
	Candidates int             `json:"candidates"`
	Attempted  int             `json:"attempted"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	LimitHit   bool            `json:"limitHit"`
	LimitMsg   string          `json:"limitMsg,omitempty"`
	Results    []AttemptResult `json:"results"`
}

type Options struct {
	Registry  *Registry
	Email     Strategy // fallback lane; usually also registered under "email"
	Extractor CVTextExtractor
	Letters   CoverLetterGenerator
	Renderer  DocumentRenderer
	History   HistoryStore
	Postings  CandidateStore
	Source    source.JobSource
	Notifier  Notifier
	Quota     QuotaReserver
	Hub       *events.Hub
	Sink      metrics.Sink

	BatchSize      int
	AttemptTimeout time.Duration
	EmailFallback  bool
}

// Orchestrator runs one user's application round: pick candidates, submit in
// bounded batches, record history, notify.
type Orchestrator struct {
	opts  Options
	clock func() time.Time
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 180 * time.Second
	}
	if opts.Sink == nil {
		opts.Sink = metrics.Noop{}
	}
	return &Orchestrator{opts: opts, clock: time.Now}
}

func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	o.opts.Sink.RunsInFlight(1)
	defer o.opts.Sink.RunsInFlight(-1)

	cvText, err := o.opts.Extractor.Extract(req.CVPath)
	if err != nil {
		return RunSummary{}, err
	}

	candidates, err := o.selectCandidates(ctx, req)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Candidates: len(candidates)}
	if len(candidates) == 0 {
		log.Printf("[apply] user=%s no candidates for %q/%q", req.UserID, req.JobTitle, req.Location)
		return summary, nil
	}

	var (
		mu       sync.Mutex
		limitHit bool
		limitMsg string
	)

	// Fixed-width batches with a join barrier between them. The barrier is
	// the backpressure: batch n+1 starts only when every attempt of batch n
	// has come back.
	for start := 0; start < len(candidates); start += o.opts.BatchSize {
		mu.Lock()
		stopped := limitHit
		mu.Unlock()
		if stopped || ctx.Err() != nil {
			break
		}

		end := start + o.opts.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var g errgroup.Group
		for _, posting := range candidates[start:end] {
			posting := posting
			g.Go(func() error {
				decision, err := o.opts.Quota.Reserve(ctx, req.UserID)
				if err != nil {
					log.Printf("[apply] quota check user=%s: %v", req.UserID, err)
					return nil
				}
				if !decision.Allowed {
					mu.Lock()
					limitHit = true
					limitMsg = decision.Message
					mu.Unlock()
					return nil
				}

				res := o.applyOne(ctx, req, cvText, posting)

				mu.Lock()
				summary.Attempted++
				if res.Success {
					summary.Succeeded++
				} else {
					summary.Failed++
				}
				summary.Results = append(summary.Results, res)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	summary.LimitHit = limitHit
	summary.LimitMsg = limitMsg

	if summary.Succeeded > 0 && o.opts.Notifier != nil {
		if err := o.opts.Notifier.SendRunSummary(ctx, req.UserEmail, summary); err != nil {
			log.Printf("[apply] summary notification user=%s: %v", req.UserID, err)
		}
	}
	return summary, nil
}

// applyOne drives a single posting through strategy, timeout and, when
// allowed, the email fallback. It always returns a result, never panics the
// run.
func (o *Orchestrator) applyOne(ctx context.Context, req RunRequest, cvText string, posting domain.Posting) AttemptResult {
	res := AttemptResult{
		PostingID: posting.ID,
		Title:     posting.Title,
		Company:   posting.Company,
		Source:    posting.Source,
		URL:       posting.URL,
	}

	sreq := Request{
		UserID:    req.UserID,
		UserName:  req.UserName,
		UserEmail: req.UserEmail,
		CVPath:    req.CVPath,
		CVText:    cvText,
	}

	letter, err := o.opts.Letters.Generate(req.UserName, posting, cvText)
	if err != nil {
		res.Error = "cover letter: " + err.Error()
		o.opts.Sink.ApplicationAttempt("none", false)
		return res
	}
	sreq.CoverLetter = letter

	if o.opts.Renderer != nil {
		path, err := o.opts.Renderer.Render(req.UserID, posting, letter)
		if err != nil {
			log.Printf("[apply] render letter %s: %v", posting.ID, err)
		} else {
			sreq.CoverLetterPath = path
		}
	}

	method := domain.MethodDirect
	err = o.submitDirect(ctx, posting, sreq)

	if err != nil && o.opts.EmailFallback && o.opts.Email != nil && !strings.EqualFold(posting.Source, "email") {
		log.Printf("[apply] %s via %s failed (%v); trying email fallback", posting.ID, posting.Source, err)
		method = domain.MethodEmailFallback
		err = o.submitWithTimeout(ctx, o.opts.Email, posting, sreq)
	}

	res.Method = method
	if err != nil {
		res.Error = err.Error()
		o.opts.Sink.ApplicationAttempt(string(method), false)
		return res
	}

	res.Success = true
	o.opts.Sink.ApplicationAttempt(string(method), true)

	app := domain.Application{
		PostingID:       posting.ID,
		URL:             posting.URL,
		Title:           posting.Title,
		Company:         posting.Company,
		Source:          posting.Source,
		AppliedAt:       o.clock().UTC(),
		Method:          method,
		Success:         true,
		CoverLetterPath: sreq.CoverLetterPath,
	}
	if method == domain.MethodEmailFallback {
		app.ContactEmail = ResolveContact(posting)
	}

	if err := o.opts.History.Append(ctx, req.UserID, app); err != nil {
		log.Printf("[apply] record history %s: %v", posting.ID, err)
	}
	if o.opts.Notifier != nil {
		if err := o.opts.Notifier.SendConfirmation(ctx, req.UserEmail, app); err != nil {
			log.Printf("[apply] confirmation %s: %v", posting.ID, err)
		}
	}
	if o.opts.Hub != nil {
		o.opts.Hub.Publish(events.MakeEvent("", events.TypeApplicationSubmitted, 1, map[string]any{
			"postingId": posting.ID,
			"company":   posting.Company,
			"method":    string(method),
		}))
	}
	return res
}

func (o *Orchestrator) submitDirect(ctx context.Context, posting domain.Posting, sreq Request) error {
	strategy, err := o.opts.Registry.Resolve(posting.Source)
	if err != nil {
		return err // unsupported source; fallback may still handle it
	}
	return o.submitWithTimeout(ctx, strategy, posting, sreq)
}

func (o *Orchestrator) submitWithTimeout(ctx context.Context, s Strategy, posting domain.Posting, sreq Request) error {
	actx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
	defer cancel()

	err := s.Submit(actx, posting, sreq)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

// selectCandidates prefers the discovery store; a live search is the backstop
// when discovery hasn't seen anything matching yet. Already-applied postings
// are dropped either way.
func (o *Orchestrator) selectCandidates(ctx context.Context, req RunRequest) ([]domain.Posting, error) {
	appliedIDs, appliedURLs, err := o.opts.History.AppliedKeys(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	stored, err := o.opts.Postings.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var matched []domain.Posting
	for _, p := range stored {
		if matchesCriteria(p, req.JobTitle, req.Location) {
			matched = append(matched, p)
		}
	}

	if len(matched) == 0 && o.opts.Source != nil {
		drafts, err := o.opts.Source.Search(ctx, req.JobTitle, req.Location)
		if err != nil {
			return nil, err
		}
		now := o.clock().UTC().Format(time.RFC3339)
		for _, d := range drafts {
			if d.Title == "" || d.Company == "" {
				continue
			}
			matched = append(matched, domain.Posting{
				ID:             domain.PostingID(d.Company, d.Title, d.Source),
				Title:          d.Title,
				Company:        d.Company,
				Description:    d.Description,
				URL:            d.URL,
				Source:         strings.ToLower(d.Source),
				DiscoveredAt:   now,
				SearchTitle:    req.JobTitle,
				SearchLocation: req.Location,
			})
		}
	}

	out := matched[:0]
	for _, p := range matched {
		if appliedIDs[p.ID] || (p.URL != "" && appliedURLs[p.URL]) {
			continue
		}
		out = append(out, p)
	}

	if req.MaxApplications > 0 && len(out) > req.MaxApplications {
		out = out[:req.MaxApplications]
	}
	return out, nil
}

func matchesCriteria(p domain.Posting, title, location string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t != "" {
		if !strings.Contains(strings.ToLower(p.Title), t) &&
			!strings.EqualFold(p.SearchTitle, t) {
			return false
		}
	}
	l := strings.ToLower(strings.TrimSpace(location))
	if l != "" && p.SearchLocation != "" && !strings.Contains(strings.ToLower(p.SearchLocation), l) {
		return false
	}
	return true
}
