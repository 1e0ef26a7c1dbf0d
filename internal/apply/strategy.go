package apply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autoapply-engine/internal/domain"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrUnsupportedSource means no strategy is registered for a posting's
	// source. The attempt reports it needs manual handling instead of
	// guessing at a submission flow.
	ErrUnsupportedSource = errors.New("source requires manual handling")

	ErrNoContact = errors.New("no contact address resolved")
)

// Request carries the applicant's side of a submission.
type Request struct {
	UserID          string
	UserName        string
	UserEmail       string
	CVPath          string
	CVText          string
	CoverLetter     string
	CoverLetterPath string
}

// Strategy submits one application to one posting.
type Strategy interface {
	Name() string
	Submit(ctx context.Context, posting domain.Posting, req Request) error
}

// Registry maps a posting source to its strategy. Lookups are exact and
// case-insensitive; an unknown source is an explicit error, never a silent
// default.
type Registry struct {
	m map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Strategy)}
}

func (r *Registry) Register(source string, s Strategy) {
	r.m[strings.ToLower(source)] = s
}

func (r *Registry) Resolve(source string) (Strategy, error) {
	s, ok := r.m[strings.ToLower(source)]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", source, ErrUnsupportedSource)
	}
	return s, nil
}

// BrowserSubmitter drives an automated browser session through a board's
// application flow.
type BrowserSubmitter interface {
	Submit(ctx context.Context, boardName string, posting domain.Posting, req Request) error
}

// browserStrategy wraps a BrowserSubmitter for one board. All browser
// strategies share sessions, which are scarcer than batch slots.
type browserStrategy struct {
	board    string
	browser  BrowserSubmitter
	sessions *semaphore.Weighted
}

func NewBrowserStrategy(board string, browser BrowserSubmitter, sessions *semaphore.Weighted) Strategy {
	return &browserStrategy{board: board, browser: browser, sessions: sessions}
}

func (s *browserStrategy) Name() string { return s.board }

func (s *browserStrategy) Submit(ctx context.Context, posting domain.Posting, req Request) error {
	if err := s.sessions.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: acquire browser session: %w", s.board, err)
	}
	defer s.sessions.Release(1)

	if err := s.browser.Submit(ctx, s.board, posting, req); err != nil {
		return fmt.Errorf("%s submit: %w", s.board, err)
	}
	return nil
}

// EmailSender delivers an application by mail to a resolved contact.
type EmailSender interface {
	SendApplication(ctx context.Context, to string, posting domain.Posting, req Request) error
}

type emailStrategy struct {
	sender EmailSender
}

func NewEmailStrategy(sender EmailSender) Strategy {
	return &emailStrategy{sender: sender}
}

func (s *emailStrategy) Name() string { return "email" }

func (s *emailStrategy) Submit(ctx context.Context, posting domain.Posting, req Request) error {
	to := ResolveContact(posting)
	if to == "" {
		return ErrNoContact
	}
	if err := s.sender.SendApplication(ctx, to, posting, req); err != nil {
		return fmt.Errorf("email submit to %s: %w", to, err)
	}
	return nil
}
