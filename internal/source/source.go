package source

import (
	"context"
	"log"
	"time"

	"autoapply-engine/internal/domain"

	"golang.org/x/sync/errgroup"
)

// JobSource is anything that can turn a (title, location) query into job
// drafts and fetch the full text of a single listing.
type JobSource interface {
	Name() string
	Search(ctx context.Context, title, location string) ([]domain.Draft, error)
	FetchDescription(ctx context.Context, url string) (string, error)
}

// Multi fans a query out to several sources in parallel. A failing source is
// logged and skipped so siblings still contribute.
type Multi struct {
	Sources []JobSource
	Timeout time.Duration // per-source, defaults to 2 minutes
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Search(ctx context.Context, title, location string) ([]domain.Draft, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	var g errgroup.Group
	results := make(chan []domain.Draft, len(m.Sources))

	for _, s := range m.Sources {
		s := s
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			drafts, err := s.Search(sctx, title, location)
			if err != nil {
				log.Printf("[source:%s] search %q/%q: %v", s.Name(), title, location, err)
				return nil // best-effort: don't cancel siblings
			}
			results <- drafts
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	var out []domain.Draft
	for drafts := range results {
		out = append(out, drafts...)
	}
	return out, nil
}

// FetchDescription asks the source that produced the url; with no way to
// tell, first answer wins.
func (m *Multi) FetchDescription(ctx context.Context, url string) (string, error) {
	var lastErr error
	for _, s := range m.Sources {
		desc, err := s.FetchDescription(ctx, url)
		if err == nil && desc != "" {
			return desc, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return "", lastErr
}
