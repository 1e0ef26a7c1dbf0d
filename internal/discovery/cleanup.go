package discovery

import (
	"context"
	"time"

	"autoapply-engine/internal/domain"
)

// Cleanup drops postings older than the retention window and rewrites the
// collection. A posting whose timestamp doesn't parse is kept: losing live
// data to a corrupt field is worse than carrying a stale row.
func (e *Engine) Cleanup(ctx context.Context) (kept, removed int, err error) {
	all, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, 0, err
	}

	cutoff := e.clock().Add(-e.opts.Retention)
	survivors := make(map[string]domain.Posting, len(all))

	for id, p := range all {
		t, perr := time.Parse(time.RFC3339, p.DiscoveredAt)
		if perr != nil || !t.Before(cutoff) {
			survivors[id] = p
			continue
		}
		removed++
	}

	if removed == 0 {
		return len(survivors), 0, nil
	}

	if err := e.store.ReplaceAll(ctx, survivors); err != nil {
		return 0, 0, err
	}
	return len(survivors), removed, nil
}
