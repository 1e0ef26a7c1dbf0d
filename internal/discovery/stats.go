package discovery

import (
	"context"
	"time"
)

type Stats struct {
	Total         int            `json:"total"`
	Last24h       int            `json:"last24h"`
	BySource      map[string]int `json:"bySource"`
	BySearchTitle map[string]int `json:"bySearchTitle"`
	Running       bool           `json:"running"`
}

func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	all, err := e.store.GetAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Total:         len(all),
		BySource:      make(map[string]int),
		BySearchTitle: make(map[string]int),
		Running:       e.Running(),
	}

	dayAgo := e.clock().Add(-24 * time.Hour)
	for _, p := range all {
		st.BySource[p.Source]++
		if p.SearchTitle != "" {
			st.BySearchTitle[p.SearchTitle]++
		}
		if t, err := time.Parse(time.RFC3339, p.DiscoveredAt); err == nil && t.After(dayAgo) {
			st.Last24h++
		}
	}
	return st, nil
}
