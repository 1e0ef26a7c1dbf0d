package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"autoapply-engine/internal/domain"
)

// History keeps per-user application records in their own collections so one
// user's dedup scan never loads another user's rows.
type History struct {
	kv *KV
}

func NewHistory(kv *KV) *History {
	return &History{kv: kv}
}

var historyKeyClean = regexp.MustCompile(`[^a-z0-9_]+`)

// historyCollection derives a collection name from a user identity; email
// punctuation is spelled out so the name stays readable in the db.
func historyCollection(userID string) string {
	s := strings.ToLower(strings.TrimSpace(userID))
	s = strings.ReplaceAll(s, "@", "_at_")
	s = strings.ReplaceAll(s, ".", "_dot_")
	s = historyKeyClean.ReplaceAllString(s, "_")
	return "history:" + s
}

func (h *History) List(ctx context.Context, userID string) ([]domain.Application, error) {
	raw, err := h.kv.GetAll(ctx, historyCollection(userID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Application, 0, len(raw))
	for id, body := range raw {
		var app domain.Application
		if err := json.Unmarshal(body, &app); err != nil {
			return nil, fmt.Errorf("application %s: %w", id, err)
		}
		out = append(out, app)
	}
	return out, nil
}

// AppliedKeys returns the posting ids and urls the user already applied to.
func (h *History) AppliedKeys(ctx context.Context, userID string) (ids map[string]bool, urls map[string]bool, err error) {
	apps, err := h.List(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	ids = make(map[string]bool, len(apps))
	urls = make(map[string]bool, len(apps))
	for _, app := range apps {
		if app.PostingID != "" {
			ids[app.PostingID] = true
		}
		if app.URL != "" {
			urls[app.URL] = true
		}
	}
	return ids, urls, nil
}

func (h *History) Append(ctx context.Context, userID string, app domain.Application) error {
	b, err := json.Marshal(app)
	if err != nil {
		return err
	}
	return h.kv.Put(ctx, historyCollection(userID), app.PostingID, b)
}

// Update rewrites an existing record, keyed by its posting id.
func (h *History) Update(ctx context.Context, userID string, app domain.Application) error {
	return h.Append(ctx, userID, app)
}
