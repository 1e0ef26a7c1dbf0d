package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"autoapply-engine/internal/domain"
)

func openTestKV(t *testing.T) *KV {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	kv, err := NewKV(db)
	if err != nil {
		t.Fatalf("new kv: %v", err)
	}
	return kv
}

func TestKVPutGetDelete(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	if err := kv.Put(ctx, "things", "a", json.RawMessage(`{"x":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	body, ok, err := kv.Get(ctx, "things", "a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(body) != `{"x":1}` {
		t.Errorf("got body %s", body)
	}

	if err := kv.Delete(ctx, "things", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err = kv.Get(ctx, "things", "a")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Error("want missing after delete")
	}
}

func TestKVCollectionsAreIsolated(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	_ = kv.Put(ctx, "a", "1", json.RawMessage(`{}`))
	_ = kv.Put(ctx, "b", "1", json.RawMessage(`{}`))
	_ = kv.Put(ctx, "b", "2", json.RawMessage(`{}`))

	got, err := kv.GetAll(ctx, "b")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("want 2 docs in b, got %d", len(got))
	}
}

func TestKVPutAllAboveBatchLimit(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	docs := make(map[string]json.RawMessage)
	for i := 0; i < MaxBatch+37; i++ {
		docs[fmt.Sprintf("id-%d", i)] = json.RawMessage(`{"n":1}`)
	}
	if err := kv.PutAll(ctx, "bulk", docs); err != nil {
		t.Fatalf("put all: %v", err)
	}

	got, err := kv.GetAll(ctx, "bulk")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(got) != MaxBatch+37 {
		t.Errorf("want %d docs, got %d", MaxBatch+37, len(got))
	}
}

func TestKVReplaceAllDropsOldDocs(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()

	_ = kv.Put(ctx, "c", "old", json.RawMessage(`{}`))
	err := kv.ReplaceAll(ctx, "c", map[string]json.RawMessage{
		"new": json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("replace all: %v", err)
	}

	got, _ := kv.GetAll(ctx, "c")
	if _, ok := got["old"]; ok {
		t.Error("old doc survived replace")
	}
	if _, ok := got["new"]; !ok {
		t.Error("new doc missing after replace")
	}
}

func TestPostingsRoundTrip(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()
	postings := NewPostings(kv)

	p := domain.Posting{
		ID:           domain.PostingID("Acme", "Go Developer", "indeed"),
		Title:        "Go Developer",
		Company:      "Acme",
		Source:       "indeed",
		DiscoveredAt: time.Now().UTC().Format(time.RFC3339),
		QualityScore: 0.9,
	}
	if err := postings.PutAll(ctx, []domain.Posting{p}); err != nil {
		t.Fatalf("put all: %v", err)
	}

	ids, err := postings.ExistingIDs(ctx)
	if err != nil {
		t.Fatalf("existing ids: %v", err)
	}
	if !ids[p.ID] {
		t.Errorf("want %s in existing ids", p.ID)
	}

	all, err := postings.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all[p.ID].Company != "Acme" {
		t.Errorf("want Acme, got %q", all[p.ID].Company)
	}
}

func TestSchedulesGetMissing(t *testing.T) {
	kv := openTestKV(t)
	schedules := NewSchedules(kv)

	_, err := schedules.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestHistoryPerUserIsolation(t *testing.T) {
	kv := openTestKV(t)
	ctx := context.Background()
	history := NewHistory(kv)

	app := domain.Application{
		PostingID: "abc123",
		URL:       "https://jobs.example.org/1",
		AppliedAt: time.Now().UTC(),
		Success:   true,
	}
	if err := history.Append(ctx, "alice@example.org", app); err != nil {
		t.Fatalf("append: %v", err)
	}

	ids, urls, err := history.AppliedKeys(ctx, "alice@example.org")
	if err != nil {
		t.Fatalf("applied keys: %v", err)
	}
	if !ids["abc123"] || !urls["https://jobs.example.org/1"] {
		t.Errorf("want keys recorded, got ids=%v urls=%v", ids, urls)
	}

	other, _, err := history.AppliedKeys(ctx, "bob@example.org")
	if err != nil {
		t.Fatalf("applied keys other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("want empty history for other user, got %v", other)
	}
}
