package discovery

import (
	"context"
	"testing"
	"time"

	"autoapply-engine/internal/domain"
)

func testEnricher() *enricher {
	return &enricher{
		weights:     map[string]float64{"indeed": 0.9, "monster": 0.6},
		hiringTerms: []string{"hiring now", "urgently hiring"},
		denyTerms:   []string{"example.com", "test.com", "noreply"},
		clock:       func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) },
	}
}

func TestExtractEmailSkipsDeniedDomains(t *testing.T) {
	e := testEnricher()

	cases := []struct {
		text string
		want string
	}{
		{"contact hr@acme.io for details", "hr@acme.io"},
		{"mail noreply@acme.io or jobs@acme.io", "jobs@acme.io"},
		{"only placeholder@example.com here", ""},
		{"nothing to see", ""},
	}
	for _, tc := range cases {
		if got := e.extractEmail(tc.text); got != tc.want {
			t.Errorf("extractEmail(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestScoreComposition(t *testing.T) {
	e := testEnricher()

	cases := []struct {
		name string
		p    domain.Posting
		want float64
	}{
		{"base weight", domain.Posting{Source: "indeed"}, 0.9},
		{"unknown source default", domain.Posting{Source: "mystery"}, 0.5},
		{"hiring now bonus", domain.Posting{Source: "monster", HiringNow: true}, 0.8},
		{"contact bonus", domain.Posting{Source: "monster", ContactEmail: "a@b.io"}, 0.7},
		{"both bonuses", domain.Posting{Source: "indeed", HiringNow: true, ContactEmail: "a@b.io"}, 1.2},
	}
	for _, tc := range cases {
		if got := e.score(tc.p); got < tc.want-1e-9 || got > tc.want+1e-9 {
			t.Errorf("%s: score = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEnrichFetchesThinDescriptions(t *testing.T) {
	e := testEnricher()
	fetched := false
	e.fetchDesc = func(context.Context, string) (string, error) {
		fetched = true
		return longDesc("the full listing text, urgently hiring, mail talent@acme.io"), nil
	}

	p := e.enrich(context.Background(), domain.Draft{
		Title: "Go Dev", Company: "Acme", URL: "u", Source: "indeed", Description: "short",
	}, "go developer", "remote")

	if !fetched {
		t.Fatal("want description fetch for thin snippet")
	}
	if !p.HiringNow {
		t.Error("hiring-now term in fetched text not detected")
	}
	if p.ContactEmail != "talent@acme.io" {
		t.Errorf("contact not extracted from fetched text: %q", p.ContactEmail)
	}
	if p.ID != domain.PostingID("Acme", "Go Dev", "indeed") {
		t.Errorf("unexpected id %q", p.ID)
	}
	if p.DiscoveredAt != "2026-08-26T12:00:00Z" {
		t.Errorf("unexpected discoveredAt %q", p.DiscoveredAt)
	}
}

func TestEnrichKeepsLongDescriptions(t *testing.T) {
	e := testEnricher()
	e.fetchDesc = func(context.Context, string) (string, error) {
		t.Fatal("must not fetch when the snippet is already long")
		return "", nil
	}

	desc := longDesc("already detailed")
	p := e.enrich(context.Background(), domain.Draft{
		Title: "Go Dev", Company: "Acme", URL: "u", Source: "indeed", Description: desc,
	}, "go", "remote")
	if p.Description != desc {
		t.Error("description replaced unexpectedly")
	}
}
