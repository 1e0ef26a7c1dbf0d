package discovery

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"autoapply-engine/internal/domain"
)

const minDescriptionLen = 100

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// enricher turns raw drafts into fully scored postings.
type enricher struct {
	weights     map[string]float64
	hiringTerms []string
	denyTerms   []string
	fetchDesc   func(ctx context.Context, url string) (string, error)
	clock       func() time.Time
}

func (e *enricher) enrich(ctx context.Context, d domain.Draft, searchTitle, searchLocation string) domain.Posting {
	p := domain.Posting{
		ID:             domain.PostingID(d.Company, d.Title, d.Source),
		Title:          d.Title,
		Company:        d.Company,
		Description:    d.Description,
		URL:            d.URL,
		Source:         strings.ToLower(d.Source),
		DiscoveredAt:   e.clock().UTC().Format(time.RFC3339),
		SearchTitle:    searchTitle,
		SearchLocation: searchLocation,
	}

	// Board search results often carry only a snippet; fetch the listing page
	// when the text is too thin to score or extract a contact from.
	if len(p.Description) < minDescriptionLen && p.URL != "" && e.fetchDesc != nil {
		if full, err := e.fetchDesc(ctx, p.URL); err != nil {
			log.Printf("[discovery] fetch description %s: %v", p.URL, err)
		} else if len(full) > len(p.Description) {
			p.Description = full
		}
	}

	p.ContactEmail = e.extractEmail(p.Description)
	p.HiringNow = e.hiringNow(p.Title, p.Description)
	p.QualityScore = e.score(p)
	return p
}

// extractEmail returns the first address in text not matching a deny term.
// Placeholder and no-reply addresses would poison the email fallback chain.
func (e *enricher) extractEmail(text string) string {
	for _, match := range emailRe.FindAllString(text, 10) {
		low := strings.ToLower(match)
		denied := false
		for _, term := range e.denyTerms {
			if strings.Contains(low, strings.ToLower(term)) {
				denied = true
				break
			}
		}
		if !denied {
			return match
		}
	}
	return ""
}

func (e *enricher) hiringNow(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, term := range e.hiringTerms {
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// score starts from the source's base weight and rewards urgency signals and
// a reachable contact.
func (e *enricher) score(p domain.Posting) float64 {
	score, ok := e.weights[p.Source]
	if !ok {
		score = 0.5
	}
	if p.HiringNow {
		score += 0.2
	}
	if p.ContactEmail != "" {
		score += 0.1
	}
	return score
}
