package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Posting is a discovered job opening as persisted in the postings table.
// DiscoveredAt stays a string on purpose: imported data can carry malformed
// timestamps and retention must treat those as "keep", not crash.
type Posting struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Company        string  `json:"company"`
	Description    string  `json:"description"`
	URL            string  `json:"url"`
	Source         string  `json:"source"`
	DiscoveredAt   string  `json:"discoveredAt"`
	SearchTitle    string  `json:"searchTitle"`
	SearchLocation string  `json:"searchLocation"`
	ContactEmail   string  `json:"contactEmail,omitempty"`
	QualityScore   float64 `json:"qualityScore"`
	HiringNow      bool    `json:"hiringNow"`
}

// Draft is what a job source returns before enrichment fills in the
// description, contact email, quality score and id.
type Draft struct {
	Title       string
	Company     string
	Description string
	URL         string
	Source      string
}

// PostingID derives the stable identity of a posting. Two listings with the
// same company, title and source are the same opening, even when boards hand
// out different URLs for it.
func PostingID(company, title, source string) string {
	key := fmt.Sprintf("%s-%s-%s",
		strings.ToLower(strings.TrimSpace(company)),
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(source)),
	)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
