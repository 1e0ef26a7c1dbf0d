package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"autoapply-engine/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// LeverCompany names one tracked company on Lever's public postings API.
type LeverCompany struct {
	Slug string // api.lever.co/v0/postings/<slug>
	Name string
}

// Lever pulls postings from the Lever ATS JSON API for a configured set of
// companies and filters them against the search query. Unlike the HTML
// boards there is no server-side search; filtering happens here.
type Lever struct {
	companies []LeverCompany
	hc        *http.Client
	limiter   *HostLimiter
	baseURL   string
}

func NewLever(companies []LeverCompany, limiter *HostLimiter) *Lever {
	return &Lever{
		companies: companies,
		hc:        &http.Client{Timeout: 20 * time.Second},
		limiter:   limiter,
		baseURL:   "https://api.lever.co",
	}
}

func (s *Lever) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	Categories struct {
		Location string `json:"location"`
		Team     string `json:"team"`
	} `json:"categories"`
	Description string `json:"description"` // html
}

func (s *Lever) Search(ctx context.Context, title, location string) ([]domain.Draft, error) {
	const workers = 8

	draftsCh := make(chan []domain.Draft, len(s.companies))
	workCh := make(chan LeverCompany)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for co := range workCh {
				cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				drafts, err := s.searchCompany(cctx, co, title, location)
				cancel()

				if err != nil {
					log.Printf("[source:lever] company=%q slug=%q err=%v", co.Name, co.Slug, err)
					continue
				}
				if len(drafts) > 0 {
					draftsCh <- drafts
				}
			}
		}()
	}

	go func() {
		defer close(workCh)
		for _, co := range s.companies {
			select {
			case <-ctx.Done():
				return
			case workCh <- co:
			}
		}
	}()

	wg.Wait()
	close(draftsCh)

	var out []domain.Draft
	for batch := range draftsCh {
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Lever) searchCompany(ctx context.Context, co LeverCompany, title, location string) ([]domain.Draft, error) {
	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", s.baseURL, co.Slug)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	req.Header.Set("User-Agent", "AutoApply/1.0 (+local)")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
			return nil, err
		}
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("lever decode: %w", err)
	}

	out := make([]domain.Draft, 0, len(postings))
	for _, p := range postings {
		if p.ID == "" || p.HostedURL == "" || strings.TrimSpace(p.Text) == "" {
			continue
		}
		if !matchesQuery(p, title, location) {
			continue
		}
		out = append(out, domain.Draft{
			Title:       strings.TrimSpace(p.Text),
			Company:     co.Name,
			Description: htmlToText(p.Description),
			URL:         p.HostedURL,
			Source:      "lever",
		})
	}
	return out, nil
}

func matchesQuery(p leverPosting, title, location string) bool {
	if title != "" && !strings.Contains(strings.ToLower(p.Text), strings.ToLower(title)) {
		return false
	}
	if location != "" {
		loc := strings.ToLower(p.Categories.Location)
		if loc != "" && !strings.Contains(loc, strings.ToLower(location)) {
			return false
		}
	}
	return true
}

// FetchDescription loads a hosted posting page; drafts usually carry the
// description already, so this is only hit for thin imports.
func (s *Lever) FetchDescription(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "AutoApply/1.0 (+local)")

	if s.limiter != nil {
		if err := s.limiter.WaitURL(ctx, rawURL); err != nil {
			return "", err
		}
	}
	res, err := s.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return "", fmt.Errorf("job page status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", err
	}
	for _, sel := range []string{"div.posting", "main", "body"} {
		if txt := cleanText(doc.Find(sel).First().Text()); txt != "" {
			return txt, nil
		}
	}
	return "", nil
}

func htmlToText(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}
