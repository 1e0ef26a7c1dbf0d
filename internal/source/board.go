package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoapply-engine/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// BoardConfig describes how to query one HTML job board and where the
// interesting bits live in its markup. Boards differ in little besides
// selectors, so one scraper covers them all.
type BoardConfig struct {
	Name        string // source tag on drafts: "indeed", "linkedin", ...
	BaseURL     string // e.g. https://www.indeed.com
	SearchPath  string // e.g. /jobs; query and location go in q/l params
	QueryParam  string
	LocParam    string
	CardSel     string // one listing
	TitleSel    string
	CompanySel  string
	LinkSel     string // anchor inside the card
	SnippetSel  string
	DescSel     string // on the detail page
	MaxPerQuery int
}

// Board scrapes a single HTML job board.
type Board struct {
	cfg     BoardConfig
	hc      *http.Client
	limiter *HostLimiter
}

func NewBoard(cfg BoardConfig, limiter *HostLimiter) *Board {
	if cfg.QueryParam == "" {
		cfg.QueryParam = "q"
	}
	if cfg.LocParam == "" {
		cfg.LocParam = "l"
	}
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = 25
	}
	return &Board{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (b *Board) Name() string { return b.cfg.Name }

func (b *Board) Search(ctx context.Context, title, location string) ([]domain.Draft, error) {
	q := url.Values{}
	q.Set(b.cfg.QueryParam, title)
	q.Set(b.cfg.LocParam, location)
	searchURL := strings.TrimRight(b.cfg.BaseURL, "/") + b.cfg.SearchPath + "?" + q.Encode()

	doc, err := b.fetchDoc(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []domain.Draft

	doc.Find(b.cfg.CardSel).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		draft := domain.Draft{
			Title:       cleanText(card.Find(b.cfg.TitleSel).First().Text()),
			Company:     cleanText(card.Find(b.cfg.CompanySel).First().Text()),
			Description: cleanText(card.Find(b.cfg.SnippetSel).First().Text()),
			Source:      b.cfg.Name,
		}
		if href, ok := card.Find(b.cfg.LinkSel).First().Attr("href"); ok {
			draft.URL = b.absURL(strings.TrimSpace(href))
		}
		if draft.Title == "" || draft.Company == "" || draft.URL == "" {
			return true
		}
		if seen[draft.URL] {
			return true
		}
		seen[draft.URL] = true

		out = append(out, draft)
		return len(out) < b.cfg.MaxPerQuery
	})

	return out, nil
}

func (b *Board) FetchDescription(ctx context.Context, jobURL string) (string, error) {
	doc, err := b.fetchDoc(ctx, jobURL)
	if err != nil {
		return "", err
	}

	sel := doc.Find(b.cfg.DescSel).First()
	if sel.Length() == 0 {
		// fall back to the biggest text block on the page
		sel = doc.Find("main, article, body").First()
	}
	return cleanText(sel.Text()), nil
}

func (b *Board) fetchDoc(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if b.limiter != nil {
		if err := b.limiter.WaitURL(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "AutoApply/1.0 (+local)")

	res, err := b.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", b.cfg.Name, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("%s status %d", b.cfg.Name, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s parse html: %w", b.cfg.Name, err)
	}
	return doc, nil
}

func (b *Board) absURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimRight(b.cfg.BaseURL, "/") + href
	}
	return href
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
