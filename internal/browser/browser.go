// Package browser submits applications through a board's own apply form. It
// is deliberately form-based: fetch the posting page, locate the application
// form, fill the applicant fields and post it back.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoapply-engine/internal/apply"
	"autoapply-engine/internal/domain"
	"autoapply-engine/internal/source"

	"github.com/PuerkitoBio/goquery"
)

type FormSubmitter struct {
	Client    *http.Client
	Limiter   *source.HostLimiter
	UserAgent string
}

func NewFormSubmitter(limiter *source.HostLimiter) *FormSubmitter {
	return &FormSubmitter{
		Client:    &http.Client{Timeout: 30 * time.Second},
		Limiter:   limiter,
		UserAgent: "AutoApply/1.0 (+local)",
	}
}

// Submit fetches the posting page, finds its application form and posts it.
// A page with no recognizable form is an error; the caller decides whether
// to fall back to email.
func (f *FormSubmitter) Submit(ctx context.Context, boardName string, posting domain.Posting, req apply.Request) error {
	doc, err := f.fetchDoc(ctx, posting.URL)
	if err != nil {
		return fmt.Errorf("%s: load posting page: %w", boardName, err)
	}

	form := findApplyForm(doc)
	if form == nil {
		return fmt.Errorf("%s: no application form on %s", boardName, posting.URL)
	}

	action, err := formAction(posting.URL, form)
	if err != nil {
		return err
	}

	fields, fileField := collectFields(form, req)
	if fileField != "" && req.CVPath != "" {
		return f.postMultipart(ctx, action, fields, fileField, req.CVPath)
	}
	return f.postForm(ctx, action, fields)
}

func (f *FormSubmitter) fetchDoc(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if f.Limiter != nil {
		if err := f.Limiter.WaitURL(ctx, rawURL); err != nil {
			return nil, err
		}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// findApplyForm prefers forms that look like application forms and falls back
// to the only form on the page.
func findApplyForm(doc *goquery.Document) *goquery.Selection {
	hinted := doc.Find(`form[id*="apply"], form[class*="apply"], form[action*="apply"], form[id*="application"]`)
	if hinted.Length() > 0 {
		return hinted.First()
	}
	forms := doc.Find("form")
	if forms.Length() == 1 {
		return forms.First()
	}
	return nil
}

func formAction(pageURL string, form *goquery.Selection) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	action, _ := form.Attr("action")
	if strings.TrimSpace(action) == "" {
		return pageURL, nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("form action %q: %w", action, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// collectFields fills the applicant's details into the form's named inputs.
// Hidden inputs keep their server-provided values; unknown text inputs are
// left empty rather than guessed at.
func collectFields(form *goquery.Selection, req apply.Request) (fields url.Values, fileField string) {
	fields = url.Values{}

	form.Find("input, textarea").Each(func(_ int, el *goquery.Selection) {
		name, ok := el.Attr("name")
		if !ok || name == "" {
			return
		}
		typ, _ := el.Attr("type")
		key := strings.ToLower(name)

		switch {
		case typ == "file":
			if fileField == "" {
				fileField = name
			}
		case typ == "hidden":
			val, _ := el.Attr("value")
			fields.Set(name, val)
		case strings.Contains(key, "email"):
			fields.Set(name, req.UserEmail)
		case strings.Contains(key, "name"):
			fields.Set(name, req.UserName)
		case strings.Contains(key, "cover") || strings.Contains(key, "letter") || strings.Contains(key, "message"):
			fields.Set(name, req.CoverLetter)
		default:
			val, _ := el.Attr("value")
			fields.Set(name, val)
		}
	})
	return fields, fileField
}

func (f *FormSubmitter) postForm(ctx context.Context, action string, fields url.Values) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(fields.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("User-Agent", f.UserAgent)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(httpReq)
}

func (f *FormSubmitter) postMultipart(ctx context.Context, action string, fields url.Values, fileField, cvPath string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, vals := range fields {
		for _, v := range vals {
			if err := mw.WriteField(name, v); err != nil {
				return err
			}
		}
	}

	cv, err := os.Open(cvPath)
	if err != nil {
		return fmt.Errorf("open cv: %w", err)
	}
	defer cv.Close()

	part, err := mw.CreateFormFile(fileField, filepath.Base(cvPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, cv); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, action, &buf)
	if err != nil {
		return err
	}
	httpReq.Header.Set("User-Agent", f.UserAgent)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(httpReq)
}

func (f *FormSubmitter) do(httpReq *http.Request) error {
	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("submit %s: status %s", httpReq.URL, resp.Status)
	}
	return nil
}
