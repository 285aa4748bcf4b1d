// Package linkcheck finds broken links and images on the current page.
package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/report"
)

// Page is the part of a session the checker needs.
type Page interface {
	PageMarkup(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
}

// Result is the outcome for one URL.
type Result struct {
	URL    string
	Status int   // HTTP status, 0 when the request failed
	Err    error // request error, if any
}

// Broken reports whether the URL failed or answered with status >= 400.
func (r Result) Broken() bool {
	return r.Err != nil || r.Status >= 400
}

// Checker requests the URLs found in page markup.
type Checker struct {
	Client   *http.Client
	Limiter  *rate.Limiter
	Recorder report.Recorder
}

// New returns a checker that issues at most ten requests per second.
func New(r report.Recorder) *Checker {
	return &Checker{
		Client:   &http.Client{Timeout: 10 * time.Second},
		Limiter:  rate.NewLimiter(rate.Limit(10), 1),
		Recorder: r,
	}
}

// CheckLinks requests every <a href> on the page.
func (c *Checker) CheckLinks(ctx context.Context, p Page) ([]Result, error) {
	return c.check(ctx, p, "a[href]", "href", "Broken Links")
}

// CheckImages requests every <img src> on the page.
func (c *Checker) CheckImages(ctx context.Context, p Page) ([]Result, error) {
	return c.check(ctx, p, "img[src]", "src", "Broken Images")
}

// check returns an error only when the page itself cannot be read. Broken
// URLs are recorded as warnings and returned in the results.
func (c *Checker) check(ctx context.Context, p Page, selector, attr, label string) ([]Result, error) {
	markup, err := p.PageMarkup(ctx)
	if err != nil {
		return nil, err
	}
	base, err := p.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	urls, err := Extract(markup, base, selector, attr)
	if err != nil {
		return nil, err
	}
	logger.Debug("%s: checking %d URLs on %s", label, len(urls), base)

	results := make([]Result, 0, len(urls))
	for _, u := range urls {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return results, err
			}
		}
		r := c.checkURL(ctx, u)
		results = append(results, r)
		c.recordResult(label, r)
	}
	return results, nil
}

func (c *Checker) recordResult(label string, r Result) {
	if c.Recorder == nil {
		return
	}
	switch {
	case r.Err != nil:
		c.Recorder.Record(label, fmt.Sprintf("%s - %v", r.URL, r.Err), report.Warning)
	case r.Status >= 400:
		c.Recorder.Record(label, fmt.Sprintf("%s - %d - BROKEN", r.URL, r.Status), report.Warning)
	default:
		c.Recorder.Record(label, fmt.Sprintf("%s - %d - OK", r.URL, r.Status), report.Done)
	}
}

func (c *Checker) checkURL(ctx context.Context, u string) Result {
	status, err := c.do(ctx, http.MethodHead, u)
	// Some servers refuse HEAD outright.
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = c.do(ctx, http.MethodGet, u)
	}
	return Result{URL: u, Status: status, Err: err}
}

func (c *Checker) do(ctx context.Context, method, u string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return 0, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Extract returns the absolute http(s) URLs of attr on elements matching
// selector, in document order and without duplicates. Relative URLs are
// resolved against base.
func Extract(markup, base, selector, attr string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse page markup: %w", err)
	}

	baseURL, _ := url.Parse(base)
	seen := make(map[string]bool)
	var out []string

	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr(attr)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" || strings.HasPrefix(raw, "#") {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			return
		}
		if baseURL != nil {
			u = baseURL.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		abs := u.String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out, nil
}
