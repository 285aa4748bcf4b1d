package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devicelab-dev/uiharness/pkg/capabilities"
	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/report"
	"github.com/devicelab-dev/uiharness/pkg/session"
	"github.com/devicelab-dev/uiharness/pkg/webdriver/webdrivertest"
)

type staticPage struct {
	markup string
	url    string
	err    error
}

func (p staticPage) PageMarkup(ctx context.Context) (string, error) { return p.markup, p.err }
func (p staticPage) CurrentURL(ctx context.Context) (string, error) { return p.url, nil }

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/about", "/logo.png":
			w.WriteHeader(http.StatusOK)
		case "/nohead":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract(t *testing.T) {
	markup := `<html><body>
		<a href="/about">About</a>
		<a href="/about#team">Team</a>
		<a href="https://other.test/x">Other</a>
		<a href="#top">Top</a>
		<a href="mailto:team@example.test">Mail</a>
		<a href="javascript:void(0)">JS</a>
		<a>No href</a>
		<a href="  ">Blank</a>
		<img src="img/a.png">
	</body></html>`

	links, err := Extract(markup, "https://site.test/docs/", "a[href]", "href")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://site.test/about", "https://other.test/x"}
	if strings.Join(links, ",") != strings.Join(want, ",") {
		t.Errorf("links = %v, want %v", links, want)
	}

	imgs, err := Extract(markup, "https://site.test/docs/", "img[src]", "src")
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 1 || imgs[0] != "https://site.test/docs/img/a.png" {
		t.Errorf("imgs = %v", imgs)
	}
}

func TestCheckLinks(t *testing.T) {
	site := newSite(t)
	markup := fmt.Sprintf(`<a href="/">Home</a><a href="/missing">Gone</a><a href="/nohead">HEAD-less</a><a href="%s/error">Err</a>`, site.URL)

	rec := report.NewMemory()
	c := New(rec)
	c.Limiter = nil

	results, err := c.CheckLinks(context.Background(), staticPage{markup: markup, url: site.URL + "/"})
	if err != nil {
		t.Fatalf("CheckLinks returned error: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(results))
	}

	byPath := map[string]Result{}
	for _, r := range results {
		byPath[strings.TrimPrefix(r.URL, site.URL)] = r
	}
	if r := byPath["/"]; r.Status != 200 || r.Broken() {
		t.Errorf("/ = %+v", r)
	}
	if r := byPath["/missing"]; r.Status != 404 || !r.Broken() {
		t.Errorf("/missing = %+v", r)
	}
	if r := byPath["/nohead"]; r.Status != 200 || r.Broken() {
		t.Errorf("/nohead should fall back to GET, got %+v", r)
	}
	if r := byPath["/error"]; r.Status != 500 || !r.Broken() {
		t.Errorf("/error = %+v", r)
	}

	if rec.Count(report.Warning) != 2 || rec.Count(report.Done) != 2 {
		t.Errorf("Expected 2 warnings and 2 done entries, got %v", rec.Entries())
	}
	for _, e := range rec.Entries() {
		if e.Severity == report.Warning && !strings.Contains(e.Message, "BROKEN") {
			t.Errorf("Warning should say BROKEN: %q", e.Message)
		}
		if e.Severity == report.Done && !strings.Contains(e.Message, "OK") {
			t.Errorf("Done entry should say OK: %q", e.Message)
		}
		if e.Label != "Broken Links" {
			t.Errorf("Unexpected label %q", e.Label)
		}
	}
}

func TestCheckImages_RequestErrorIsWarning(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	rec := report.NewMemory()
	c := New(rec)
	c.Limiter = nil

	results, err := c.CheckImages(context.Background(), staticPage{
		markup: fmt.Sprintf(`<img src="%s/logo.png">`, deadURL),
		url:    "https://site.test/",
	})
	if err != nil {
		t.Fatalf("CheckImages returned error: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil || !results[0].Broken() {
		t.Fatalf("Expected a failed request, got %+v", results)
	}
	if rec.Count(report.Warning) != 1 {
		t.Errorf("Expected one warning, got %v", rec.Entries())
	}
}

func TestCheck_PageErrorPropagates(t *testing.T) {
	boom := errors.New("session gone")
	_, err := New(nil).CheckLinks(context.Background(), staticPage{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Expected page error, got %v", err)
	}
}

func TestCheck_ContextCancelled(t *testing.T) {
	site := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).CheckLinks(ctx, staticPage{markup: `<a href="/">x</a>`, url: site.URL})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCheckLinks_ThroughSession(t *testing.T) {
	site := newSite(t)
	wd := webdrivertest.NewServer()
	defer wd.Close()

	cfg, err := config.NewBuilder("Links", "TC01").
		Platform(config.PlatformDesktop).Mode(config.ModeGrid).
		Browser(config.BrowserChromeHeadless).Endpoint(wd.URL).Build()
	if err != nil {
		t.Fatal(err)
	}
	caps, err := capabilities.Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := (&session.Factory{}).Open(context.Background(), session.TargetFor(cfg), caps)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Release(context.Background())

	wd.SetSource("Home", `<a href="/about">About</a><img src="/missing.png">`)
	if err := sess.Navigate(context.Background(), site.URL+"/"); err != nil {
		t.Fatal(err)
	}

	c := New(report.Nop{})
	links, err := c.CheckLinks(context.Background(), sess)
	if err != nil || len(links) != 1 || links[0].Broken() {
		t.Errorf("CheckLinks = %+v, %v", links, err)
	}
	imgs, err := c.CheckImages(context.Background(), sess)
	if err != nil || len(imgs) != 1 || !imgs[0].Broken() {
		t.Errorf("CheckImages = %+v, %v", imgs, err)
	}
}
