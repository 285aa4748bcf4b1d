// Package page provides helpers that page objects embed.
//
// A page object holds a *Base and adds its own locators and workflows:
//
//	type LoginPage struct {
//		*page.Base
//	}
//
//	func (p *LoginPage) SignIn(ctx context.Context, user, pass string) error {
//		if err := p.Type(ctx, session.ByID("username"), user); err != nil {
//			return err
//		}
//		...
//	}
package page

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/report"
	"github.com/devicelab-dev/uiharness/pkg/session"
	"github.com/devicelab-dev/uiharness/pkg/wait"
)

const (
	clickScript  = "arguments[0].click();"
	scrollScript = "arguments[0].scrollIntoView(true);"
)

// Base bundles a session with a waiter and a recorder.
type Base struct {
	Session  *session.Session
	Wait     *wait.Waiter
	Recorder report.Recorder
}

// New returns a Base that waits up to timeout for elements.
func New(s *session.Session, r report.Recorder, timeout time.Duration) *Base {
	if r == nil {
		r = report.Nop{}
	}
	w := wait.NewWaiter(s, r)
	if timeout > 0 {
		w.Timeout = timeout
	}
	return &Base{Session: s, Wait: w, Recorder: r}
}

// Open navigates to url and waits for the document to finish loading.
func (b *Base) Open(ctx context.Context, url string) error {
	if err := b.Session.Navigate(ctx, url); err != nil {
		return err
	}
	if err := b.Wait.UntilPageReady(ctx); err != nil {
		return err
	}
	b.Recorder.Record("Navigate", "opened "+url, report.Done)
	return nil
}

// WaitForPreloader waits until the loading indicator matched by by is gone.
func (b *Base) WaitForPreloader(ctx context.Context, by session.By) error {
	return b.Wait.UntilInvisible(ctx, by)
}

// Click waits for by to be clickable and clicks it.
func (b *Base) Click(ctx context.Context, by session.By) error {
	el, err := b.Wait.UntilClickable(ctx, by)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}
	b.Recorder.Record("Click", by.String(), report.Done)
	return nil
}

// Type waits for by to be clickable, clears it and types text.
func (b *Base) Type(ctx context.Context, by session.By, text string) error {
	el, err := b.Wait.UntilClickable(ctx, by)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return err
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return err
	}
	b.Recorder.Record("Type", by.String(), report.Done)
	return nil
}

// SelectListItem picks the option of the drop-down matched by by whose
// visible text is item. Surrounding whitespace is ignored.
func (b *Base) SelectListItem(ctx context.Context, by session.By, item string) error {
	list, err := b.Wait.UntilClickable(ctx, by)
	if err != nil {
		return err
	}
	options, err := list.FindElements(ctx, session.ByTagName("option"))
	if err != nil {
		return err
	}
	want := strings.TrimSpace(item)
	for _, opt := range options {
		text, err := opt.Text(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) != want {
			continue
		}
		if err := opt.Click(ctx); err != nil {
			return err
		}
		b.Recorder.Record("Select", fmt.Sprintf("%q in %s", item, by), report.Done)
		return nil
	}
	return core.ElementNotFoundError(fmt.Sprintf("option %q in %s", item, by))
}

// MouseOver waits for by to be visible and moves the pointer onto it.
func (b *Base) MouseOver(ctx context.Context, by session.By) error {
	el, err := b.Wait.UntilVisible(ctx, by)
	if err != nil {
		return err
	}
	if err := b.Session.Hover(ctx, el); err != nil {
		return err
	}
	b.Recorder.Record("MouseOver", by.String(), report.Done)
	return nil
}

// TextOf waits for by to be visible and returns its text.
func (b *Base) TextOf(ctx context.Context, by session.By) (string, error) {
	el, err := b.Wait.UntilVisible(ctx, by)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// JavaScriptClick clicks el through the DOM, bypassing overlay checks.
func (b *Base) JavaScriptClick(ctx context.Context, el *session.Element) error {
	_, err := b.Session.RunScript(ctx, clickScript, el)
	return err
}

// ScrollToElement scrolls el into view.
func (b *Base) ScrollToElement(ctx context.Context, el *session.Element) error {
	_, err := b.Session.RunScript(ctx, scrollScript, el)
	return err
}

// ObjectExists reports whether by matches anything right now, without waiting.
func (b *Base) ObjectExists(ctx context.Context, by session.By) (bool, error) {
	els, err := b.Session.FindElements(ctx, by)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

// IsTextPresent reports whether the visible text of the page body matches
// pattern as a whole. The pattern is a Go regular expression; "." also
// matches line breaks.
func (b *Base) IsTextPresent(ctx context.Context, pattern string) (bool, error) {
	re, err := regexp.Compile(`^(?s:` + pattern + `)$`)
	if err != nil {
		return false, core.ConfigError("invalid text pattern %q: %v", pattern, err)
	}
	body, err := b.Session.FindElement(ctx, session.ByTagName("body"))
	if err != nil {
		return false, err
	}
	text, err := body.Text(ctx)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

// IsTextInSource reports whether the page markup currently contains text.
func (b *Base) IsTextInSource(ctx context.Context, text string) (bool, error) {
	src, err := b.Session.PageMarkup(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(src, text), nil
}

// AcceptAlert waits for an alert, accepts it and returns its text.
func (b *Base) AcceptAlert(ctx context.Context) (string, error) {
	text, err := b.Wait.UntilAlert(ctx)
	if err != nil {
		return "", err
	}
	if err := b.Session.AcceptAlert(ctx); err != nil {
		return "", err
	}
	b.Recorder.Record("Alert", fmt.Sprintf("accepted %q", text), report.Done)
	return text, nil
}
