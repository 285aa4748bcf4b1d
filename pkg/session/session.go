package session

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/uiharness/pkg/config"
	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/logger"
	"github.com/devicelab-dev/uiharness/pkg/webdriver"
)

// Session is a live automation session. It is owned by the code that opened
// it and is not safe for concurrent use.
type Session struct {
	client       *webdriver.Client
	platform     config.Platform
	capabilities map[string]interface{}
	stop         func() error
	released     bool
}

// ID returns the remote session id.
func (s *Session) ID() string { return s.client.SessionID() }

// Platform returns the platform the session was opened for.
func (s *Session) Platform() config.Platform { return s.platform }

// Endpoint returns the WebDriver endpoint serving the session.
func (s *Session) Endpoint() string { return s.client.ServerURL() }

// Capabilities returns the capabilities the endpoint reported on creation.
func (s *Session) Capabilities() map[string]interface{} { return s.capabilities }

// Release deletes the remote session and stops any driver process launched
// for it. Calling Release more than once is a no-op.
func (s *Session) Release(ctx context.Context) error {
	if s.released {
		return nil
	}
	s.released = true

	id := s.ID()
	err := s.client.DeleteSession(ctx)
	if webdriver.IsSessionGone(err) {
		err = nil
	}
	if s.stop != nil {
		if stopErr := s.stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}

	logger.WithFields(map[string]interface{}{
		"session":  id,
		"platform": s.platform.String(),
	}).Info("session released")
	return err
}

// FindElement returns the first element matching by. It does not wait: when
// nothing matches it fails at once with core.ErrElementNotFound.
func (s *Session) FindElement(ctx context.Context, by By) (*Element, error) {
	using, value := s.wireLocator(by)
	id, err := s.client.FindElement(ctx, using, value)
	if err != nil {
		if webdriver.HasCode(err, webdriver.CodeNoSuchElement) {
			return nil, core.ElementNotFoundError(by.String()).WithCause(err)
		}
		return nil, s.wrap(err)
	}
	return &Element{sess: s, id: id, by: by}, nil
}

// FindElements returns every element matching by, possibly none.
func (s *Session) FindElements(ctx context.Context, by By) ([]*Element, error) {
	using, value := s.wireLocator(by)
	ids, err := s.client.FindElements(ctx, using, value)
	if err != nil {
		return nil, s.wrap(err)
	}
	out := make([]*Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Element{sess: s, id: id, by: by})
	}
	return out, nil
}

// RunScript executes src synchronously in the page. Elements may be passed as
// arguments and element results come back as *Element.
func (s *Session) RunScript(ctx context.Context, src string, args ...interface{}) (interface{}, error) {
	wireArgs := make([]interface{}, len(args))
	for i, a := range args {
		if el, ok := a.(*Element); ok {
			wireArgs[i] = webdriver.ElementRef(el.id)
			continue
		}
		wireArgs[i] = a
	}

	v, err := s.client.ExecuteScript(ctx, src, wireArgs)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.elementsFromScript(v), nil
}

func (s *Session) elementsFromScript(v interface{}) interface{} {
	switch t := v.(type) {
	case webdriver.ElementRef:
		return &Element{sess: s, id: string(t), by: By{Using: "script", Value: string(t)}}
	case []interface{}:
		for i := range t {
			t[i] = s.elementsFromScript(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = s.elementsFromScript(t[k])
		}
		return t
	}
	return v
}

// Hover moves the pointer onto the centre of el.
func (s *Session) Hover(ctx context.Context, el *Element) error {
	return s.wrap(s.client.PerformActions(ctx, []interface{}{webdriver.PointerMoveTo(el.id)}))
}

// PageMarkup returns the page source: HTML for browsers, XML for native apps.
func (s *Session) PageMarkup(ctx context.Context) (string, error) {
	src, err := s.client.Source(ctx)
	return src, s.wrap(err)
}

// Navigate loads url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.wrap(s.client.Navigate(ctx, url))
}

// CurrentURL returns the current page URL.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	u, err := s.client.CurrentURL(ctx)
	return u, s.wrap(err)
}

// Title returns the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	t, err := s.client.Title(ctx)
	return t, s.wrap(err)
}

// AlertText returns the text of the open alert.
func (s *Session) AlertText(ctx context.Context) (string, error) {
	t, err := s.client.AlertText(ctx)
	return t, s.wrap(err)
}

// AcceptAlert accepts the open alert.
func (s *Session) AcceptAlert(ctx context.Context) error {
	return s.wrap(s.client.AcceptAlert(ctx))
}

// DismissAlert dismisses the open alert.
func (s *Session) DismissAlert(ctx context.Context) error {
	return s.wrap(s.client.DismissAlert(ctx))
}

// wrap maps a vanished session to core.ErrSessionTerminated. Other errors keep
// their W3C code so callers can classify them.
func (s *Session) wrap(err error) error {
	if err == nil {
		return nil
	}
	if webdriver.IsSessionGone(err) {
		return core.ErrSessionTerminated.
			WithMessage(fmt.Sprintf("session %s is no longer available", s.ID())).
			WithCause(err)
	}
	return err
}

// wireLocator rewrites id and name lookups to CSS for browser contexts, where
// W3C drivers do not accept them.
func (s *Session) wireLocator(by By) (string, string) {
	if s.platform == config.PlatformMobileNative {
		return by.Using, by.Value
	}
	switch by.Using {
	case strategyID:
		return strategyCSS, fmt.Sprintf("[id=%q]", by.Value)
	case strategyName:
		return strategyCSS, fmt.Sprintf("[name=%q]", by.Value)
	}
	return by.Using, by.Value
}

// Element is a handle to a UI element found through a Session.
type Element struct {
	sess *Session
	id   string
	by   By
}

// ID returns the remote element id.
func (e *Element) ID() string { return e.id }

// Locator returns the locator the element was found with.
func (e *Element) Locator() By { return e.by }

// FindElements returns every descendant of e matching by, possibly none.
func (e *Element) FindElements(ctx context.Context, by By) ([]*Element, error) {
	using, value := e.sess.wireLocator(by)
	ids, err := e.sess.client.FindElementsFrom(ctx, e.id, using, value)
	if err != nil {
		return nil, e.sess.wrap(err)
	}
	out := make([]*Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Element{sess: e.sess, id: id, by: by})
	}
	return out, nil
}

// Click clicks the element.
func (e *Element) Click(ctx context.Context) error {
	return e.sess.wrap(e.sess.client.ClickElement(ctx, e.id))
}

// Clear clears an editable element.
func (e *Element) Clear(ctx context.Context) error {
	return e.sess.wrap(e.sess.client.ClearElement(ctx, e.id))
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	return e.sess.wrap(e.sess.client.SendKeysToElement(ctx, e.id, text))
}

// Text returns the element's visible text.
func (e *Element) Text(ctx context.Context) (string, error) {
	t, err := e.sess.client.GetElementText(ctx, e.id)
	return t, e.sess.wrap(err)
}

// Attribute returns the named attribute, or "" when it is not set.
func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.sess.client.GetElementAttribute(ctx, e.id, name)
	return v, e.sess.wrap(err)
}

// IsDisplayed reports whether the element is visible.
func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	v, err := e.sess.client.IsElementDisplayed(ctx, e.id)
	return v, e.sess.wrap(err)
}

// IsEnabled reports whether the element is enabled.
func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	v, err := e.sess.client.IsElementEnabled(ctx, e.id)
	return v, e.sess.wrap(err)
}

func (e *Element) String() string {
	return e.by.String()
}
