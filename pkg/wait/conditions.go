package wait

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devicelab-dev/uiharness/pkg/core"
	"github.com/devicelab-dev/uiharness/pkg/session"
	"github.com/devicelab-dev/uiharness/pkg/webdriver"
)

// ElementPresent holds once an element matching by is attached.
func ElementPresent(by session.By) Condition {
	return Condition{
		Description: "presence of " + by.String(),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			if _, err := s.FindElement(ctx, by); err != nil {
				return false, err
			}
			return true, nil
		},
	}
}

// ElementVisible holds once an element matching by is displayed.
func ElementVisible(by session.By) Condition {
	return Condition{
		Description: "visibility of " + by.String(),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			el, err := s.FindElement(ctx, by)
			if err != nil {
				return false, err
			}
			return el.IsDisplayed(ctx)
		},
	}
}

// ElementInvisible holds when no element matches by, or the match is hidden
// or went stale while being checked.
func ElementInvisible(by session.By) Condition {
	return Condition{
		Description: "invisibility of " + by.String(),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			el, err := s.FindElement(ctx, by)
			if err != nil {
				if gone(err) {
					return true, nil
				}
				return false, err
			}
			displayed, err := el.IsDisplayed(ctx)
			if err != nil {
				if gone(err) {
					return true, nil
				}
				return false, err
			}
			return !displayed, nil
		},
	}
}

// ElementClickable holds once an element matching by is displayed and enabled.
func ElementClickable(by session.By) Condition {
	return Condition{
		Description: "element to be clickable: " + by.String(),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			_, ok, err := clickable(ctx, s, by)
			return ok, err
		},
	}
}

// ElementNotClickable holds when no element matches by, or the match is
// hidden, disabled or stale.
func ElementNotClickable(by session.By) Condition {
	return Condition{
		Description: "element to not be clickable: " + by.String(),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			_, ok, err := clickable(ctx, s, by)
			if err != nil {
				if gone(err) {
					return true, nil
				}
				return false, err
			}
			return !ok, nil
		},
	}
}

// StalenessOf holds once el is no longer attached to the page.
func StalenessOf(el *session.Element) Condition {
	if el == nil {
		return Condition{
			Description: "staleness of <nil element>",
			Check: func(context.Context, *session.Session) (bool, error) {
				return false, core.ConfigError("staleness requires an element")
			},
		}
	}
	return Condition{
		Description: "staleness of " + el.String(),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			_, err := el.IsEnabled(ctx)
			if err == nil {
				return false, nil
			}
			if gone(err) {
				return true, nil
			}
			return false, err
		},
	}
}

const readyStateScript = "return document.readyState"

// PageReadyStateComplete holds once document.readyState is "complete".
func PageReadyStateComplete() Condition {
	return Condition{
		Description: `document.readyState == "complete"`,
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			v, err := s.RunScript(ctx, readyStateScript)
			if err != nil {
				return false, err
			}
			state, _ := v.(string)
			return state == "complete", nil
		},
	}
}

// AlertPresent holds once a user prompt is open.
func AlertPresent() Condition {
	return Condition{
		Description: "alert to be present",
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			if _, err := s.AlertText(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}
}

// TextInSource holds once the page markup contains text.
func TextInSource(text string) Condition {
	return Condition{
		Description: fmt.Sprintf("text %q in page source", text),
		Check: func(ctx context.Context, s *session.Session) (bool, error) {
			src, err := s.PageMarkup(ctx)
			if err != nil {
				return false, err
			}
			return strings.Contains(src, text), nil
		},
	}
}

func clickable(ctx context.Context, s *session.Session, by session.By) (*session.Element, bool, error) {
	el, err := s.FindElement(ctx, by)
	if err != nil {
		return nil, false, err
	}
	displayed, err := el.IsDisplayed(ctx)
	if err != nil || !displayed {
		return nil, false, err
	}
	enabled, err := el.IsEnabled(ctx)
	if err != nil || !enabled {
		return nil, false, err
	}
	return el, true, nil
}

// gone reports whether err means the element is not on the page.
func gone(err error) bool {
	return errors.Is(err, core.ErrElementNotFound) ||
		webdriver.HasCode(err, webdriver.CodeNoSuchElement) ||
		webdriver.HasCode(err, webdriver.CodeStaleElementReference)
}
