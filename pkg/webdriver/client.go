// Package webdriver is a small W3C WebDriver client that speaks HTTP+JSON to
// chromedriver, geckodriver, a Selenium grid or an Appium server.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Client handles HTTP communication with a WebDriver endpoint.
// A Client is bound to at most one session and is not safe for concurrent use.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a new WebDriver client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for app install on session creation
		},
	}
}

// NewClientWithHTTP creates a client that uses the given HTTP client.
func NewClientWithHTTP(serverURL string, hc *http.Client) *Client {
	c := NewClient(serverURL)
	c.client = hc
	return c
}

// SessionInfo is the endpoint's answer to a new-session request.
type SessionInfo struct {
	ID           string
	Capabilities map[string]interface{}
}

// NewSession creates a session with the given alwaysMatch capabilities.
func (c *Client) NewSession(ctx context.Context, alwaysMatch map[string]interface{}) (*SessionInfo, error) {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": alwaysMatch,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return nil, err
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid session response")
	}

	info := &SessionInfo{}
	info.ID, _ = value["sessionId"].(string)
	if info.ID == "" {
		// Legacy JSON wire protocol puts the id at the top level
		info.ID, _ = resp["sessionId"].(string)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("no session ID in response")
	}
	info.Capabilities, _ = value["capabilities"].(map[string]interface{})

	c.sessionID = info.ID
	return info, nil
}

// Attach binds the client to an existing session id.
func (c *Client) Attach(sessionID string) {
	c.sessionID = sessionID
}

// SessionID returns the bound session id.
func (c *Client) SessionID() string {
	return c.sessionID
}

// ServerURL returns the endpoint URL.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// DeleteSession closes the session.
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// Status reports whether the endpoint is ready to create sessions.
func (c *Client) Status(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return false, err
	}
	value, _ := resp["value"].(map[string]interface{})
	ready, _ := value["ready"].(bool)
	return ready, nil
}

// SetImplicitWait sets the implicit wait timeout.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(ctx, c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &Error{Code: CodeNoSuchElement, Message: "empty element response"}
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", &Error{Code: CodeNoSuchElement, Message: "no element id in response"}
	}
	return id, nil
}

// FindElements finds multiple elements.
func (c *Client) FindElements(ctx context.Context, strategy, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(ctx, c.sessionPath()+"/elements", body)
	if err != nil {
		return nil, err
	}
	return elementIDs(resp), nil
}

// FindElementsFrom finds every element matching the locator inside parentID.
func (c *Client) FindElementsFrom(ctx context.Context, parentID, strategy, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(ctx, c.elementPath(parentID)+"/elements", body)
	if err != nil {
		return nil, err
	}
	return elementIDs(resp), nil
}

func elementIDs(resp map[string]interface{}) []string {
	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ClickElement clicks an element.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeysToElement types text into an element.
func (c *Client) SendKeysToElement(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(ctx context.Context, elementID string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(ctx context.Context, elementID, name string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/attribute/"+name)
	if err != nil {
		return "", err
	}
	value, _ := resp["value"].(string)
	return value, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Actions

// PerformActions sends a W3C action sequence list.
func (c *Client) PerformActions(ctx context.Context, actions []interface{}) error {
	_, err := c.post(ctx, c.sessionPath()+"/actions", map[string]interface{}{
		"actions": actions,
	})
	return err
}

// PointerMoveTo builds a mouse input source that moves to the centre of
// elementID.
func PointerMoveTo(elementID string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "pointer",
		"id":         "mouse",
		"parameters": map[string]interface{}{"pointerType": "mouse"},
		"actions":    []interface{}{
			map[string]interface{}{
				"type":     "pointerMove",
				"duration": 0,
				"origin":   ElementRef(elementID),
				"x":        0,
				"y":        0,
			},
		},
	}
}

// Scripts

// ElementRef marshals as a W3C element reference so elements can be passed
// as script arguments.
type ElementRef string

// MarshalJSON implements json.Marshaler.
func (r ElementRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{w3cElementKey: string(r)})
}

// ExecuteScript runs a synchronous script and returns its value. Element
// references in the result are returned as ElementRef.
func (c *Client) ExecuteScript(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	resp, err := c.post(ctx, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	})
	if err != nil {
		return nil, err
	}
	return decodeElementRefs(resp["value"]), nil
}

func decodeElementRefs(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if id := extractElementID(t); id != "" && len(t) == 1 {
			return ElementRef(id)
		}
		for k, item := range t {
			t[k] = decodeElementRefs(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = decodeElementRefs(item)
		}
		return t
	default:
		return v
	}
}

// Page Operations

// Navigate loads a URL in the current browsing context.
func (c *Client) Navigate(ctx context.Context, url string) error {
	_, err := c.post(ctx, c.sessionPath()+"/url", map[string]interface{}{
		"url": url,
	})
	return err
}

// CurrentURL returns the URL of the current page.
func (c *Client) CurrentURL(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/url")
	if err != nil {
		return "", err
	}
	u, _ := resp["value"].(string)
	return u, nil
}

// Title returns the current page title.
func (c *Client) Title(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/title")
	if err != nil {
		return "", err
	}
	title, _ := resp["value"].(string)
	return title, nil
}

// Source returns the page source (HTML for browsers, XML for native apps).
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Alerts

// AlertText returns the text of the open user prompt.
func (c *Client) AlertText(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/alert/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// AcceptAlert accepts the open user prompt.
func (c *Client) AcceptAlert(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/alert/accept", map[string]interface{}{})
	return err
}

// DismissAlert dismisses the open user prompt.
func (c *Client) DismissAlert(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/alert/dismiss", map[string]interface{}{})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Code: CodeUnknownError, Message: strings.TrimSpace(string(respBody)), Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &Error{Code: errType, Message: msg, Status: resp.StatusCode}
		}
	}
	if resp.StatusCode >= 400 {
		return result, &Error{Code: CodeUnknownError, Message: resp.Status, Status: resp.StatusCode}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
