// Package webdrivertest provides an in-memory W3C WebDriver endpoint for tests.
// It stands in for chromedriver, a Selenium grid or an Appium server.
package webdrivertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Element is a fake UI element.
type Element struct {
	ID         string
	Displayed  bool
	Enabled    bool
	Text       string
	Attributes map[string]string
	// Selected is set when the element is clicked.
	Selected   bool

	stale    bool
	children map[string][]*Element
}

// Request records one call made to the server.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// Server is a fake WebDriver endpoint backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	nextSession int
	nextElement int
	sessions    map[string]map[string]interface{}
	deleted     []string
	elements    map[string][]*Element // "using|value" -> matches
	byID        map[string]*Element
	readyState  string
	source      string
	title       string
	url         string
	alert       *string
	scripts     map[string]interface{}
	createErr   *errorReply
	terminated  bool
	hovered     string
	requests    []Request
}

type errorReply struct {
	status  int
	code    string
	message string
}

// NewServer starts a fake endpoint. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		sessions:   make(map[string]map[string]interface{}),
		elements:   make(map[string][]*Element),
		byID:       make(map[string]*Element),
		readyState: "complete",
		scripts:    make(map[string]interface{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// AddElement registers an element that matches the locator (using, value).
// Displayed and Enabled default to true when el is nil.
func (s *Server) AddElement(using, value string, el *Element) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el == nil {
		el = &Element{Displayed: true, Enabled: true}
	}
	if el.ID == "" {
		s.nextElement++
		el.ID = fmt.Sprintf("elem-%d", s.nextElement)
	}
	key := using + "|" + value
	s.elements[key] = append(s.elements[key], el)
	s.byID[el.ID] = el
	return el
}

// AddChild registers el as a descendant of parent matching (using, value).
// It is only found by element-scoped lookups on parent.
func (s *Server) AddChild(parent *Element, using, value string, el *Element) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el == nil {
		el = &Element{Displayed: true, Enabled: true}
	}
	if el.ID == "" {
		s.nextElement++
		el.ID = fmt.Sprintf("elem-%d", s.nextElement)
	}
	if parent.children == nil {
		parent.children = make(map[string][]*Element)
	}
	key := using + "|" + value
	parent.children[key] = append(parent.children[key], el)
	s.byID[el.ID] = el
	return el
}

// RemoveElements detaches every element matching the locator; held references
// become stale.
func (s *Server) RemoveElements(using, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := using + "|" + value
	for _, el := range s.elements[key] {
		el.stale = true
	}
	delete(s.elements, key)
}

// Update mutates an element under the server lock.
func (s *Server) Update(el *Element, fn func(*Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(el)
}

// SetReadyState sets the value returned for document.readyState.
func (s *Server) SetReadyState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyState = state
}

// SetSource sets the page source and title.
func (s *Server) SetSource(title, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.source = source
}

// SetAlert opens a user prompt with the given text.
func (s *Server) SetAlert(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = &text
}

// SetScriptResult makes execute/sync return value for script.
func (s *Server) SetScriptResult(script string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[script] = value
}

// FailSessionCreation makes POST /session fail with a W3C error.
func (s *Server) FailSessionCreation(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = &errorReply{status: status, code: code, message: message}
}

// AllowSessionCreation undoes FailSessionCreation.
func (s *Server) AllowSessionCreation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = nil
}

// TerminateSessions makes every session call fail with "invalid session id".
func (s *Server) TerminateSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = true
}

// Capabilities returns the alwaysMatch capabilities of the last created session.
func (s *Server) Capabilities() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[fmt.Sprintf("session-%d", s.nextSession)]
}

// SessionCount returns the number of sessions created.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSession
}

// Deleted returns the ids of deleted sessions.
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Hovered returns the id of the element the pointer last moved to.
func (s *Server) Hovered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hovered
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests returns how many requests had the given method and path suffix.
func (s *Server) CountRequests(method, suffix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeValue(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": v})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": message},
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// Tolerate a grid-style prefix such as /wd/hub
	for len(parts) > 0 && parts[0] != "session" && parts[0] != "status" {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "unknown command", r.URL.Path)
		return
	}

	if parts[0] == "status" {
		writeValue(w, map[string]interface{}{"ready": true, "message": "fake endpoint ready"})
		return
	}

	if len(parts) == 1 && r.Method == http.MethodPost {
		s.createSession(w, body)
		return
	}
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "unknown command", r.URL.Path)
		return
	}

	id := parts[1]
	if _, ok := s.sessions[id]; !ok || s.terminated {
		writeError(w, http.StatusNotFound, "invalid session id", "session "+id+" does not exist")
		return
	}

	if len(parts) == 2 && r.Method == http.MethodDelete {
		delete(s.sessions, id)
		s.deleted = append(s.deleted, id)
		writeValue(w, nil)
		return
	}

	s.sessionCommand(w, r.Method, parts[2:], body)
}

func (s *Server) createSession(w http.ResponseWriter, body map[string]interface{}) {
	if s.createErr != nil {
		writeError(w, s.createErr.status, s.createErr.code, s.createErr.message)
		return
	}

	caps := map[string]interface{}{}
	if c, ok := body["capabilities"].(map[string]interface{}); ok {
		if am, ok := c["alwaysMatch"].(map[string]interface{}); ok {
			caps = am
		}
	}

	s.nextSession++
	id := fmt.Sprintf("session-%d", s.nextSession)
	s.sessions[id] = caps
	writeValue(w, map[string]interface{}{"sessionId": id, "capabilities": caps})
}

func (s *Server) sessionCommand(w http.ResponseWriter, method string, cmd []string, body map[string]interface{}) {
	route := method + " " + strings.Join(cmd, "/")

	switch {
	case route == "POST timeouts":
		writeValue(w, nil)
	case route == "POST element":
		matches := s.lookup(body)
		if len(matches) == 0 {
			writeError(w, http.StatusNotFound, "no such element", fmt.Sprintf("no element matches %v=%v", body["using"], body["value"]))
			return
		}
		writeValue(w, map[string]interface{}{w3cElementKey: matches[0].ID})
	case route == "POST elements":
		refs := []interface{}{}
		for _, el := range s.lookup(body) {
			refs = append(refs, map[string]interface{}{w3cElementKey: el.ID})
		}
		writeValue(w, refs)
	case len(cmd) >= 3 && cmd[0] == "element":
		s.elementCommand(w, method, cmd[1], cmd[2:], body)
	case route == "POST actions":
		s.performActions(w, body)
	case route == "POST execute/sync":
		script, _ := body["script"].(string)
		if strings.Contains(script, "document.readyState") {
			writeValue(w, s.readyState)
			return
		}
		writeValue(w, s.scripts[script])
	case route == "POST url":
		s.url, _ = body["url"].(string)
		writeValue(w, nil)
	case route == "GET url":
		writeValue(w, s.url)
	case route == "GET title":
		writeValue(w, s.title)
	case route == "GET source":
		writeValue(w, s.source)
	case route == "GET alert/text":
		if s.alert == nil {
			writeError(w, http.StatusNotFound, "no such alert", "no user prompt is open")
			return
		}
		writeValue(w, *s.alert)
	case route == "POST alert/accept", route == "POST alert/dismiss":
		if s.alert == nil {
			writeError(w, http.StatusNotFound, "no such alert", "no user prompt is open")
			return
		}
		s.alert = nil
		writeValue(w, nil)
	default:
		writeError(w, http.StatusNotFound, "unknown command", route)
	}
}

// performActions handles pointer moves with an element origin. Other input
// sources are accepted and ignored.
func (s *Server) performActions(w http.ResponseWriter, body map[string]interface{}) {
	sources, _ := body["actions"].([]interface{})
	for _, src := range sources {
		source, _ := src.(map[string]interface{})
		steps, _ := source["actions"].([]interface{})
		for _, st := range steps {
			step, _ := st.(map[string]interface{})
			if step["type"] != "pointerMove" {
				continue
			}
			origin, _ := step["origin"].(map[string]interface{})
			id, _ := origin[w3cElementKey].(string)
			if id == "" {
				continue
			}
			if el, ok := s.byID[id]; !ok || el.stale {
				writeError(w, http.StatusNotFound, "stale element reference", "element "+id+" is no longer attached to the DOM")
				return
			}
			s.hovered = id
		}
	}
	writeValue(w, nil)
}

func (s *Server) lookup(body map[string]interface{}) []*Element {
	using, _ := body["using"].(string)
	value, _ := body["value"].(string)
	return live(s.elements[using+"|"+value])
}

func live(els []*Element) []*Element {
	var out []*Element
	for _, el := range els {
		if !el.stale {
			out = append(out, el)
		}
	}
	return out
}

func (s *Server) elementCommand(w http.ResponseWriter, method, id string, cmd []string, body map[string]interface{}) {
	el, ok := s.byID[id]
	if !ok {
		writeError(w, http.StatusNotFound, "no such element", "unknown element "+id)
		return
	}
	if el.stale {
		writeError(w, http.StatusNotFound, "stale element reference", "element "+id+" is no longer attached to the DOM")
		return
	}

	switch method + " " + cmd[0] {
	case "GET displayed":
		writeValue(w, el.Displayed)
	case "GET enabled":
		writeValue(w, el.Enabled)
	case "GET text":
		writeValue(w, el.Text)
	case "GET selected":
		writeValue(w, el.Selected)
	case "POST elements":
		using, _ := body["using"].(string)
		value, _ := body["value"].(string)
		refs := []interface{}{}
		for _, child := range live(el.children[using+"|"+value]) {
			refs = append(refs, map[string]interface{}{w3cElementKey: child.ID})
		}
		writeValue(w, refs)
	case "GET attribute":
		if len(cmd) < 2 {
			writeError(w, http.StatusBadRequest, "invalid argument", "attribute name required")
			return
		}
		if v, ok := el.Attributes[cmd[1]]; ok {
			writeValue(w, v)
			return
		}
		writeValue(w, nil)
	case "POST click":
		if !el.Displayed || !el.Enabled {
			writeError(w, http.StatusBadRequest, "element not interactable", "element "+id+" cannot be clicked")
			return
		}
		el.Selected = true
		writeValue(w, nil)
	case "POST clear":
		el.Text = ""
		writeValue(w, nil)
	case "POST value":
		text, _ := body["text"].(string)
		el.Text += text
		writeValue(w, nil)
	default:
		writeError(w, http.StatusNotFound, "unknown command", method+" element/"+strings.Join(cmd, "/"))
	}
}
