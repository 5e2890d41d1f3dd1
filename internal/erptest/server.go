// Package erptest runs an in-memory Service Layer for tests.
package erptest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// BasePath is the path prefix the fake serves the Service Layer under
const BasePath = "/b1s/v1"

// Request is a call received by the fake
type Request struct {
	Method   string
	Path     string
	Entity   string
	Key      string
	Query    url.Values
	RawQuery string
	Cookie   string
	Header   http.Header
	Body     []byte
}

// Filter returns the decoded $filter of the request
func (r Request) Filter() string {
	return r.Query.Get("$filter")
}

// Responder overrides the default handling of a method and entity
type Responder func(req Request) (int, interface{})

// Server is a fake Service Layer. Collections are served from seeded values,
// writes are echoed back, and every request is recorded.
type Server struct {
	*httptest.Server

	// SessionID and RouteID are issued on login; an empty value omits the cookie
	SessionID    string
	RouteID      string
	LoginStatus  int
	LogoutStatus int
	// MaxPageSize caps collection pages regardless of $top, as a server-side limit does
	MaxPageSize int

	mu          sync.Mutex
	requests    []Request
	collections map[string][]json.RawMessage
	responders  map[string]Responder
}

// NewServer starts a fake Service Layer. Callers must Close it.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		SessionID:    "0b5d3f1e-8a8a-11ec-8000-000c29c2a1f1",
		RouteID:      ".node1",
		LoginStatus:  http.StatusOK,
		LogoutStatus: http.StatusNoContent,
		collections:  make(map[string][]json.RawMessage),
		responders:   make(map[string]Responder),
	}

	router := gin.New()
	router.Any(BasePath+"/*path", s.dispatch)
	s.Server = httptest.NewServer(router)
	return s
}

// BaseURL returns the Service Layer root of the fake
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

// Seed replaces the collection served for entity
func (s *Server) Seed(entity string, values ...interface{}) {
	raw := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		raw = append(raw, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[entity] = raw
}

// On installs a responder for method and entity, replacing the default handling
func (s *Server) On(method, entity string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method+" "+entity] = r
}

// Requests returns the recorded requests in arrival order
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the recorded requests for method and entity
func (s *Server) RequestsFor(method, entity string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Entity == entity {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) dispatch(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	entity, key := splitPath(c.Param("path"))

	req := Request{
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		Entity:   entity,
		Key:      key,
		Query:    c.Request.URL.Query(),
		RawQuery: c.Request.URL.RawQuery,
		Cookie:   c.GetHeader("Cookie"),
		Header:   c.Request.Header.Clone(),
		Body:     body,
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	responder := s.responders[req.Method+" "+entity]
	s.mu.Unlock()

	switch entity {
	case "Login":
		s.login(c)
		return
	case "Logout":
		if !s.authorized(c) {
			return
		}
		c.Status(s.LogoutStatus)
		return
	}

	if !s.authorized(c) {
		return
	}

	if responder != nil {
		status, payload := responder(req)
		writePayload(c, status, payload)
		return
	}

	switch {
	case req.Method == http.MethodGet && key == "$count":
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(strconv.Itoa(len(s.collection(entity)))))
	case req.Method == http.MethodGet && key == "":
		c.JSON(http.StatusOK, s.page(entity, req))
	case req.Method == http.MethodGet:
		c.Status(http.StatusNotFound)
	case req.Method == http.MethodPost || req.Method == http.MethodPatch:
		c.Data(http.StatusOK, "application/json", body)
	default:
		c.Status(http.StatusMethodNotAllowed)
	}
}

func (s *Server) login(c *gin.Context) {
	if s.LoginStatus != http.StatusOK {
		writeError(c, s.LoginStatus, -304, "Fail to get DB Credentials from SLD")
		return
	}
	if s.SessionID != "" {
		http.SetCookie(c.Writer, &http.Cookie{Name: "B1SESSION", Value: s.SessionID, Path: BasePath, HttpOnly: true})
	}
	if s.RouteID != "" {
		http.SetCookie(c.Writer, &http.Cookie{Name: "ROUTEID", Value: s.RouteID, Path: "/"})
	}
	c.JSON(http.StatusOK, gin.H{"SessionId": s.SessionID, "Version": "1000191", "SessionTimeout": 30})
}

func (s *Server) authorized(c *gin.Context) bool {
	sessionID, err := c.Request.Cookie("B1SESSION")
	if err != nil || sessionID.Value != s.SessionID {
		writeError(c, http.StatusUnauthorized, 301, "Invalid session or session already timeout.")
		return false
	}
	routeID, err := c.Request.Cookie("ROUTEID")
	if err != nil || routeID.Value != s.RouteID {
		writeError(c, http.StatusUnauthorized, 301, "Invalid session or session already timeout.")
		return false
	}
	return true
}

func (s *Server) collection(entity string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collections[entity]
}

// page serves one slice of a collection. A next link is announced while
// records remain past the slice.
func (s *Server) page(entity string, req Request) gin.H {
	values := s.collection(entity)
	skip, _ := strconv.Atoi(req.Query.Get("$skip"))
	top, _ := strconv.Atoi(req.Query.Get("$top"))
	if s.MaxPageSize > 0 && (top == 0 || top > s.MaxPageSize) {
		top = s.MaxPageSize
	}
	if skip >= len(values) {
		return gin.H{"value": []json.RawMessage{}}
	}
	values = values[skip:]
	if top <= 0 || top >= len(values) {
		return gin.H{"value": values}
	}

	next := url.Values{}
	for k, v := range req.Query {
		next[k] = v
	}
	next.Set("$skip", strconv.Itoa(skip+top))
	return gin.H{"value": values[:top], "odata.nextLink": entity + "?" + next.Encode()}
}

// splitPath turns "/BlanketAgreements(7)" into ("BlanketAgreements", "7") and
// "/Items/$count" into ("Items", "$count").
func splitPath(path string) (string, string) {
	path = strings.TrimPrefix(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	if i := strings.Index(path, "("); i >= 0 && strings.HasSuffix(path, ")") {
		return path[:i], strings.Trim(path[i+1:len(path)-1], "'")
	}
	return path, ""
}

func writePayload(c *gin.Context, status int, payload interface{}) {
	switch p := payload.(type) {
	case nil:
		c.Status(status)
	case string:
		c.Data(status, "text/plain; charset=utf-8", []byte(p))
	case []byte:
		c.Data(status, "application/json", p)
	default:
		c.JSON(status, p)
	}
}

func writeError(c *gin.Context, status, code int, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": gin.H{"lang": "en-us", "value": message},
		},
	})
}
