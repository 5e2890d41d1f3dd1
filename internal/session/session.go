// Package session manages Service Layer login sessions.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"example.com/backstage/services/erpgateway/internal/metrics"
	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/rs/zerolog/log"
)

// Cookie names issued by the backend on login
const (
	SessionCookie = "B1SESSION"
	RouteCookie   = "ROUTEID"
)

const closeTimeout = 10 * time.Second

// Credentials is the login body
type Credentials struct {
	CompanyDB string `json:"CompanyDB"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
}

// Session is a logged in token pair. A session serves one unit of work and is
// never reused after Close.
type Session struct {
	BaseURL   string
	SessionID string
	RouteID   string
	IssuedAt  time.Time

	manager *Manager
	mu      sync.Mutex
	closed  bool
}

// Manager opens sessions against one backend
type Manager struct {
	baseURL string
	creds   Credentials
	client  *http.Client
	metrics *metrics.Metrics
}

// NewManager creates a new session manager
func NewManager(baseURL string, creds Credentials, client *http.Client, m *metrics.Metrics) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Manager{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		client:  client,
		metrics: m,
	}
}

// Client returns the http client sessions of this manager use
func (m *Manager) Client() *http.Client {
	return m.client
}

// Open logs in and returns a live session. Login is not retried.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	body, err := json.Marshal(m.creds)
	if err != nil {
		return nil, &AuthError{Message: "failed to encode credentials", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/Login", bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Message: "failed to build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.openFailed(start)
		return nil, &AuthError{Message: "login request failed", Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		m.openFailed(start)
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: models.ErrorMessage(raw)}
	}

	var sessionID, routeID string
	for _, c := range resp.Cookies() {
		switch c.Name {
		case SessionCookie:
			sessionID = c.Value
		case RouteCookie:
			routeID = c.Value
		}
	}

	switch {
	case sessionID == "" || routeID == "":
		m.openFailed(start)
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "login response lacks the session or route cookie"}
	case sessionID == routeID:
		m.openFailed(start)
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "login response carries identical session and route tokens"}
	}

	m.metrics.ObserveCall("erp.POST.Login", time.Since(start), false)
	m.metrics.IncrementCounter(metrics.SessionsOpened)
	log.Debug().Str("company_db", m.creds.CompanyDB).Msg("ERP session opened")

	return &Session{
		BaseURL:   m.baseURL,
		SessionID: sessionID,
		RouteID:   routeID,
		IssuedAt:  time.Now(),
		manager:   m,
	}, nil
}

func (m *Manager) openFailed(start time.Time) {
	m.metrics.ObserveCall("erp.POST.Login", time.Since(start), true)
	m.metrics.IncrementCounter(metrics.SessionsOpenFailed)
}

// Do opens a session, runs fn with it and closes it on every exit path.
// A failed close is logged and never replaces the result of fn.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := m.Open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			log.Warn().Err(err).Str("route_id", s.RouteID).Msg("Failed to close ERP session")
		}
	}()

	return fn(ctx, s)
}

// CookieHeader renders both tokens as a Cookie header value
func (s *Session) CookieHeader() string {
	return SessionCookie + "=" + s.SessionID + "; " + RouteCookie + "=" + s.RouteID
}

// Apply attaches the session tokens to req
func (s *Session) Apply(req *http.Request) {
	req.Header.Set("Cookie", s.CookieHeader())
}

// Live reports whether the session can still be used
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Client returns the http client the session was opened with
func (s *Session) Client() *http.Client {
	if s.manager == nil {
		return http.DefaultClient
	}
	return s.manager.client
}

// Close logs the session out. The session is unusable afterwards even when
// logout fails; closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	m := s.manager
	if m == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/Logout", nil)
	if err != nil {
		return &LogoutError{Message: "failed to build logout request", Err: err}
	}
	s.Apply(req)

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.closeFailed(start)
		return &LogoutError{Message: "logout request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		raw, _ := io.ReadAll(resp.Body)
		m.closeFailed(start)
		return &LogoutError{StatusCode: resp.StatusCode, Message: models.ErrorMessage(raw)}
	}

	m.metrics.ObserveCall("erp.POST.Logout", time.Since(start), false)
	m.metrics.IncrementCounter(metrics.SessionsClosed)
	log.Debug().Dur("held", time.Since(s.IssuedAt)).Msg("ERP session closed")
	return nil
}

func (m *Manager) closeFailed(start time.Time) {
	m.metrics.ObserveCall("erp.POST.Logout", time.Since(start), true)
	m.metrics.IncrementCounter(metrics.SessionsCloseFailed)
}
