package session

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"example.com/backstage/services/erpgateway/internal/erptest"
	"example.com/backstage/services/erpgateway/internal/metrics"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{CompanyDB: "SBODEMO", UserName: "manager", Password: "secret"}

func newManager(srv *erptest.Server) (*Manager, *metrics.Metrics) {
	m := metrics.NewMetrics()
	return NewManager(srv.BaseURL()+"/", testCreds, srv.Client(), m), m
}

func TestOpenReturnsBothTokens(t *testing.T) {
	srv := erptest.NewServer()
	defer srv.Close()
	manager, m := newManager(srv)

	s, err := manager.Open(context.Background())
	require.NoError(t, err)

	assert.Equal(t, srv.SessionID, s.SessionID)
	assert.Equal(t, srv.RouteID, s.RouteID)
	assert.NotEqual(t, s.SessionID, s.RouteID)
	assert.Equal(t, srv.BaseURL(), s.BaseURL)
	assert.False(t, s.IssuedAt.IsZero())
	assert.True(t, s.Live())
	assert.Equal(t, int64(1), m.GetCounters()[metrics.SessionsOpened])

	logins := srv.RequestsFor(http.MethodPost, "Login")
	require.Len(t, logins, 1)
	var sent map[string]string
	require.NoError(t, json.Unmarshal(logins[0].Body, &sent))
	assert.Equal(t, map[string]string{"CompanyDB": "SBODEMO", "UserName": "manager", "Password": "secret"}, sent)
}

func TestOpenFailsWithoutEitherCookie(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		routeID   string
	}{
		{name: "missing session cookie", sessionID: "", routeID: ".node1"},
		{name: "missing route cookie", sessionID: "abc", routeID: ""},
		{name: "identical tokens", sessionID: "same", routeID: "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := erptest.NewServer()
			defer srv.Close()
			srv.SessionID = tt.sessionID
			srv.RouteID = tt.routeID
			manager, m := newManager(srv)

			s, err := manager.Open(context.Background())
			require.Nil(t, s)

			var authErr *AuthError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, http.StatusOK, authErr.StatusCode)
			assert.Equal(t, int64(1), m.GetCounters()[metrics.SessionsOpenFailed])
		})
	}
}

func TestOpenSurfacesBackendMessage(t *testing.T) {
	srv := erptest.NewServer()
	defer srv.Close()
	srv.LoginStatus = http.StatusUnauthorized
	manager, _ := newManager(srv)

	_, err := manager.Open(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "Fail to get DB Credentials from SLD", authErr.Message)
	assert.Len(t, srv.RequestsFor(http.MethodPost, "Login"), 1, "login must not be retried")
}

func TestOpenTransportFailure(t *testing.T) {
	srv := erptest.NewServer()
	manager, _ := newManager(srv)
	srv.Close()

	_, err := manager.Open(context.Background())

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Zero(t, authErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(authErr))
}

func TestCloseSendsBothCookies(t *testing.T) {
	srv := erptest.NewServer()
	defer srv.Close()
	manager, _ := newManager(srv)

	s, err := manager.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	logouts := srv.RequestsFor(http.MethodPost, "Logout")
	require.Len(t, logouts, 1)
	assert.Equal(t, "B1SESSION="+srv.SessionID+"; ROUTEID="+srv.RouteID, logouts[0].Cookie)
	assert.False(t, s.Live())
}

func TestCloseFailsOnUnexpectedStatus(t *testing.T) {
	srv := erptest.NewServer()
	defer srv.Close()
	srv.LogoutStatus = http.StatusOK
	manager, m := newManager(srv)

	s, err := manager.Open(context.Background())
	require.NoError(t, err)

	err = s.Close(context.Background())
	var logoutErr *LogoutError
	require.True(t, errors.As(err, &logoutErr))
	assert.Equal(t, http.StatusOK, logoutErr.StatusCode)
	assert.Equal(t, int64(1), m.GetCounters()[metrics.SessionsCloseFailed])
}

func TestDoClosesOnEveryPath(t *testing.T) {
	t.Run("normal return", func(t *testing.T) {
		srv := erptest.NewServer()
		defer srv.Close()
		manager, _ := newManager(srv)

		var seen *Session
		err := manager.Do(context.Background(), func(ctx context.Context, s *Session) error {
			seen = s
			assert.True(t, s.Live())
			return nil
		})
		require.NoError(t, err)
		assert.False(t, seen.Live())
		assert.Len(t, srv.RequestsFor(http.MethodPost, "Logout"), 1)
	})

	t.Run("error return", func(t *testing.T) {
		srv := erptest.NewServer()
		defer srv.Close()
		manager, _ := newManager(srv)

		boom := errors.New("boom")
		err := manager.Do(context.Background(), func(ctx context.Context, s *Session) error {
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Len(t, srv.RequestsFor(http.MethodPost, "Logout"), 1)
	})

	t.Run("panic", func(t *testing.T) {
		srv := erptest.NewServer()
		defer srv.Close()
		manager, _ := newManager(srv)

		assert.Panics(t, func() {
			_ = manager.Do(context.Background(), func(ctx context.Context, s *Session) error {
				panic("boom")
			})
		})
		assert.Len(t, srv.RequestsFor(http.MethodPost, "Logout"), 1)
	})

	t.Run("cancelled context still logs out", func(t *testing.T) {
		srv := erptest.NewServer()
		defer srv.Close()
		manager, _ := newManager(srv)

		ctx, cancel := context.WithCancel(context.Background())
		err := manager.Do(ctx, func(ctx context.Context, s *Session) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, srv.RequestsFor(http.MethodPost, "Logout"), 1)
	})
}

func TestDoKeepsResultWhenLogoutFails(t *testing.T) {
	srv := erptest.NewServer()
	defer srv.Close()
	srv.LogoutStatus = http.StatusInternalServerError
	manager, _ := newManager(srv)

	err := manager.Do(context.Background(), func(ctx context.Context, s *Session) error {
		return nil
	})
	require.NoError(t, err)
}

func TestDoDoesNotRunBodyWithoutSession(t *testing.T) {
	srv := erptest.NewServer()
	defer srv.Close()
	srv.LoginStatus = http.StatusBadGateway
	manager, _ := newManager(srv)

	called := false
	err := manager.Do(context.Background(), func(ctx context.Context, s *Session) error {
		called = true
		return nil
	})

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.False(t, called)
	assert.Empty(t, srv.RequestsFor(http.MethodPost, "Logout"))
}
