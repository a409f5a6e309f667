package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"object-sync-service/internal/config"
	"object-sync-service/internal/protocol"
	"object-sync-service/internal/user"
)

const problemBase = "https://realm.io/docs/object-server/problems/"

// stubAuthServer fakes the authentication server for client tests.
type stubAuthServer struct {
	mu       sync.Mutex
	logins   int
	refreshs int
	revokes  int

	problem string // when set, /auth responds with this problem URL
}

func (s *stubAuthServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.logins++
		problem := s.problem
		s.mu.Unlock()

		if problem != "" {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"type": problem, "title": "rejected", "status": 400,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"identity":      "user-1",
			"access_token":  "access-login",
			"refresh_token": "refresh-login",
			"profile":       map[string]string{"name": "Jane", "email": "jane@example.com"},
		})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.refreshs++
		n := s.refreshs
		s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  fmt.Sprintf("access-r%d", n),
			"refresh_token": fmt.Sprintf("refresh-r%d", n),
		})
	})
	mux.HandleFunc("/auth/revoke", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.revokes++
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, stub *stubAuthServer) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewClient(config.AuthConfig{
		URL:            srv.URL,
		RequestTimeout: "2s",
		MaxRetries:     0,
	})
}

func TestAuthenticateSuccess(t *testing.T) {
	client := newTestClient(t, &stubAuthServer{})

	u, err := client.Authenticate(context.Background(), UsernamePassword("jane", "pw", true))
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.Identity())
	assert.True(t, u.Authenticated())
	access, refresh := u.Tokens()
	assert.Equal(t, "access-login", access)
	assert.Equal(t, "refresh-login", refresh)
	assert.Equal(t, "Jane", u.Profile().Name)
}

func TestAuthenticateProblemClassified(t *testing.T) {
	client := newTestClient(t, &stubAuthServer{problem: problemBase + "existing-account"})

	_, err := client.Authenticate(context.Background(), UsernamePassword("jane", "pw", true))
	require.Error(t, err)

	var serr *protocol.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, protocol.ExistingAccount, serr.Code)
	assert.Equal(t, protocol.CategoryFatal, serr.Category())
	assert.Equal(t, "rejected", serr.Message)
}

func TestAuthenticateUnknownProblemIsNotCoerced(t *testing.T) {
	client := newTestClient(t, &stubAuthServer{problem: problemBase + "telemetry-required"})

	_, err := client.Authenticate(context.Background(), Anonymous())
	require.Error(t, err)

	var unknown *protocol.UnknownAuthProblemError
	require.ErrorAs(t, err, &unknown)
	var serr *protocol.SessionError
	assert.False(t, errors.As(err, &serr), "unknown problem must not become a SessionError")
}

func TestAuthenticateTransportFailure(t *testing.T) {
	client := NewClient(config.AuthConfig{
		URL:            "http://127.0.0.1:1", // nothing listens here
		RequestTimeout: "200ms",
		MaxRetries:     1,
	})

	_, err := client.Authenticate(context.Background(), Anonymous())
	require.Error(t, err)
	var serr *protocol.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, protocol.IOError, serr.Code)
	assert.Equal(t, protocol.CategoryRecoverable, serr.Category())
}

func TestAuthenticateAsync(t *testing.T) {
	client := newTestClient(t, &stubAuthServer{})

	done := make(chan struct{})
	var got *user.User
	var gotErr error
	client.AuthenticateAsync(context.Background(), Anonymous(), func(u *user.User, err error) {
		got, gotErr = u, err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}
	require.NoError(t, gotErr)
	assert.Equal(t, "user-1", got.Identity())
}

func TestRefreshReplacesPair(t *testing.T) {
	client := newTestClient(t, &stubAuthServer{})

	u, err := client.Authenticate(context.Background(), Anonymous())
	require.NoError(t, err)

	require.NoError(t, client.Refresh(context.Background(), u))
	access, refresh := u.Tokens()
	assert.Equal(t, "access-r1", access)
	assert.Equal(t, "refresh-r1", refresh)
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	client := newTestClient(t, &stubAuthServer{})

	u, err := client.Authenticate(context.Background(), Anonymous())
	require.NoError(t, err)
	u.Invalidate()

	err = client.Refresh(context.Background(), u)
	var serr *protocol.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, protocol.InvalidRefreshToken, serr.Code)
}

func TestLogoutRevokesAndInvalidates(t *testing.T) {
	stub := &stubAuthServer{}
	client := newTestClient(t, stub)

	u, err := client.Authenticate(context.Background(), Anonymous())
	require.NoError(t, err)

	require.NoError(t, client.Logout(context.Background(), u))
	assert.False(t, u.Authenticated())
	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Equal(t, 1, stub.revokes)
}

func TestCredentialsRequestBody(t *testing.T) {
	c := UsernamePassword("jane", "pw", true)
	assert.Equal(t, ProviderUsernamePassword, c.Provider())
	assert.True(t, c.CreateUser())

	body := c.requestBody()
	assert.Equal(t, "jane", body["data"])
	assert.Equal(t, true, body["register"])
	assert.Equal(t, map[string]interface{}{"password": "pw"}, body["user_info"])

	assert.Equal(t, ProviderAnonymous, Anonymous().Provider())
	assert.Equal(t, ProviderJWT, JWT("tok").Provider())
	assert.Equal(t, ProviderAPIKey, APIKey("key").Provider())
	assert.Equal(t, ProviderFunction, CustomFunction(map[string]interface{}{"a": 1}).Provider())
}
