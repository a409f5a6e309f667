// Package auth exchanges credentials with the authentication server and
// manages the resulting token pairs.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"object-sync-service/internal/config"
	"object-sync-service/internal/logger"
	"object-sync-service/internal/protocol"
	"object-sync-service/internal/user"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

func NewClient(cfg config.AuthConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		maxRetries: cfg.MaxRetries,
	}
}

type authResponse struct {
	Identity     string       `json:"identity"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Profile      user.Profile `json:"profile"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// problemResponse is the problem+json payload returned on auth failures.
type problemResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
}

// Authenticate exchanges credentials for an authenticated user. Failures the
// server reports through a problem payload come back as *protocol.SessionError
// classified through the taxonomy; an unrecognized problem URL surfaces as
// *protocol.UnknownAuthProblemError. Transient transport failures are retried
// with exponential backoff before giving up.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*user.User, error) {
	var resp authResponse
	if err := c.post(ctx, "/auth", creds.requestBody(), &resp); err != nil {
		return nil, err
	}
	if resp.Identity == "" || resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, protocol.NewSessionError(protocol.UnexpectedJSONFormat,
			"auth response is missing identity or tokens")
	}

	u := user.New(resp.Identity, resp.Profile)
	u.SetTokens(resp.AccessToken, resp.RefreshToken)
	logger.Log.Info("Authenticated user",
		zap.String("identity", u.Identity()),
		zap.String("provider", string(creds.Provider())),
	)
	return u, nil
}

// AuthenticateAsync runs Authenticate on a worker goroutine and invokes the
// callback with the result. The callback runs on that worker goroutine.
func (c *Client) AuthenticateAsync(ctx context.Context, creds Credentials, callback func(*user.User, error)) {
	go func() {
		callback(c.Authenticate(ctx, creds))
	}()
}

// Refresh exchanges the user's refresh token for a new access token. The
// exchange is serialized per user and the (access, refresh) pair is swapped
// atomically, so concurrent Refresh calls for one user queue behind each
// other and never produce a mixed pair.
func (c *Client) Refresh(ctx context.Context, u *user.User) error {
	return u.ExchangeTokens(func(refreshToken string) (string, string, error) {
		if refreshToken == "" {
			return "", "", protocol.NewSessionError(protocol.InvalidRefreshToken,
				"user has no refresh token; log in again")
		}
		var resp refreshResponse
		body := map[string]interface{}{"refresh_token": refreshToken}
		if err := c.post(ctx, "/auth/refresh", body, &resp); err != nil {
			return "", "", err
		}
		if resp.AccessToken == "" || resp.RefreshToken == "" {
			return "", "", protocol.NewSessionError(protocol.UnexpectedJSONFormat,
				"refresh response is missing tokens")
		}
		logger.Log.Debug("Refreshed access token", zap.String("identity", u.Identity()))
		return resp.AccessToken, resp.RefreshToken, nil
	})
}

// Logout revokes the user's refresh token and invalidates the local token
// pair. Revocation is best-effort; the user is invalidated regardless.
func (c *Client) Logout(ctx context.Context, u *user.User) error {
	_, refreshToken := u.Tokens()
	u.Invalidate()
	if refreshToken == "" {
		return nil
	}
	body := map[string]interface{}{"refresh_token": refreshToken}
	if err := c.post(ctx, "/auth/revoke", body, nil); err != nil {
		logger.Log.Warn("Token revocation failed",
			zap.String("identity", u.Identity()), zap.Error(err))
		return err
	}
	return nil
}

// post sends a JSON request and decodes the response, retrying transport
// failures. Problem responses are permanent and never retried.
func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return protocol.WrapSessionError(protocol.JSONParseError, err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(protocol.WrapSessionError(protocol.IOError, err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport failure, worth retrying.
			return protocol.WrapSessionError(protocol.IOError, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(protocol.WrapSessionError(protocol.JSONParseError, err))
			}
			return nil
		}
		return backoff.Permanent(c.classifyProblem(resp))
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(operation, bo)
}

// classifyProblem maps a non-2xx auth server response to an error. A problem
// URL outside the documented set is a protocol defect and is reported as
// such, never coerced into a known code.
func (c *Client) classifyProblem(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.WrapSessionError(protocol.IOError, err)
	}

	var problem problemResponse
	if err := json.Unmarshal(data, &problem); err != nil || problem.Type == "" {
		return protocol.NewSessionError(protocol.UnexpectedJSONFormat,
			fmt.Sprintf("auth server returned status %d with no problem payload", resp.StatusCode))
	}

	code, err := protocol.FromAuthProblem(problem.Type)
	if err != nil {
		return err
	}
	return protocol.NewSessionError(code, problem.Title)
}
