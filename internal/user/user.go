// Package user holds the authenticated identity produced by a login and the
// token pair used to bind sessions. A User may be shared read-mostly by
// several sessions at once.
package user

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// portableVersion is bumped whenever the serialized form changes shape.
const portableVersion = 1

// Profile carries the account fields reported by the authentication server.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// User is an authenticated identity. The (access, refresh) token pair is
// guarded by a mutex and always replaced together; readers never observe an
// access token from one refresh paired with a refresh token from another.
type User struct {
	identity string
	profile  Profile

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	authenticated bool
}

// New creates a user with the given identity. An empty identity gets a
// generated one.
func New(identity string, profile Profile) *User {
	if identity == "" {
		identity = uuid.New().String()
	}
	return &User{identity: identity, profile: profile}
}

func (u *User) Identity() string {
	return u.identity
}

func (u *User) Profile() Profile {
	return u.profile
}

// Tokens returns the current (access, refresh) pair as a unit.
func (u *User) Tokens() (access, refresh string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.accessToken, u.refreshToken
}

// SetTokens replaces the token pair atomically and marks the user
// authenticated.
func (u *User) SetTokens(access, refresh string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.accessToken = access
	u.refreshToken = refresh
	u.authenticated = true
}

// ExchangeTokens runs fn with the current refresh token and installs the pair
// it returns. The lock is held for the whole exchange, so concurrent
// refreshes for one user are serialized rather than interleaved.
func (u *User) ExchangeTokens(fn func(refreshToken string) (access, refresh string, err error)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	access, refresh, err := fn(u.refreshToken)
	if err != nil {
		return err
	}
	u.accessToken = access
	u.refreshToken = refresh
	u.authenticated = true
	return nil
}

func (u *User) Authenticated() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.authenticated
}

// Invalidate clears the token pair, e.g. after logout.
func (u *User) Invalidate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.accessToken = ""
	u.refreshToken = ""
	u.authenticated = false
}

type portableUser struct {
	Version       int     `json:"version"`
	Identity      string  `json:"identity"`
	AccessToken   string  `json:"accessToken"`
	RefreshToken  string  `json:"refreshToken"`
	Profile       Profile `json:"profile"`
	Authenticated bool    `json:"authenticated"`
}

// ToPortableForm serializes the user to a versioned token string suitable for
// the persisted user store. FromPortableForm(ToPortableForm(u)) reproduces
// every observable field.
func (u *User) ToPortableForm() (string, error) {
	u.mu.Lock()
	p := portableUser{
		Version:       portableVersion,
		Identity:      u.identity,
		AccessToken:   u.accessToken,
		RefreshToken:  u.refreshToken,
		Profile:       u.profile,
		Authenticated: u.authenticated,
	}
	u.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to serialize user %s: %w", u.identity, err)
	}
	return string(data), nil
}

// FromPortableForm restores a user previously serialized with ToPortableForm.
func FromPortableForm(token string) (*User, error) {
	var p portableUser
	if err := json.Unmarshal([]byte(token), &p); err != nil {
		return nil, fmt.Errorf("could not parse user token: %w", err)
	}
	if p.Version != portableVersion {
		return nil, fmt.Errorf("unsupported user token version %d", p.Version)
	}
	if p.Identity == "" {
		return nil, fmt.Errorf("user token is missing an identity")
	}
	u := &User{identity: p.Identity, profile: p.Profile}
	u.accessToken = p.AccessToken
	u.refreshToken = p.RefreshToken
	u.authenticated = p.Authenticated
	return u, nil
}
