package auth

// Provider identifies the login method behind a set of credentials.
type Provider string

const (
	ProviderAnonymous        Provider = "anonymous"
	ProviderUsernamePassword Provider = "password"
	ProviderFacebook         Provider = "facebook"
	ProviderGoogle           Provider = "google"
	ProviderApple            Provider = "apple"
	ProviderJWT              Provider = "jwt"
	ProviderFunction         Provider = "function"
	ProviderAPIKey           Provider = "api-key"
)

// Credentials describe one login attempt against the authentication server.
// They are factory-constructed and immutable; a failed login may retry with
// the same value.
type Credentials struct {
	provider   Provider
	token      string
	userInfo   map[string]interface{}
	createUser bool
}

// Anonymous logs in without an account.
func Anonymous() Credentials {
	return Credentials{provider: ProviderAnonymous, createUser: true}
}

// UsernamePassword authenticates with a username and password. If createUser
// is set the account is registered on first use.
func UsernamePassword(username, password string, createUser bool) Credentials {
	return Credentials{
		provider:   ProviderUsernamePassword,
		token:      username,
		userInfo:   map[string]interface{}{"password": password},
		createUser: createUser,
	}
}

// Facebook authenticates with a Facebook access token.
func Facebook(token string) Credentials {
	return Credentials{provider: ProviderFacebook, token: token}
}

// Google authenticates with a Google access token.
func Google(token string) Credentials {
	return Credentials{provider: ProviderGoogle, token: token}
}

// Apple authenticates with a Sign in with Apple id token.
func Apple(token string) Credentials {
	return Credentials{provider: ProviderApple, token: token}
}

// JWT authenticates with a token signed by a trusted third party.
func JWT(token string) Credentials {
	return Credentials{provider: ProviderJWT, token: token}
}

// CustomFunction authenticates through a server-side function taking an
// arbitrary payload.
func CustomFunction(payload map[string]interface{}) Credentials {
	return Credentials{provider: ProviderFunction, userInfo: payload}
}

// APIKey authenticates with a server-issued API key.
func APIKey(key string) Credentials {
	return Credentials{provider: ProviderAPIKey, token: key}
}

func (c Credentials) Provider() Provider {
	return c.provider
}

func (c Credentials) CreateUser() bool {
	return c.createUser
}

// requestBody is the shape posted to the authentication server.
func (c Credentials) requestBody() map[string]interface{} {
	body := map[string]interface{}{
		"provider": string(c.provider),
		"register": c.createUser,
	}
	if c.token != "" {
		body["data"] = c.token
	}
	if len(c.userInfo) > 0 {
		body["user_info"] = c.userInfo
	}
	return body
}
