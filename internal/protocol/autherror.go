package protocol

import "fmt"

// problemBaseURL is the prefix the authentication server uses for the "type"
// field of its problem+json error payloads.
const problemBaseURL = "https://realm.io/docs/object-server/problems/"

// authProblems maps the fixed set of problem URLs the authentication server
// may return to their wire codes. This list is a contract; new URLs only
// appear with a protocol revision.
var authProblems = map[string]ErrorCode{
	problemBaseURL + "invalid-credentials":   InvalidCredentials,
	problemBaseURL + "unknown-account":       UnknownAccount,
	problemBaseURL + "existing-account":      ExistingAccount,
	problemBaseURL + "access-denied":         AccessDenied,
	problemBaseURL + "expired-refresh-token": ExpiredRefreshToken,
	problemBaseURL + "internal-server-error": InternalServerError,
}

// UnknownAuthProblemError reports a problem URL outside the documented set.
// Like UnknownCodeError this indicates version skew and is surfaced as a
// distinct failure rather than folded into a known code.
type UnknownAuthProblemError struct {
	URL string
}

func (e *UnknownAuthProblemError) Error() string {
	return fmt.Sprintf("unknown auth problem %q: client and server protocol versions likely differ", e.URL)
}

// FromAuthProblem resolves an authentication server problem URL to its
// ErrorCode, failing with *UnknownAuthProblemError on anything outside the
// documented set.
func FromAuthProblem(url string) (ErrorCode, error) {
	code, ok := authProblems[url]
	if !ok {
		return 0, &UnknownAuthProblemError{URL: url}
	}
	return code, nil
}
