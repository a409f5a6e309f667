// Package protocol defines the closed error taxonomy shared with the object
// server and the native sync client. The numeric codes are part of the wire
// protocol and must not be renumbered.
package protocol

import "fmt"

// Category classifies the severity of an error and drives the session's
// retry policy.
type Category int

const (
	// CategoryFatal errors kill the session. It must be re-created with a
	// fresh configuration before syncing can resume.
	CategoryFatal Category = iota
	// CategoryRecoverable errors pause the session until the missing
	// information (typically a refreshed token) is supplied.
	CategoryRecoverable
	// CategoryInfo errors are absorbed by the transport, which recovers on
	// its own. They are logged and never surfaced to the application.
	CategoryInfo
)

func (c Category) String() string {
	switch c {
	case CategoryFatal:
		return "FATAL"
	case CategoryRecoverable:
		return "RECOVERABLE"
	case CategoryInfo:
		return "INFO"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// ErrorCode is the numeric wire code for a sync or auth failure.
//
// Ranges:
//
//	0-49    client-side errors
//	50-99   authentication server response errors
//	100-199 connection level errors (transport recovers automatically)
//	200-299 session level errors
type ErrorCode int

const (
	// Client-side errors (0-49).
	IOError              ErrorCode = 0
	JSONParseError       ErrorCode = 1
	UnexpectedJSONFormat ErrorCode = 2

	// Authentication server response errors (50-99).
	InvalidParameters   ErrorCode = 50
	MissingParameters   ErrorCode = 51
	InvalidCredentials  ErrorCode = 52
	UnknownAccount      ErrorCode = 53
	ExistingAccount     ErrorCode = 54
	AccessDenied        ErrorCode = 55
	InvalidRefreshToken ErrorCode = 56
	ExpiredRefreshToken ErrorCode = 57
	InternalServerError ErrorCode = 58

	// Connection level errors (100-199).
	ConnectionClosed         ErrorCode = 100 // Connection closed (no error)
	OtherConnectionError     ErrorCode = 101 // Other connection level error
	UnknownMessage           ErrorCode = 102 // Unknown type of input message
	BadSyntax                ErrorCode = 103 // Bad syntax in input message head
	LimitsExceeded           ErrorCode = 104 // Limits exceeded in input message
	WrongProtocolVersion     ErrorCode = 105 // Wrong protocol version (CLIENT)
	BadSessionIdent          ErrorCode = 106 // Bad session identifier in input message
	ReuseOfSessionIdent      ErrorCode = 107 // Overlapping reuse of session identifier (BIND)
	BoundInOtherSession      ErrorCode = 108 // Client file bound in other session (IDENT)
	BadMessageOrder          ErrorCode = 109 // Bad input message order
	BadDecompression         ErrorCode = 110 // Error in decompression (UPLOAD)
	BadChangesetHeaderSyntax ErrorCode = 111 // Bad server version in changeset header (DOWNLOAD)
	BadChangesetSize         ErrorCode = 112 // Bad size specified in changeset header (UPLOAD)
	BadChangesets            ErrorCode = 113 // Bad changesets (UPLOAD)

	// Session level errors (200-299).
	SessionClosed      ErrorCode = 200 // Session closed (no error)
	OtherSessionError  ErrorCode = 201 // Other session level error
	TokenExpired       ErrorCode = 202 // Access token expired
	BadAuthentication  ErrorCode = 203 // Bad user authentication (BIND, REFRESH)
	IllegalRealmPath   ErrorCode = 204 // Illegal Realm path (BIND)
	NoSuchPath         ErrorCode = 205 // No such Realm (BIND)
	PermissionDenied   ErrorCode = 206 // Permission denied (BIND, REFRESH)
	BadServerFileIdent ErrorCode = 207 // Bad server file identifier (IDENT)
	BadClientFileIdent ErrorCode = 208 // Bad client file identifier (IDENT)
	BadServerVersion   ErrorCode = 209 // Bad server version (IDENT, UPLOAD)
	BadClientVersion   ErrorCode = 210 // Bad client version (IDENT, UPLOAD)
	DivergingHistories ErrorCode = 211 // Diverging histories (IDENT)
	BadChangeset       ErrorCode = 212 // Bad changeset (UPLOAD)
	DisabledSession    ErrorCode = 213 // Disabled session
)

type codeEntry struct {
	name     string
	category Category
}

// codes is the single source of truth for the taxonomy. A code missing from
// this table is not a valid wire code.
var codes = map[ErrorCode]codeEntry{
	IOError:              {"IO_ERROR", CategoryRecoverable},
	JSONParseError:       {"JSON_PARSE_ERROR", CategoryFatal},
	UnexpectedJSONFormat: {"UNEXPECTED_JSON_FORMAT", CategoryFatal},

	InvalidParameters:   {"INVALID_PARAMETERS", CategoryFatal},
	MissingParameters:   {"MISSING_PARAMETERS", CategoryFatal},
	InvalidCredentials:  {"INVALID_CREDENTIALS", CategoryFatal},
	UnknownAccount:      {"UNKNOWN_ACCOUNT", CategoryFatal},
	ExistingAccount:     {"EXISTING_ACCOUNT", CategoryFatal},
	AccessDenied:        {"ACCESS_DENIED", CategoryFatal},
	InvalidRefreshToken: {"INVALID_REFRESH_TOKEN", CategoryFatal},
	ExpiredRefreshToken: {"EXPIRED_REFRESH_TOKEN", CategoryFatal},
	InternalServerError: {"INTERNAL_SERVER_ERROR", CategoryRecoverable},

	ConnectionClosed:         {"CONNECTION_CLOSED", CategoryInfo},
	OtherConnectionError:     {"OTHER_CONNECTION_ERROR", CategoryInfo},
	UnknownMessage:           {"UNKNOWN_MESSAGE", CategoryInfo},
	BadSyntax:                {"BAD_SYNTAX", CategoryInfo},
	LimitsExceeded:           {"LIMITS_EXCEEDED", CategoryInfo},
	WrongProtocolVersion:     {"WRONG_PROTOCOL_VERSION", CategoryInfo},
	BadSessionIdent:          {"BAD_SESSION_IDENT", CategoryInfo},
	ReuseOfSessionIdent:      {"REUSE_OF_SESSION_IDENT", CategoryInfo},
	BoundInOtherSession:      {"BOUND_IN_OTHER_SESSION", CategoryInfo},
	BadMessageOrder:          {"BAD_MESSAGE_ORDER", CategoryInfo},
	BadDecompression:         {"BAD_DECOMPRESSION", CategoryInfo},
	BadChangesetHeaderSyntax: {"BAD_CHANGESET_HEADER_SYNTAX", CategoryInfo},
	BadChangesetSize:         {"BAD_CHANGESET_SIZE", CategoryInfo},
	BadChangesets:            {"BAD_CHANGESETS", CategoryInfo},

	SessionClosed:      {"SESSION_CLOSED", CategoryRecoverable},
	OtherSessionError:  {"OTHER_SESSION_ERROR", CategoryRecoverable},
	TokenExpired:       {"TOKEN_EXPIRED", CategoryRecoverable},
	BadAuthentication:  {"BAD_AUTHENTICATION", CategoryFatal},
	IllegalRealmPath:   {"ILLEGAL_REALM_PATH", CategoryFatal},
	NoSuchPath:         {"NO_SUCH_PATH", CategoryFatal},
	PermissionDenied:   {"PERMISSION_DENIED", CategoryFatal},
	BadServerFileIdent: {"BAD_SERVER_FILE_IDENT", CategoryFatal},
	BadClientFileIdent: {"BAD_CLIENT_FILE_IDENT", CategoryFatal},
	BadServerVersion:   {"BAD_SERVER_VERSION", CategoryFatal},
	BadClientVersion:   {"BAD_CLIENT_VERSION", CategoryFatal},
	DivergingHistories: {"DIVERGING_HISTORIES", CategoryFatal},
	BadChangeset:       {"BAD_CHANGESET", CategoryFatal},
	DisabledSession:    {"DISABLED_SESSION", CategoryFatal},
}

// Category returns the severity of the code. Only call this on codes obtained
// from FromCode or the named constants; an undefined code reports FATAL.
func (c ErrorCode) Category() Category {
	if e, ok := codes[c]; ok {
		return e.category
	}
	return CategoryFatal
}

func (c ErrorCode) String() string {
	if e, ok := codes[c]; ok {
		return fmt.Sprintf("%s(%d)", e.name, int(c))
	}
	return fmt.Sprintf("UNDEFINED(%d)", int(c))
}

// UnknownCodeError reports a numeric code that does not exist in the
// taxonomy. It signals protocol version skew between client and server and
// must never be coerced into a known category.
type UnknownCodeError struct {
	Code int
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown error code %d: client and server protocol versions likely differ", e.Code)
}

// FromCode resolves a numeric wire code to its ErrorCode. An integer outside
// the taxonomy fails with *UnknownCodeError; there is deliberately no
// catch-all bucket, since silently downgrading an unrecognized fatal error
// risks undetected data divergence.
func FromCode(code int) (ErrorCode, error) {
	c := ErrorCode(code)
	if _, ok := codes[c]; !ok {
		return 0, &UnknownCodeError{Code: code}
	}
	return c, nil
}
