package session

import (
	"fmt"
	"net/url"
)

// EventType discriminates events coming back from the sync client.
type EventType int

const (
	// EventError reports a protocol or connection failure for one session.
	EventError EventType = iota
	// EventDownload reports that a remote changeset was applied to the local
	// store, advancing it to Version.
	EventDownload
)

func (t EventType) String() string {
	switch t {
	case EventError:
		return "ERROR"
	case EventDownload:
		return "DOWNLOAD"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one notification from the sync client. Ident names the session it
// concerns, Path the local store behind it.
type Event struct {
	Type    EventType
	Ident   string
	Path    string
	Code    int
	Message string
	Version int64
}

func (e Event) String() string {
	if e.Type == EventError {
		return fmt.Sprintf("[%s] %s code=%d %s", e.Type, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s version=%d", e.Type, e.Path, e.Version)
}

// SyncClient is the native sync client handle the core multiplexes sessions
// over. It is created once per process and injected; the core never manages
// its lifecycle beyond Close. The changeset wire format is entirely its
// concern.
type SyncClient interface {
	// CreateSession allocates a session identifier for a local store path.
	CreateSession(localPath string) (string, error)
	// Bind activates syncing for the session against the remote store using
	// the given access token.
	Bind(ident string, serverURL *url.URL, accessToken string) error
	// Unbind suspends syncing but keeps the session identifier alive.
	Unbind(ident string) error
	// CloseSession releases the session identifier and everything behind it.
	CloseSession(ident string) error
	// NotifyCommit tells the client a local commit advanced the store to
	// version and should be uploaded.
	NotifyCommit(ident string, version int64) error
	// Ping verifies the session's connection is still serviced.
	Ping(ident string) error
	// Events delivers errors and applied-changeset notifications. The
	// channel closes when the client shuts down.
	Events() <-chan Event
	Close() error
}
