package session

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"object-sync-service/internal/logger"
	"object-sync-service/internal/protocol"
)

// LoopbackClient is an in-process SyncClient. Binds succeed against any
// non-empty access token and every local commit is echoed back as an applied
// download, so the full session lifecycle can run without a native client or
// a server. Used by tests and by the server binary when no native client is
// configured.
type LoopbackClient struct {
	mu       sync.Mutex
	sessions map[string]*loopbackSession
	events   chan Event
	closed   bool
}

type loopbackSession struct {
	path  string
	bound bool
}

func NewLoopbackClient() *LoopbackClient {
	return &LoopbackClient{
		sessions: make(map[string]*loopbackSession),
		events:   make(chan Event, 256),
	}
}

func (c *LoopbackClient) CreateSession(localPath string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", fmt.Errorf("sync client is closed")
	}
	ident := uuid.New().String()
	c.sessions[ident] = &loopbackSession{path: localPath}
	return ident, nil
}

func (c *LoopbackClient) Bind(ident string, serverURL *url.URL, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[ident]
	if !ok {
		return protocol.NewSessionError(protocol.BadSessionIdent,
			fmt.Sprintf("no session %s", ident))
	}
	if accessToken == "" {
		return protocol.NewSessionError(protocol.BadAuthentication, "empty access token")
	}
	s.bound = true
	logger.Log.Debug("Loopback bind",
		zap.String("ident", ident), zap.String("server", serverURL.String()))
	return nil
}

func (c *LoopbackClient) Unbind(ident string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[ident]; ok {
		s.bound = false
	}
	return nil
}

func (c *LoopbackClient) CloseSession(ident string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, ident)
	return nil
}

func (c *LoopbackClient) NotifyCommit(ident string, version int64) error {
	c.mu.Lock()
	s, ok := c.sessions[ident]
	bound := ok && s.bound
	var path string
	if ok {
		path = s.path
	}
	c.mu.Unlock()

	if !bound {
		return nil
	}
	// The loopback "server" applies the commit instantly and reports it back
	// as a download.
	c.emit(Event{Type: EventDownload, Ident: ident, Path: path, Version: version})
	return nil
}

func (c *LoopbackClient) Ping(ident string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[ident]; !ok {
		return fmt.Errorf("no session %s", ident)
	}
	return nil
}

// InjectError feeds an error event into the stream, as if the server had
// reported it for the given session.
func (c *LoopbackClient) InjectError(ident string, code int, message string) {
	c.mu.Lock()
	var path string
	if s, ok := c.sessions[ident]; ok {
		path = s.path
	}
	c.mu.Unlock()
	c.emit(Event{Type: EventError, Ident: ident, Path: path, Code: code, Message: message})
}

func (c *LoopbackClient) emit(ev Event) {
	// Held across the send so Close cannot close the channel underneath us.
	// The send never blocks.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		logger.Log.Warn("Loopback event queue full, dropping event", zap.Stringer("event", ev))
	}
}

func (c *LoopbackClient) Events() <-chan Event {
	return c.events
}

func (c *LoopbackClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}
