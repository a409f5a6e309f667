package session

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"object-sync-service/internal/auth"
	"object-sync-service/internal/logger"
	"object-sync-service/internal/notifier"
	"object-sync-service/internal/protocol"
	"object-sync-service/internal/store"
	"object-sync-service/internal/user"
)

// Registry is the process-wide map from canonical local store path to its
// one live session. It owns the dispatch loop draining the sync client's
// event stream.
type Registry struct {
	client     SyncClient
	authClient *auth.Client
	users      store.UserStore
	changes    *notifier.Notifier
	fallback   ErrorHandler

	mu       sync.Mutex
	sessions map[string]*Session

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRegistry wires a registry over the injected sync client and starts its
// event dispatch loop. Users authenticated through its sessions are persisted
// to the given store, keyed by identity; pass nil to skip persistence. The
// fallback handler applies to sessions whose configuration does not set one;
// pass nil for a no-op.
func NewRegistry(client SyncClient, authClient *auth.Client, users store.UserStore, changes *notifier.Notifier, fallback ErrorHandler) *Registry {
	r := &Registry{
		client:     client,
		authClient: authClient,
		users:      users,
		changes:    changes,
		fallback:   fallback,
		sessions:   make(map[string]*Session),
		done:       make(chan struct{}),
	}
	r.wg.Add(1)
	go r.dispatch()
	return r
}

// GetOrCreate returns the session for cfg's local path, creating it if none
// exists. The check and the insert happen under one lock, so N concurrent
// callers for the same path always share one session. When a session already
// exists its configuration is kept; the first caller's configuration wins.
func (r *Registry) GetOrCreate(cfg *Config) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[cfg.LocalPath()]; ok {
		return s
	}

	s := newSession(cfg, r.client, r.authClient, r.fallback, r.Remove)
	s.onAuthenticated = r.persistUser
	runtime.SetFinalizer(s, finalizeSession)
	r.sessions[cfg.LocalPath()] = s
	logger.Log.Info("Session created",
		zap.String("path", cfg.LocalPath()),
		zap.String("server", cfg.ServerURL().String()),
	)
	return s
}

// Connect is GetOrCreate followed by Start.
func (r *Registry) Connect(cfg *Config) *Session {
	s := r.GetOrCreate(cfg)
	s.Start()
	return s
}

// ConnectAndWait connects and blocks until the session settles (Bound,
// ErrorPaused or Stopped) or the timeout elapses. The core stays
// non-blocking; this only waits for its outcome.
func (r *Registry) ConnectAndWait(ctx context.Context, cfg *Config, timeout time.Duration) (*Session, State, error) {
	s := r.Connect(cfg)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	st, err := s.WaitForState(ctx, StateBound, StateErrorPaused, StateStopped)
	return s, st, err
}

// Get returns the live session for a canonical path, if any.
func (r *Registry) Get(path string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[path]
	return s, ok
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Users returns the users persisted by earlier authentications, including
// those from previous runs of the process.
func (r *Registry) Users(ctx context.Context) ([]*user.User, error) {
	if r.users == nil {
		return nil, nil
	}
	return r.users.All(ctx)
}

// persistUser saves a freshly authenticated user so it survives a restart.
// Persistence is off the session's critical path; failures are logged, never
// surfaced to the session.
func (r *Registry) persistUser(u *user.User) {
	if r.users == nil {
		return
	}
	store.SaveAsync(context.Background(), r.users, u.Identity(), u, func(err error) {
		if err != nil {
			logger.Log.Warn("Failed to persist user",
				zap.String("identity", u.Identity()), zap.Error(err))
		}
	})
}

// Remove drops the registry entry holding this session. Removing a session
// that is already gone is a no-op, so concurrent removal is safe.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, existing := range r.sessions {
		if existing == s {
			delete(r.sessions, path)
			return
		}
	}
}

// Close stops every session and shuts down the dispatch loop. The sync
// client itself is owned by the caller.
func (r *Registry) Close() {
	for _, s := range r.All() {
		s.Stop()
	}
	close(r.done)
	r.wg.Wait()
}

// dispatch routes sync client events to sessions and fans out applied
// changesets to registered change listeners.
func (r *Registry) dispatch() {
	defer r.wg.Done()
	events := r.client.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.route(ev)
		case <-r.done:
			return
		}
	}
}

func (r *Registry) route(ev Event) {
	switch ev.Type {
	case EventDownload:
		if r.changes != nil {
			r.changes.NotifyAll(ev.Path)
		}
	case EventError:
		code, err := protocol.FromCode(ev.Code)
		if err != nil {
			// Version skew between this client and the server. Surfacing it
			// as a sync error would let it masquerade as something routine.
			logger.Log.Error("Server sent an error code outside the protocol taxonomy",
				zap.String("path", ev.Path),
				zap.Int("code", ev.Code),
				zap.String("message", ev.Message),
				zap.Error(err),
			)
			return
		}
		s, ok := r.Get(ev.Path)
		if !ok {
			logger.Log.Debug("Dropping error for an unknown session",
				zap.String("path", ev.Path), zap.Stringer("code", code))
			return
		}
		s.HandleError(protocol.NewSessionError(code, ev.Message))
	}
}
