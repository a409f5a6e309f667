// Package session implements the state machine governing one
// local-store-to-remote sync connection, and the process-wide registry that
// guarantees at most one session per local store.
package session

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"object-sync-service/internal/auth"
	"object-sync-service/internal/logger"
	"object-sync-service/internal/protocol"
	"object-sync-service/internal/user"
)

// ErrorHandler receives every fatal or recoverable session error, exactly
// once per occurrence. It may be invoked from a worker goroutine and is never
// called while the session's state lock is held, so it may safely call back
// into the session.
type ErrorHandler func(s *Session, err *protocol.SessionError)

// NoopErrorHandler is the default handler when neither the registry nor the
// configuration supplies one.
func NoopErrorHandler(*Session, *protocol.SessionError) {}

// Session drives the lifecycle of one sync connection:
//
//	Unbound -> Binding -> Bound -> (ErrorPaused | Unbound) -> Stopped
//
// All methods are safe for concurrent use.
type Session struct {
	cfg        *Config
	client     SyncClient
	authClient *auth.Client
	handler    ErrorHandler
	onStopped  func(*Session)
	// onAuthenticated runs after a credentials exchange installs its user.
	// The registry uses it to persist the user. Set before Start.
	onAuthenticated func(*user.User)

	mu           sync.Mutex
	state        State
	stateChanged chan struct{}
	usr          *user.User
	creds        []auth.Credentials
	pendingCreds []auth.Credentials
	ident        string
	cancelBind   context.CancelFunc
	// bindSeq invalidates the async outcome of a superseded bind attempt.
	bindSeq uint64
	fatal   bool
}

func newSession(cfg *Config, client SyncClient, authClient *auth.Client, fallback ErrorHandler, onStopped func(*Session)) *Session {
	handler := cfg.handler
	if handler == nil {
		handler = fallback
	}
	if handler == nil {
		handler = NoopErrorHandler
	}
	return &Session{
		cfg:          cfg,
		client:       client,
		authClient:   authClient,
		handler:      handler,
		onStopped:    onStopped,
		state:        StateUnbound,
		stateChanged: make(chan struct{}),
		usr:          cfg.User(),
		creds:        cfg.Credentials(),
	}
}

// Path returns the canonical local store path this session syncs.
func (s *Session) Path() string {
	return s.cfg.LocalPath()
}

// State returns the current state. Reads are atomic; a torn or intermediate
// state is never observable.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the authenticated identity currently backing this session, if
// any.
func (s *Session) User() *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usr
}

// Start begins binding the local store to the remote one. It returns
// immediately; the exchange continues on a worker goroutine and failures
// surface through the error handler. Calling Start while already Binding or
// Bound is a no-op. A stopped session cannot be started again.
func (s *Session) Start() {
	s.mu.Lock()
	switch s.state {
	case StateBinding, StateBound:
		s.mu.Unlock()
		return
	case StateStopped:
		s.mu.Unlock()
		logger.Log.Warn("Ignoring Start on a stopped session", zap.String("path", s.Path()))
		return
	}

	if len(s.pendingCreds) > 0 {
		s.creds = s.pendingCreds
		s.pendingCreds = nil
		s.usr = nil
	}

	if !s.applyLocked(actionStart) {
		s.mu.Unlock()
		return
	}
	s.fatal = false

	s.bindSeq++
	seq := s.bindSeq
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBind = cancel
	usr := s.usr
	creds := s.creds
	s.mu.Unlock()

	go s.authenticateAndBind(ctx, seq, usr, creds)
}

// authenticateAndBind performs the credentials exchange and remote bind for
// one Start attempt. seq guards against a stop or restart that supersedes
// this attempt while it is in flight.
func (s *Session) authenticateAndBind(ctx context.Context, seq uint64, usr *user.User, creds []auth.Credentials) {
	if usr == nil || !usr.Authenticated() {
		var lastErr error
		usr = nil
		for _, c := range creds {
			u, err := s.authClient.Authenticate(ctx, c)
			if err == nil {
				usr = u
				break
			}
			lastErr = err
			if ctx.Err() != nil {
				return
			}
		}
		if usr == nil {
			if lastErr == nil {
				lastErr = protocol.NewSessionError(protocol.BadAuthentication, "no usable credentials")
			}
			s.failBind(seq, lastErr)
			return
		}
		s.mu.Lock()
		installed := s.bindSeq == seq
		if installed {
			s.usr = usr
		}
		s.mu.Unlock()
		if installed && s.onAuthenticated != nil {
			s.onAuthenticated(usr)
		}
	}

	s.mu.Lock()
	if s.bindSeq != seq || s.state != StateBinding {
		s.mu.Unlock()
		return
	}
	ident := s.ident
	s.mu.Unlock()

	if ident == "" {
		// Ident allocation can hit the native client; the state lock is never
		// held across it, so State() and HandleError stay responsive.
		created, err := s.client.CreateSession(s.Path())
		if err != nil {
			s.failBind(seq, protocol.WrapSessionError(protocol.OtherSessionError, err))
			return
		}
		s.mu.Lock()
		if s.bindSeq != seq || s.state != StateBinding {
			s.mu.Unlock()
			// A stop or restart won the race; release the orphan ident.
			_ = s.client.CloseSession(created)
			return
		}
		s.ident = created
		s.mu.Unlock()
		ident = created
	}

	access, _ := usr.Tokens()
	if err := s.client.Bind(ident, s.cfg.ServerURL(), access); err != nil {
		s.failBind(seq, err)
		return
	}

	s.mu.Lock()
	if s.bindSeq != seq || s.state != StateBinding {
		s.mu.Unlock()
		// A stop or restart won the race; undo the bind we just made.
		_ = s.client.Unbind(ident)
		return
	}
	s.applyLocked(actionBind)
	s.mu.Unlock()

	logger.Log.Info("Session bound",
		zap.String("path", s.Path()),
		zap.String("server", s.cfg.ServerURL().String()),
	)
	go s.heartbeat(seq)
}

// failBind routes an authentication or bind failure into the error handling
// transition, unless the attempt has been superseded.
func (s *Session) failBind(seq uint64, err error) {
	s.mu.Lock()
	stale := s.bindSeq != seq
	s.mu.Unlock()
	if stale || err == nil {
		return
	}

	if serr, ok := err.(*protocol.SessionError); ok {
		s.HandleError(serr)
		return
	}
	if _, ok := err.(*protocol.UnknownAuthProblemError); ok {
		// Protocol version skew is a defect, not an ordinary sync error. It
		// pauses the session but is reported loudly instead of being dressed
		// up as a known code.
		logger.Log.Error("Authentication failed with an unrecognized problem",
			zap.String("path", s.Path()), zap.Error(err))
		s.mu.Lock()
		s.fatal = true
		s.applyLocked(actionError)
		s.mu.Unlock()
		return
	}
	s.HandleError(protocol.WrapSessionError(protocol.IOError, err))
}

// HandleError runs the error handling transition for err. Info errors are
// logged and absorbed; fatal and recoverable errors pause the session and are
// delivered to the error handler exactly once, outside the state lock.
func (s *Session) HandleError(serr *protocol.SessionError) {
	switch serr.Category() {
	case protocol.CategoryInfo:
		logger.Log.Info("Transport error, connection will recover",
			zap.String("path", s.Path()), zap.String("error", serr.Error()))
		return
	case protocol.CategoryFatal, protocol.CategoryRecoverable:
	}

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		logger.Log.Debug("Dropping error for a stopped session",
			zap.String("path", s.Path()), zap.String("error", serr.Error()))
		return
	}
	if serr.Category() == protocol.CategoryFatal {
		s.fatal = true
	}
	s.cancelBindLocked()
	s.applyLocked(actionError)
	handler := s.handler
	s.mu.Unlock()

	logger.Log.Warn("Session paused by error",
		zap.String("path", s.Path()),
		zap.Stringer("category", serr.Category()),
		zap.String("error", serr.Error()),
	)
	handler(s, serr)
}

// SetCredentials supplies new login material. While Unbound or ErrorPaused
// the credentials replace the current ones, and a recoverably paused session
// with PolicyAutomatic resumes binding at once. While Binding or Bound the
// credentials are queued and take effect on the next rebind; the active
// binding is not torn down.
func (s *Session) SetCredentials(creds ...auth.Credentials) {
	s.mu.Lock()
	switch s.state {
	case StateStopped:
		s.mu.Unlock()
		logger.Log.Warn("Ignoring credentials for a stopped session", zap.String("path", s.Path()))
		return
	case StateBinding, StateBound:
		s.pendingCreds = append([]auth.Credentials(nil), creds...)
		s.mu.Unlock()
		return
	}

	s.creds = append([]auth.Credentials(nil), creds...)
	s.usr = nil
	resume := s.state == StateErrorPaused && !s.fatal && s.cfg.Policy() == PolicyAutomatic
	s.mu.Unlock()

	if resume {
		s.Start()
	}
}

// Unbind suspends syncing while keeping the session identifier and
// credentials for a later Start. A no-op unless Bound.
func (s *Session) Unbind() {
	s.mu.Lock()
	if !s.applyLocked(actionUnbind) {
		s.mu.Unlock()
		return
	}
	s.cancelBindLocked()
	ident := s.ident
	s.mu.Unlock()

	if err := s.client.Unbind(ident); err != nil {
		logger.Log.Warn("Unbind failed", zap.String("path", s.Path()), zap.Error(err))
	}
}

// Stop terminates the session and releases its native resources exactly
// once. It is safe to call from any goroutine, interrupts any in-flight
// authentication, does not wait for network I/O, and is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.cancelBindLocked()
	s.bindSeq++
	ident := s.ident
	s.ident = ""
	s.applyLocked(actionStop)
	s.mu.Unlock()

	if ident != "" {
		if err := s.client.Unbind(ident); err != nil {
			logger.Log.Warn("Unbind during stop failed", zap.String("path", s.Path()), zap.Error(err))
		}
		if err := s.client.CloseSession(ident); err != nil {
			logger.Log.Warn("Session release failed", zap.String("path", s.Path()), zap.Error(err))
		}
	}
	runtime.SetFinalizer(s, nil)
	if s.onStopped != nil {
		s.onStopped(s)
	}
	logger.Log.Info("Session stopped", zap.String("path", s.Path()))
}

// NotifyCommit forwards a local commit version to the sync client for
// upload. Ignored unless Bound.
func (s *Session) NotifyCommit(version int64) {
	s.mu.Lock()
	bound := s.state == StateBound
	ident := s.ident
	s.mu.Unlock()
	if !bound {
		return
	}
	if err := s.client.NotifyCommit(ident, version); err != nil {
		logger.Log.Warn("Commit notification failed",
			zap.String("path", s.Path()), zap.Int64("version", version), zap.Error(err))
	}
}

// WaitForState blocks until the session reaches one of the given states or
// the context is done. It is a convenience wrapper over the non-blocking
// core, nothing more.
func (s *Session) WaitForState(ctx context.Context, states ...State) (State, error) {
	for {
		s.mu.Lock()
		cur := s.state
		changed := s.stateChanged
		s.mu.Unlock()

		for _, want := range states {
			if cur == want {
				return cur, nil
			}
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return cur, ctx.Err()
		}
	}
}

// heartbeat pings the sync client while this bind generation stays Bound.
// Ping failures are transport-level; they are logged and left for the
// transport to repair.
func (s *Session) heartbeat(seq uint64) {
	ticker := time.NewTicker(s.cfg.Heartbeat())
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		live := s.bindSeq == seq && s.state == StateBound
		ident := s.ident
		s.mu.Unlock()
		if !live {
			return
		}
		if err := s.client.Ping(ident); err != nil {
			logger.Log.Warn("Heartbeat failed", zap.String("path", s.Path()), zap.Error(err))
		}
	}
}

// applyLocked advances the state machine. Callers hold s.mu.
func (s *Session) applyLocked(a action) bool {
	next, ok := transition(s.state, a)
	if !ok {
		return false
	}
	logger.Log.Debug("Session transition",
		zap.String("path", s.Path()),
		zap.Stringer("from", s.state),
		zap.Stringer("action", a),
		zap.Stringer("to", next),
	)
	s.state = next
	close(s.stateChanged)
	s.stateChanged = make(chan struct{})
	return true
}

// cancelBindLocked interrupts any in-flight authentication or bind. Callers
// hold s.mu.
func (s *Session) cancelBindLocked() {
	if s.cancelBind != nil {
		s.cancelBind()
		s.cancelBind = nil
	}
}

// finalizeSession is the safety net for sessions that become unreachable
// without being stopped. Leaking the native session silently would pin its
// resources for the rest of the process.
func finalizeSession(s *Session) {
	if s.State() != StateStopped {
		logger.Log.Warn("Session was not stopped before becoming unreachable; forcing stop",
			zap.String("path", s.Path()))
		s.Stop()
	}
}
