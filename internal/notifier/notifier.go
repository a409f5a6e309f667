// Package notifier fans out "local store changed" signals to listeners on
// other goroutines after a commit is applied. Delivery is coalesced per
// handle: a handle with an undelivered pending signal does not get a second
// one queued behind it.
package notifier

import (
	"sync"

	"go.uber.org/zap"

	"object-sync-service/internal/logger"
)

// Handle is one registered listener, affined to the goroutine that consumes
// it. Channel handles drain Changed() from their own loop; func handles get a
// private loop goroutine that invokes the callback.
type Handle struct {
	notifier *Notifier
	path     string
	fn       func()

	signal    chan struct{} // capacity 1, gives coalescing
	done      chan struct{}
	closeOnce sync.Once
}

// Path returns the local store path this handle watches.
func (h *Handle) Path() string {
	return h.path
}

// Changed delivers one signal per batch of commits. Consume it from the
// goroutine that registered the handle.
func (h *Handle) Changed() <-chan struct{} {
	return h.signal
}

// Close unregisters the handle. Signals already pending are dropped. Safe to
// call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.notifier.unregister(h)
	})
}

func (h *Handle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// deliver enqueues a signal unless one is already pending.
func (h *Handle) deliver() {
	select {
	case h.signal <- struct{}{}:
	default:
		// A signal is already pending; coalesce.
	}
}

// run drains the signal channel and invokes the callback, in commit order for
// this handle.
func (h *Handle) run() {
	for {
		select {
		case <-h.signal:
			h.fn()
		case <-h.done:
			return
		}
	}
}

// Notifier is the process-wide registry of (handle, path) pairs.
type Notifier struct {
	mu      sync.RWMutex
	handles map[*Handle]struct{}
}

func New() *Notifier {
	return &Notifier{handles: make(map[*Handle]struct{})}
}

// Register adds a channel-consumer handle for the given path.
func (n *Notifier) Register(path string) *Handle {
	h := &Handle{
		notifier: n,
		path:     path,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	n.mu.Lock()
	n.handles[h] = struct{}{}
	n.mu.Unlock()
	return h
}

// RegisterFunc adds a callback handle for the given path. The callback runs
// on a dedicated goroutine owned by the handle, one invocation per delivered
// signal.
func (n *Notifier) RegisterFunc(path string, fn func()) *Handle {
	h := n.Register(path)
	h.fn = fn
	go h.run()
	return h
}

func (n *Notifier) unregister(h *Handle) {
	n.mu.Lock()
	delete(n.handles, h)
	n.mu.Unlock()
}

// NotifyAll signals every live handle registered for path. Handles whose loop
// has gone away are skipped with a warning. There is no ordering guarantee
// between two different handles, only within one.
func (n *Notifier) NotifyAll(path string) {
	n.NotifyAllFrom(path, nil)
}

// NotifyAllFrom is NotifyAll with the committing goroutine's own handle
// called out: origin is notified immediately, before anyone else, and
// synchronously when it is a callback handle.
func (n *Notifier) NotifyAllFrom(path string, origin *Handle) {
	n.mu.RLock()
	targets := make([]*Handle, 0, len(n.handles))
	for h := range n.handles {
		if h.path == path {
			targets = append(targets, h)
		}
	}
	n.mu.RUnlock()

	if origin != nil && origin.path == path && !origin.closed() {
		if origin.fn != nil {
			origin.fn()
		} else {
			origin.deliver()
		}
	}

	for _, h := range targets {
		if h == origin {
			continue
		}
		if h.closed() {
			logger.Log.Warn("Cannot notify a closed listener; it missed a change",
				zap.String("path", path))
			continue
		}
		h.deliver()
	}
}
