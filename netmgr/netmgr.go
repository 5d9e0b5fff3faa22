// Package netmgr implements the single-threaded select(2)-based network
// manager (C4): it owns every registered socket, multiplexes I/O
// readiness with one select(2) call per Process pass, and reaps sockets
// once they report MayDelete.
//
// Grounded on ua_select_based_networkmanager.c: registerSocket /
// unregisterSocket / setFDSet / select_nm_process / getDiscoveryUrls /
// deleteMembers map directly onto this package's RegisterSocket /
// UnregisterSocket / Process / GetDiscoveryUrls / DeleteMembers.
package netmgr

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iosb-ics/opcua-gonm/socket"
	"github.com/iosb-ics/opcua-gonm/statuscode"
)

// Poller abstracts the select(2) call so tests can substitute a fake that
// reports every fd ready without touching real file descriptors. The
// production Poller is UnixPoller.
type Poller interface {
	Select(fds []int, timeout time.Duration) (ready []int, err error)
}

// Observer receives lifecycle notifications for metrics/logging wiring.
// Every method is optional to implement meaningfully; a nil Observer is
// never invoked.
type Observer interface {
	SocketRegistered(isListener bool)
	SocketReaped(isListener bool)
	ActivityFailed(id socket.ID, status statuscode.Code)
	ProcessCompleted(d time.Duration)
}

// Manager is the registry and I/O loop owning every socket registered
// with it. The zero value is not usable; construct with New.
type Manager struct {
	mu       sync.Mutex
	sockets  *list.List // of socket.Socket
	byID     map[socket.ID]*list.Element
	poller   Poller
	logger   *zap.Logger
	observer Observer
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger installs a structured logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithPoller overrides the select(2) implementation, primarily for tests.
func WithPoller(p Poller) Option {
	return func(m *Manager) { m.poller = p }
}

// WithObserver installs a metrics/logging observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// New constructs an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		sockets: list.New(),
		byID:    make(map[socket.ID]*list.Element),
		poller:  UnixPoller{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterSocket adds s to the registry. Registering a socket whose ID is
// already present is rejected with BadInternalError: every socket must be
// referenced by at most one registration entry, and the original's
// defensive duplicate-removal loop on unregister is replaced here by
// refusing the duplicate up front instead.
func (m *Manager) RegisterSocket(s socket.Socket) statuscode.Code {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[s.ID()]; exists {
		m.logger.Error("netmgr: duplicate socket registration", zap.Int("id", int(s.ID())))
		return statuscode.BadInternalError
	}
	elem := m.sockets.PushBack(s)
	m.byID[s.ID()] = elem
	m.logger.Debug("netmgr: socket registered", zap.Int("id", int(s.ID())), zap.Bool("listener", s.IsListener()))
	if m.observer != nil {
		m.observer.SocketRegistered(s.IsListener())
	}
	return statuscode.Good
}

// UnregisterSocket removes the single registration entry matching id, if
// any, without closing or freeing it — callers that want teardown use
// reap (invoked internally by Process) or DeleteMembers.
func (m *Manager) UnregisterSocket(id socket.ID) statuscode.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unregisterLocked(id)
}

func (m *Manager) unregisterLocked(id socket.ID) statuscode.Code {
	elem, ok := m.byID[id]
	if !ok {
		return statuscode.BadInternalError
	}
	m.sockets.Remove(elem)
	delete(m.byID, id)
	return statuscode.Good
}

// Len reports how many sockets are currently registered.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sockets.Len()
}

// Process runs one iteration of the I/O loop: a single Select call over
// every registered socket's fd, then one pass over the registry applying
// the two-phase mayDelete check.
//
// For a socket whose fd came back ready, Activity runs first and
// MayDelete is checked only afterward — this guarantees a socket flagged
// for deletion during its very last read still had that read drained
// before being reaped. For a socket that was idle this round, MayDelete
// is checked directly, so a socket flagged for deletion by some means
// other than its own Activity (e.g. an external shutdown request) is not
// stranded until it next becomes active.
func (m *Manager) Process(timeout time.Duration) statuscode.Code {
	start := time.Now()
	if m.observer != nil {
		defer func() { m.observer.ProcessCompleted(time.Since(start)) }()
	}

	m.mu.Lock()
	fds := make([]int, 0, m.sockets.Len())
	entries := make([]socket.Socket, 0, m.sockets.Len())
	for e := m.sockets.Front(); e != nil; e = e.Next() {
		s := e.Value.(socket.Socket)
		fds = append(fds, int(s.ID()))
		entries = append(entries, s)
	}
	m.mu.Unlock()

	ready, err := m.poller.Select(fds, timeout)
	if err != nil {
		// A failed readiness wait is transient: log it and let the caller
		// retry on the next pass rather than surfacing it as a hard error.
		m.logger.Error("netmgr: select failed", zap.Error(err))
		return statuscode.Good
	}
	readySet := make(map[int]struct{}, len(ready))
	for _, fd := range ready {
		readySet[fd] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for e := m.sockets.Front(); e != nil; {
		next := e.Next() // LIST_FOREACH_SAFE: capture before a possible removal
		s := e.Value.(socket.Socket)

		if _, isReady := readySet[int(s.ID())]; isReady {
			if s.IsListener() {
				m.acceptLocked(s.(socket.Listener))
			} else if st := s.Activity(); st.IsBad() {
				m.logger.Warn("netmgr: activity failed", zap.Int("id", int(s.ID())), zap.Stringer("status", st))
				if m.observer != nil {
					m.observer.ActivityFailed(s.ID(), st)
				}
				s.Close()
			}
			if s.MayDelete() {
				m.reapLocked(e, s)
			}
		} else if s.MayDelete() {
			m.reapLocked(e, s)
		}

		e = next
	}
	return statuscode.Good
}

func (m *Manager) acceptLocked(l socket.Listener) {
	conn, st := l.Accept()
	if st.IsBad() {
		m.logger.Warn("netmgr: accept failed", zap.Int("id", int(l.ID())), zap.Stringer("status", st))
		return
	}
	if _, exists := m.byID[conn.ID()]; exists {
		m.logger.Error("netmgr: accepted socket id collides with existing registration", zap.Int("id", int(conn.ID())))
		conn.Close()
		conn.Free()
		return
	}
	elem := m.sockets.PushBack(conn)
	m.byID[conn.ID()] = elem
	if m.observer != nil {
		m.observer.SocketRegistered(false)
	}
}

// reapLocked removes a socket that has already reached MayDelete()==true.
// It only frees the socket's resources: whatever drove MayDelete true is
// responsible for having already closed it.
func (m *Manager) reapLocked(e *list.Element, s socket.Socket) {
	s.Free()
	m.sockets.Remove(e)
	delete(m.byID, s.ID())
	if m.observer != nil {
		m.observer.SocketReaped(s.IsListener())
	}
}

// GetDiscoveryUrls returns the discovery URL of every registered listener
// socket. want, if non-negative, is the caller's expected listener count;
// a mismatch returns BadInternalError rather than a silently short list,
// mirroring the bounds check against numListenerSockets in the original.
func (m *Manager) GetDiscoveryUrls(want int) ([]string, statuscode.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls := make([]string, 0)
	for e := m.sockets.Front(); e != nil; e = e.Next() {
		s := e.Value.(socket.Socket)
		if s.IsListener() {
			urls = append(urls, s.DiscoveryURL())
		}
	}
	if want >= 0 && len(urls) != want {
		return nil, statuscode.BadInternalError
	}
	return urls, statuscode.Good
}

// DeleteMembers closes and frees every registered socket and empties the
// registry. Used during shutdown. A failing Close is logged and does not
// stop the teardown of the remaining sockets.
func (m *Manager) DeleteMembers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for e := m.sockets.Front(); e != nil; e = e.Next() {
		s := e.Value.(socket.Socket)
		if st := s.Close(); st.IsBad() {
			m.logger.Warn("netmgr: close failed during teardown", zap.Int("id", int(s.ID())), zap.Stringer("status", st))
		}
		s.Free()
	}
	m.sockets.Init()
	m.byID = make(map[socket.ID]*list.Element)
}
