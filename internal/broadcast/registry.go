package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/google/uuid"
)

// ErrRegistryFull is returned by Add when the connection limit is reached.
var ErrRegistryFull = errors.New("connection limit reached")

// Session is the registry handle for one live connection.
type Session struct {
	ID          uuid.UUID
	Identity    int64
	ConnectedAt time.Time
	writer      *connWriter
}

// Send queues msg for this connection only. It never blocks and returns
// false when the session can no longer accept messages.
func (s *Session) Send(msg []byte) bool {
	return s.writer.enqueue(msg)
}

// KeepAlive extends the read deadline after the peer showed activity.
func (s *Session) KeepAlive() {
	s.writer.updateReadDeadline()
}

// Done is closed once the session's writer has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.writer.done()
}

func (s *Session) Anonymous() bool {
	return s.Identity == domain.AnonymousUserID
}

// Registry tracks live sessions keyed by identity. An identity may hold any
// number of sessions at once.
type Registry struct {
	mu          sync.RWMutex
	byIdentity  map[int64]map[uuid.UUID]*Session
	size        int
	maxSessions int
}

// NewRegistry creates a registry holding at most maxSessions sessions.
// Zero or less means unlimited.
func NewRegistry(maxSessions int) *Registry {
	return &Registry{
		byIdentity:  make(map[int64]map[uuid.UUID]*Session),
		maxSessions: maxSessions,
	}
}

func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSessions > 0 && r.size >= r.maxSessions {
		return ErrRegistryFull
	}

	sessions, ok := r.byIdentity[s.Identity]
	if !ok {
		sessions = make(map[uuid.UUID]*Session)
		r.byIdentity[s.Identity] = sessions
	}
	if _, exists := sessions[s.ID]; exists {
		return nil
	}
	sessions[s.ID] = s
	r.size++
	return nil
}

// Remove deregisters s and reports whether it was present. Removing an
// absent session is a no-op.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, ok := r.byIdentity[s.Identity]
	if !ok {
		return false
	}
	if _, ok := sessions[s.ID]; !ok {
		return false
	}

	delete(sessions, s.ID)
	r.size--
	if len(sessions) == 0 {
		delete(r.byIdentity, s.Identity)
	}
	return true
}

// ForEach calls fn once for every session registered at the time of the
// call. fn runs without the registry lock held, so it may add or remove
// sessions.
func (r *Registry) ForEach(fn func(*Session)) {
	for _, s := range r.snapshot() {
		fn(s)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Full reports whether Add would currently fail with ErrRegistryFull.
func (r *Registry) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxSessions > 0 && r.size >= r.maxSessions
}

// CountFor returns the number of sessions held by identity.
func (r *Registry) CountFor(identity int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identity])
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, r.size)
	for _, sessions := range r.byIdentity {
		for _, s := range sessions {
			out = append(out, s)
		}
	}
	return out
}

// drain removes and returns every session.
func (r *Registry) drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, r.size)
	for _, sessions := range r.byIdentity {
		for _, s := range sessions {
			out = append(out, s)
		}
	}
	r.byIdentity = make(map[int64]map[uuid.UUID]*Session)
	r.size = 0
	return out
}
