package scenario

import (
	"sync"
	"time"

	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// Ticket identifies one requested recomputation.
type Ticket struct {
	seq       uint64
	Selection models.Selection
}

// Session holds the projection shown for the latest selection. When the
// planner changes parameters faster than passes finish, only the result of
// the newest request is kept.
type Session struct {
	mu      sync.Mutex
	seq     uint64
	latest  models.Selection
	current *models.Projection
}

func NewSession() *Session {
	return &Session{}
}

// Begin records sel as the newest selection.
func (s *Session) Begin(sel models.Selection) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.latest = sel
	return Ticket{seq: s.seq, Selection: sel}
}

// Deliver stores proj when t is still the newest request. Stale results are
// dropped and false is returned.
func (s *Session) Deliver(t Ticket, proj models.Projection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq != s.seq || t.Selection != s.latest {
		return false
	}
	s.current = &proj
	return true
}

func (s *Session) Latest() models.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Current returns the last accepted projection, if any.
func (s *Session) Current() (models.Projection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Projection{}, false
	}
	return *s.current, true
}

const (
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultMaxSessions    = 1000
)

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps one Session per planner session id. Sessions idle for
// longer than the idle TTL are pruned, and once maxSessions are live the
// least recently used one is evicted.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*registryEntry
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time
}

// NewRegistry returns a registry bounded by idleTTL and maxSessions. Zero
// values fall back to the defaults.
func NewRegistry(idleTTL time.Duration, maxSessions int) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Registry{
		sessions:    make(map[string]*registryEntry),
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// Session returns the session for id, creating it on first use.
func (r *Registry) Session(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.pruneLocked(now)
	e, ok := r.sessions[id]
	if !ok {
		if len(r.sessions) >= r.maxSessions {
			r.evictOldestLocked()
		}
		e = &registryEntry{session: NewSession()}
		r.sessions[id] = e
	}
	e.lastSeen = now
	return e.session
}

func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.pruneLocked(now)
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) pruneLocked(now time.Time) {
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.idleTTL {
			delete(r.sessions, id)
		}
	}
}

func (r *Registry) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range r.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	delete(r.sessions, oldestID)
}
