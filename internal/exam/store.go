package exam

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pavelanni/examreader/internal/model"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 4 * time.Hour

// Store keeps live sessions in memory. Sessions idle for longer than the TTL
// expire; looking up an expired id reports ErrSessionExpired.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*storeEntry
	// expired remembers recently expired ids so they are not reported as unknown.
	expired map[string]time.Time
}

type storeEntry struct {
	session  *Session
	lastSeen time.Time
}

// NewStore creates a session store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		ttl:      ttl,
		now:      now,
		sessions: make(map[string]*storeEntry),
		expired:  make(map[string]time.Time),
	}
}

// Create adds a session. Ids are never reused.
func (st *Store) Create(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[s.ID()]; ok {
		return ErrSessionExists
	}
	if _, ok := st.expired[s.ID()]; ok {
		return ErrSessionExists
	}
	st.sessions[s.ID()] = &storeEntry{session: s, lastSeen: st.now()}
	return nil
}

// Get returns a live session and marks it as used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		if _, gone := st.expired[id]; gone {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionNotFound
	}
	now := st.now()
	if now.Sub(e.lastSeen) > st.ttl {
		st.expireLocked(id, now)
		return nil, ErrSessionExpired
	}
	e.lastSeen = now
	return e.session, nil
}

// Expire removes a session explicitly.
func (st *Store) Expire(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; ok {
		st.expireLocked(id, st.now())
	}
}

func (st *Store) expireLocked(id string, now time.Time) {
	delete(st.sessions, id)
	st.expired[id] = now
}

// Sweep expires idle sessions and forgets ids that expired more than one TTL
// ago. It returns the number of sessions expired.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	n := 0
	for id, e := range st.sessions {
		if now.Sub(e.lastSeen) > st.ttl {
			st.expireLocked(id, now)
			n++
		}
	}
	for id, at := range st.expired {
		if now.Sub(at) > st.ttl {
			delete(st.expired, id)
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				slog.Info("expired idle sessions", "count", n)
			}
		}
	}
}

// List returns the status of every live session, ordered by id.
func (st *Store) List() []model.Status {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, e := range st.sessions {
		sessions = append(sessions, e.session)
	}
	st.mu.Unlock()

	out := make([]model.Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
