// Package session tracks registered parties and their subscription state.
// The registry is the single source of truth for "who is subscribed to
// what"; only the message dispatcher and the scheduler mutate it.
package session

import (
	"sync"
	"time"

	"github.com/ZeMeny/Mars-Sensor/mrs"
	"github.com/ZeMeny/Mars-Sensor/transport"
)

// Session is one registered party. A session exists iff its identity has
// completed at least one configuration exchange; it is removed the instant
// its subscription set becomes empty or its idle time exceeds the timeout.
type Session struct {
	// Identity is the party's unique name, the registry's primary key
	Identity string

	// Handle is the opaque transport send target; nil for identities
	// recorded speculatively before registration
	Handle transport.Handle

	// OriginAddress is the party's remote address as seen by the transport
	OriginAddress string

	// LastActivity is the time of the party's last valid message
	LastActivity time.Time

	// Subscriptions is the party's current traffic-category set
	Subscriptions []mrs.SubscriptionType
}

// SubscribedTo reports whether the session holds the given category.
func (s *Session) SubscribedTo(category mrs.SubscriptionType) bool {
	for _, sub := range s.Subscriptions {
		if sub == category {
			return true
		}
	}
	return false
}

func (s *Session) clone() *Session {
	out := *s
	out.Subscriptions = append([]mrs.SubscriptionType(nil), s.Subscriptions...)
	return &out
}

// Registry is a concurrency-safe mapping from party identity to session.
// All operations are internally synchronized and perform no I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Register inserts or refreshes a session. A refresh updates the handle,
// origin address and activity timestamp without resetting subscriptions.
// The previous transport handle is returned so the caller can close it;
// nil when there was none or it is unchanged.
func (r *Registry) Register(identity string, handle transport.Handle, originAddress string) (sess *Session, replaced transport.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[identity]
	if !ok {
		existing = &Session{Identity: identity}
		r.sessions[identity] = existing
	}
	if ok && existing.Handle != nil && existing.Handle != handle {
		replaced = existing.Handle
	}
	existing.Handle = handle
	existing.OriginAddress = originAddress
	existing.LastActivity = r.now()
	return existing.clone(), replaced
}

// SetSubscriptions sets the category set for a known identity and refreshes
// its activity timestamp. An empty set removes the session (unsubscribe)
// and returns its transport handle for closing. When speculative is true
// the identity is created if missing, with a nil handle; otherwise unknown
// identities are a no-op.
func (r *Registry) SetSubscriptions(identity string, categories []mrs.SubscriptionType, speculative bool) (known bool, removed transport.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[identity]
	if !ok {
		if !speculative || len(categories) == 0 {
			return false, nil
		}
		sess = &Session{Identity: identity}
		r.sessions[identity] = sess
	}

	if len(categories) == 0 {
		delete(r.sessions, identity)
		return true, sess.Handle
	}

	sess.Subscriptions = append([]mrs.SubscriptionType(nil), categories...)
	sess.LastActivity = r.now()
	return true, nil
}

// Touch refreshes the activity timestamp of a known identity.
func (r *Registry) Touch(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[identity]
	if !ok {
		return false
	}
	sess.LastActivity = r.now()
	return true
}

// Get returns a snapshot of the session for an identity.
func (r *Registry) Get(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[identity]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictExpired removes and returns every session whose idle time reached
// the timeout. The sweep is atomic with respect to concurrent registration.
func (r *Registry) EvictExpired(now time.Time, timeout time.Duration) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Session
	for identity, sess := range r.sessions {
		if now.Sub(sess.LastActivity) >= timeout {
			evicted = append(evicted, sess.clone())
			delete(r.sessions, identity)
		}
	}
	return evicted
}

// ForEachSubscribed invokes fn for every session currently subscribed to
// the category. Iteration runs over a snapshot taken under the read lock,
// so registry mutation from inside fn or from other goroutines cannot
// corrupt the walk.
func (r *Registry) ForEachSubscribed(category mrs.SubscriptionType, fn func(*Session)) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess.SubscribedTo(category) {
			snapshot = append(snapshot, sess.clone())
		}
	}
	r.mu.RUnlock()

	for _, sess := range snapshot {
		fn(sess)
	}
}

// Snapshot returns a copy of every registered session.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.clone())
	}
	return out
}
