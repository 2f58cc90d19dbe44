package game

import "sync"

// Registry owns the hub ID -> session mapping. Sessions are added when a
// room connects and removed when it disconnects; there is exactly one
// session per hub.
type Registry struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Add(session *Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[session.HubID()] = session
}

func (r *Registry) Remove(hubID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.sessions, hubID)
}

func (r *Registry) Get(hubID string) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	session, exists := r.sessions[hubID]
	return session, exists
}

func (r *Registry) Has(hubID string) bool {
	_, exists := r.Get(hubID)
	return exists
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// HubIDs lists the rooms with an active session.
func (r *Registry) HubIDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// All returns the active sessions.
func (r *Registry) All() []*Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}
