package arena

// sessionStore owns all live sessions plus a secondary index from identity id
// to session id, maintained on create/delete so the reconnect fallback never
// scans the whole map.
type sessionStore struct {
	sessions   map[string]*session
	byIdentity map[string]string
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions:   make(map[string]*session),
		byIdentity: make(map[string]string),
	}
}

func (st *sessionStore) put(s *session) {
	st.sessions[s.id] = s
	for _, sl := range s.slots {
		st.byIdentity[sl.identity.ID] = s.id
	}
}

func (st *sessionStore) get(id string) *session { return st.sessions[id] }

// findByIdentity resolves the session an identity is seated in, if any.
func (st *sessionStore) findByIdentity(id string) *session {
	sid, ok := st.byIdentity[id]
	if !ok {
		return nil
	}
	return st.sessions[sid]
}

// remove deletes a session and its index entries. Idempotent: removing an
// already-deleted id reports false.
func (st *sessionStore) remove(id string) bool {
	s, ok := st.sessions[id]
	if !ok {
		return false
	}
	delete(st.sessions, id)
	for _, sl := range s.slots {
		if st.byIdentity[sl.identity.ID] == id {
			delete(st.byIdentity, sl.identity.ID)
		}
	}
	return true
}

func (st *sessionStore) size() int { return len(st.sessions) }

func (st *sessionStore) all() []*session {
	out := make([]*session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}
