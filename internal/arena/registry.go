package arena

// conn is the live binding between a physical connection, the identity
// asserted at connect time, and the session it currently belongs to.
type conn struct {
	id        string
	identity  Identity
	sessionID string
	sender    Sender
}

type registry struct {
	conns map[string]*conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*conn)}
}

func (r *registry) attach(connID string, identity Identity, sender Sender) *conn {
	c := &conn{id: connID, identity: identity, sender: sender}
	r.conns[connID] = c
	return c
}

// detach removes the binding and returns it so the caller can start grace
// handling or drop the waiting entry.
func (r *registry) detach(connID string) *conn {
	c := r.conns[connID]
	if c != nil {
		delete(r.conns, connID)
	}
	return c
}

func (r *registry) get(connID string) *conn { return r.conns[connID] }

// findByIdentity scans live connections for the identity. Bounded by the
// number of open sockets, not sessions.
func (r *registry) findByIdentity(id string) *conn {
	for _, c := range r.conns {
		if c.identity.ID == id {
			return c
		}
	}
	return nil
}

func (r *registry) size() int { return len(r.conns) }
