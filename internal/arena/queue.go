package arena

import (
	"sort"
	"time"
)

type waitingEntry struct {
	identity Identity
	connID   string
	joinedAt time.Time
}

// waitingQueue is the ordered set of identities seeking a session. At most
// one entry per identity: re-enqueue updates the connection handle and keeps
// the original arrival time.
type waitingQueue struct {
	entries []*waitingEntry
}

func newWaitingQueue() *waitingQueue { return &waitingQueue{} }

// enqueue returns true when a new entry was appended, false when an existing
// entry was refreshed in place.
func (q *waitingQueue) enqueue(id Identity, connID string, now time.Time) bool {
	for _, e := range q.entries {
		if e.identity.ID == id.ID {
			e.connID = connID
			e.identity = id
			return false
		}
	}
	q.entries = append(q.entries, &waitingEntry{identity: id, connID: connID, joinedAt: now})
	return true
}

func (q *waitingQueue) removeByConn(connID string) bool {
	for i, e := range q.entries {
		if e.connID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *waitingQueue) removeByIdentity(id string) bool {
	for i, e := range q.entries {
		if e.identity.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// takePair removes and returns the two earliest-arrival entries.
func (q *waitingQueue) takePair() (*waitingEntry, *waitingEntry, bool) {
	if len(q.entries) < 2 {
		return nil, nil, false
	}
	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].joinedAt.Before(q.entries[j].joinedAt)
	})
	a, b := q.entries[0], q.entries[1]
	q.entries = append(q.entries[:0], q.entries[2:]...)
	return a, b, true
}

func (q *waitingQueue) size() int { return len(q.entries) }

func (q *waitingQueue) connIDs() []string {
	out := make([]string, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.connID
	}
	return out
}
