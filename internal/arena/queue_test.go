package arena

import (
    "testing"
    "time"
)

func TestQueueReenqueueKeepsArrivalOrder(t *testing.T) {
    q := newWaitingQueue()
    t0 := time.Now()
    q.enqueue(Identity{ID: "a"}, "c1", t0)
    q.enqueue(Identity{ID: "b"}, "c2", t0.Add(time.Second))
    // refresh a's handle much later: arrival order must not change
    if fresh := q.enqueue(Identity{ID: "a"}, "c9", t0.Add(time.Hour)); fresh {
        t.Fatalf("re-enqueue created a duplicate entry")
    }
    if q.size() != 2 { t.Fatalf("size = %d", q.size()) }

    a, b, ok := q.takePair()
    if !ok { t.Fatalf("expected a pair") }
    if a.identity.ID != "a" || b.identity.ID != "b" {
        t.Fatalf("pair order: %s, %s", a.identity.ID, b.identity.ID)
    }
    if a.connID != "c9" { t.Fatalf("handle not refreshed: %s", a.connID) }
    if q.size() != 0 { t.Fatalf("queue not drained") }
}

func TestQueueTakePairNeedsTwo(t *testing.T) {
    q := newWaitingQueue()
    q.enqueue(Identity{ID: "solo"}, "c1", time.Now())
    if _, _, ok := q.takePair(); ok {
        t.Fatalf("paired a single waiter")
    }
    if q.size() != 1 { t.Fatalf("lone waiter dropped") }
}

func TestQueueRemove(t *testing.T) {
    q := newWaitingQueue()
    now := time.Now()
    q.enqueue(Identity{ID: "a"}, "c1", now)
    q.enqueue(Identity{ID: "b"}, "c2", now.Add(time.Millisecond))
    if !q.removeByConn("c1") { t.Fatalf("removeByConn missed") }
    if q.removeByConn("c1") { t.Fatalf("removeByConn not idempotent") }
    if !q.removeByIdentity("b") { t.Fatalf("removeByIdentity missed") }
    if q.size() != 0 { t.Fatalf("size = %d", q.size()) }
}
