package app

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"callbridge/internal/core"
	"callbridge/internal/domain"
)

// Event kinds folded into the shared call state. Every producer —
// command handlers, disconnect cleanup, timeout timers — goes through
// the same queue, so the folds observe one consistent state.
type (
	evInitiated struct{ From, To domain.Session }
	evTimedOut  struct{ From, To domain.Session }
	evAnswered  struct{ From, To domain.Session }
	evEnded     struct{ Sess domain.Session }
	evPresence  struct{}
	evMessage   struct {
		From domain.Session
		Data json.RawMessage
	}
)

// Coordinator owns the pending-call ledger and the active-call
// registry. All state lives in one goroutine: Run drains a single op
// queue and applies ops strictly in arrival order. Commands enqueue
// their whole read-decide-emit body as one op, which is what makes
// their snapshot of {pending, active} atomic under concurrent
// connections.
type Coordinator struct {
	presence core.PresenceSource
	timeout  time.Duration

	ops  chan func()
	quit chan struct{}

	// Owned by the Run goroutine. Never touched from outside it.
	pending []domain.PendingCall
	active  []domain.ActiveCall
	subs    map[domain.ConnID]*subscriber
	watches map[domain.ConnID]*onlineWatch
}

// NewCoordinator builds a coordinator polling the given presence
// source. timeout is how long a pending call may ring before it is
// dropped as missed.
func NewCoordinator(presence core.PresenceSource, timeout time.Duration) *Coordinator {
	return &Coordinator{
		presence: presence,
		timeout:  timeout,
		ops:      make(chan func(), 64),
		quit:     make(chan struct{}),
		subs:     make(map[domain.ConnID]*subscriber),
		watches:  make(map[domain.ConnID]*onlineWatch),
	}
}

// Run processes ops until Stop. Call it in its own goroutine.
func (c *Coordinator) Run() {
	for {
		select {
		case <-c.quit:
			return
		case op := <-c.ops:
			op()
		}
	}
}

func (c *Coordinator) Stop() {
	close(c.quit)
}

// post enqueues an op. Safe from any goroutine; drops the op when the
// coordinator is stopped.
func (c *Coordinator) post(op func()) {
	select {
	case c.ops <- op:
	case <-c.quit:
	}
}

// run enqueues an op and waits for it to complete.
func (c *Coordinator) run(op func()) {
	done := make(chan struct{})
	c.post(func() {
		op()
		close(done)
	})
	select {
	case <-done:
	case <-c.quit:
	}
}

// fold applies one event to the shared state and republishes the
// per-user projections. Only ever called from the Run goroutine.
func (c *Coordinator) fold(ev any) {
	switch ev := ev.(type) {
	case evInitiated:
		c.pending = append(c.pending, domain.PendingCall{From: ev.From, To: ev.To})
		c.scheduleTimeout(ev.From, ev.To)

	case evTimedOut:
		// The timer always fires; when the request already resolved
		// this is a no-op and no notice goes out.
		var missed *domain.PendingCall
		c.pending = lo.Filter(c.pending, func(p domain.PendingCall, _ int) bool {
			if p.Matches(ev.From.ConnID, ev.To.ConnID) {
				missed = &p
				return false
			}
			return true
		})
		if missed != nil {
			log.Info().Str("module", "app.coordinator").
				Str("from", missed.From.UserID).Str("to", missed.To.UserID).
				Msg("call timed out")
			c.notifyMissed(*missed)
		}

	case evAnswered:
		c.pending = lo.Filter(c.pending, func(p domain.PendingCall, _ int) bool {
			return !p.Matches(ev.From.ConnID, ev.To.ConnID)
		})
		c.active = append(c.active, domain.ActiveCall{A: ev.From, B: ev.To})

	case evEnded:
		c.pending = lo.Filter(c.pending, func(p domain.PendingCall, _ int) bool {
			return !p.Contains(ev.Sess.ConnID)
		})
		c.active = lo.Filter(c.active, func(a domain.ActiveCall, _ int) bool {
			return !a.Contains(ev.Sess.ConnID)
		})

	case evPresence:
		// Refetch the authoritative set and drop anything referencing
		// a connection that is no longer alive.
		live := c.presence.Sessions()
		alive := make(map[domain.ConnID]bool, len(live))
		for _, s := range live {
			alive[s.ConnID] = true
		}
		c.pending = lo.Filter(c.pending, func(p domain.PendingCall, _ int) bool {
			return alive[p.From.ConnID] && alive[p.To.ConnID]
		})
		c.active = lo.Filter(c.active, func(a domain.ActiveCall, _ int) bool {
			return alive[a.A.ConnID] && alive[a.B.ConnID]
		})
		c.notifyOnline(live)

	case evMessage:
		c.relay(ev)
		return // relays never change state
	}

	c.publish()
}

// scheduleTimeout injects a timedOut event after the ring duration.
// The timer is never cancelled; the fold matches by both connection
// ids and ignores it when stale.
func (c *Coordinator) scheduleTimeout(from, to domain.Session) {
	time.AfterFunc(c.timeout, func() {
		c.post(func() {
			c.fold(evTimedOut{From: from, To: to})
		})
	})
}

// relay forwards an opaque payload to the sender's current call
// partner, if any. Payloads never reach a third connection.
func (c *Coordinator) relay(ev evMessage) {
	call, ok := lo.Find(c.active, func(a domain.ActiveCall) bool {
		return a.Contains(ev.From.ConnID)
	})
	if !ok {
		return
	}
	peer := call.Peer(ev.From.ConnID)
	if sub, ok := c.subs[peer.ConnID]; ok {
		sub.send("callMessage", ev.Data)
	}
}
