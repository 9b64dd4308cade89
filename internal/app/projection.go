package app

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"callbridge/internal/core"
	"callbridge/internal/domain"
)

// peerPayload serializes as {"userId":"<name>"} or {"userId":false},
// the shape the browser client switches on.
type peerPayload struct {
	UserID any `json:"userId"`
}

func peerValue(userID string) peerPayload {
	if userID == "" {
		return peerPayload{UserID: false}
	}
	return peerPayload{UserID: userID}
}

// subscriber is one joined connection and the last projection values
// pushed to it. Re-emission is suppressed while a derived value is
// unchanged; callActive is deduped on presence/absence only, since a
// user can hold at most one call and the partner cannot change
// mid-call.
type subscriber struct {
	sess domain.Session
	push core.Pusher

	primed       bool
	lastIncoming string
	lastOutgoing string
	lastActive   bool
}

func (s *subscriber) send(event string, data any) {
	if err := s.push.Push(event, data); err != nil {
		log.Warn().Err(err).Str("module", "app.projection").
			Str("conn", string(s.sess.ConnID)).Str("event", event).
			Msg("push failed")
	}
}

// onlineWatch is one connection's isOnline request: the ids it asked
// about, re-filtered against presence on every change.
type onlineWatch struct {
	connID domain.ConnID
	ids    []string
	push   core.Pusher
}

// publish re-derives every subscriber's projections from the current
// ledger and registry state. Runs after every fold.
func (c *Coordinator) publish() {
	for _, s := range c.subs {
		c.publishTo(s)
	}
}

func (c *Coordinator) publishTo(s *subscriber) {
	incoming := ""
	if p, ok := lo.Find(c.pending, func(p domain.PendingCall) bool {
		return p.To.UserID == s.sess.UserID
	}); ok {
		incoming = p.From.UserID
	}

	outgoing := ""
	if p, ok := lo.Find(c.pending, func(p domain.PendingCall) bool {
		return p.From.UserID == s.sess.UserID
	}); ok {
		outgoing = p.To.UserID
	}

	partner := ""
	if call, ok := lo.Find(c.active, func(a domain.ActiveCall) bool {
		return a.ContainsUser(s.sess.UserID)
	}); ok {
		partner = call.PeerOfUser(s.sess.UserID).UserID
	}

	if !s.primed || incoming != s.lastIncoming {
		s.lastIncoming = incoming
		s.send("incomingCall", peerValue(incoming))
	}
	if !s.primed || outgoing != s.lastOutgoing {
		s.lastOutgoing = outgoing
		s.send("outCall", peerValue(outgoing))
	}
	if active := partner != ""; !s.primed || active != s.lastActive {
		s.lastActive = active
		s.send("callActive", peerValue(partner))
	}
	s.primed = true
}

// notifyMissed fires the one-shot callMissed notice at the callee of a
// timed-out request. Payload is the caller's user id.
func (c *Coordinator) notifyMissed(p domain.PendingCall) {
	if s, ok := c.subs[p.To.ConnID]; ok {
		s.send("callMissed", p.From.UserID)
	}
}

// notifyOnline pushes every watch its filtered online list. No dedup:
// watchers get a fresh list on each presence change.
func (c *Coordinator) notifyOnline(live []domain.Session) {
	for _, w := range c.watches {
		c.pushOnline(w, live)
	}
}

func (c *Coordinator) pushOnline(w *onlineWatch, live []domain.Session) {
	online := lo.Filter(w.ids, func(userID string, _ int) bool {
		return lo.SomeBy(live, func(s domain.Session) bool {
			return s.UserID == userID
		})
	})
	if err := w.push.Push("onlineList", online); err != nil {
		log.Warn().Err(err).Str("module", "app.projection").
			Str("conn", string(w.connID)).Msg("onlineList push failed")
	}
}
