package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/samber/lo"

	"callbridge/internal/core"
	"callbridge/internal/domain"
)

// ErrStopped is returned for acks requested after shutdown.
var ErrStopped = errors.New("coordinator stopped")

// Connected must be called after the transport binds a connection. It
// triggers a presence refresh.
func (c *Coordinator) Connected(id domain.ConnID) {
	c.run(func() {
		c.fold(evPresence{})
	})
}

// Disconnected tears down everything the connection owned: its
// subscriptions, its watches, and (via the presence fold) any pending
// or active call it was a member of.
func (c *Coordinator) Disconnected(id domain.ConnID) {
	c.run(func() {
		delete(c.subs, id)
		delete(c.watches, id)
		c.fold(evPresence{})
	})
}

// Join subscribes the connection to its projections: incomingCall,
// outCall, callActive, callMissed and the call-message relay. Initial
// values are pushed immediately; afterwards only changes are.
func (c *Coordinator) Join(sess domain.Session, p core.Pusher) {
	c.run(func() {
		c.subs[sess.ConnID] = &subscriber{sess: sess, push: p}
		c.fold(evPresence{})
	})
}

// WatchOnline subscribes the connection to an onlineList event carrying
// the subset of userIDs currently connected, pushed now and on every
// presence change. A later call replaces the watched set.
func (c *Coordinator) WatchOnline(id domain.ConnID, userIDs []string, p core.Pusher) {
	c.run(func() {
		w := &onlineWatch{connID: id, ids: userIDs, push: p}
		c.watches[id] = w
		c.pushOnline(w, c.presence.Sessions())
	})
}

// InitiateCall asks to ring targetUserID. The caller learns about the
// new pending call through its outCall projection; the ack only
// carries conflicts (already in a call, target offline) or the
// implicit answer of a mutual call.
func (c *Coordinator) InitiateCall(ctx context.Context, id domain.ConnID, targetUserID string) (domain.Ack, error) {
	return c.ack(ctx, func() domain.Ack { return c.initiate(id, targetUserID) })
}

// AnswerCall accepts the first pending call ringing this connection's
// user.
func (c *Coordinator) AnswerCall(ctx context.Context, id domain.ConnID) (domain.Ack, error) {
	return c.ack(ctx, func() domain.Ack { return c.answer(id) })
}

// EndCall hangs up the active call this connection is a member of.
func (c *Coordinator) EndCall(ctx context.Context, id domain.ConnID) (domain.Ack, error) {
	return c.ack(ctx, func() domain.Ack { return c.end(id) })
}

// RelayMessage forwards an opaque negotiation payload to the sender's
// call partner. Fire and forget: senders with no active call are
// silently dropped.
func (c *Coordinator) RelayMessage(id domain.ConnID, data json.RawMessage) {
	c.post(func() {
		if from, ok := c.presence.Lookup(id); ok {
			c.fold(evMessage{From: from, Data: data})
		}
	})
}

// ack runs the decision inside the loop and waits for its reply, so
// the snapshot it reads cannot interleave with other commands.
func (c *Coordinator) ack(ctx context.Context, decide func() domain.Ack) (domain.Ack, error) {
	reply := make(chan domain.Ack, 1)
	c.post(func() { reply <- decide() })
	select {
	case a := <-reply:
		return a, nil
	case <-ctx.Done():
		return domain.Ack{}, ctx.Err()
	case <-c.quit:
		return domain.Ack{}, ErrStopped
	}
}

func (c *Coordinator) initiate(id domain.ConnID, targetUserID string) domain.Ack {
	self, ok := c.presence.Lookup(id)
	if !ok {
		return domain.AckUserOffline
	}

	// Atomic snapshot of both shared views: we are inside the loop,
	// nothing can mutate pending/active until this op returns.
	busy := lo.SomeBy(c.active, func(a domain.ActiveCall) bool {
		return a.ContainsUser(targetUserID) || a.ContainsUser(self.UserID)
	})
	ringingOut := lo.SomeBy(c.pending, func(p domain.PendingCall) bool {
		return p.From.UserID == self.UserID
	})
	if busy || ringingOut {
		return domain.AckAlreadyInCall
	}

	// Glare: the target is already ringing us. Answer that request
	// instead of stacking a mirrored one.
	if mutual, ok := lo.Find(c.pending, func(p domain.PendingCall) bool {
		return p.To.UserID == self.UserID && p.From.UserID == targetUserID
	}); ok {
		c.fold(evAnswered{From: mutual.From, To: mutual.To})
		return domain.AckCallAnswered
	}

	target, ok := c.presence.FindByUser(targetUserID)
	if !ok {
		return domain.AckUserOffline
	}

	c.fold(evInitiated{From: self, To: target})
	return domain.Ack{}
}

func (c *Coordinator) answer(id domain.ConnID) domain.Ack {
	self, ok := c.presence.Lookup(id)
	if !ok {
		return domain.AckNoIncoming
	}
	found, ok := lo.Find(c.pending, func(p domain.PendingCall) bool {
		return p.To.UserID == self.UserID
	})
	if !ok {
		return domain.AckNoIncoming
	}
	c.fold(evAnswered{From: found.From, To: found.To})
	return domain.AckCallAnswered
}

func (c *Coordinator) end(id domain.ConnID) domain.Ack {
	call, ok := lo.Find(c.active, func(a domain.ActiveCall) bool {
		return a.Contains(id)
	})
	if !ok {
		return domain.AckNoOngoing
	}
	// Either member reference works: the fold removes by membership.
	c.fold(evEnded{Sess: call.A})
	return domain.Ack{}
}
