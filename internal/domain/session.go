// Package domain contains entity without logic, just meta-data
package domain

const MaxUserIDLen = 36

// ConnID is the transport-assigned identity of one live connection.
type ConnID string

// Session is one live connection. UserID is attached by the join
// command and stays empty until then. Sessions are never persisted;
// they die with the connection.
type Session struct {
	ConnID ConnID `json:"connId"`
	UserID string `json:"userId"`
}

// PendingCall is an unanswered outbound call request, subject to
// timeout. Matching is always by both connection ids, never by user
// id, so a stale timeout cannot remove a newer request between the
// same two users.
type PendingCall struct {
	From Session
	To   Session
}

// Matches reports whether the request was created between exactly
// these two connections.
func (p PendingCall) Matches(from, to ConnID) bool {
	return p.From.ConnID == from && p.To.ConnID == to
}

// Contains reports whether the connection is either member.
func (p PendingCall) Contains(id ConnID) bool {
	return p.From.ConnID == id || p.To.ConnID == id
}

// ActiveCall is an established, answered call. The pair is unordered;
// all checks go through membership, not position.
type ActiveCall struct {
	A Session
	B Session
}

func (c ActiveCall) Contains(id ConnID) bool {
	return c.A.ConnID == id || c.B.ConnID == id
}

func (c ActiveCall) ContainsUser(userID string) bool {
	return c.A.UserID == userID || c.B.UserID == userID
}

// Peer returns the other member of the call, by connection.
func (c ActiveCall) Peer(id ConnID) Session {
	if c.A.ConnID == id {
		return c.B
	}
	return c.A
}

// PeerOfUser returns the partner of the given user id.
func (c ActiveCall) PeerOfUser(userID string) Session {
	if c.A.UserID == userID {
		return c.B
	}
	return c.A
}
