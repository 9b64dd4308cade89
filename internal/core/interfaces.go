package core

import "callbridge/internal/domain"

// Pusher is the transport endpoint of one connection, used to push
// named events at it. Owned by the adapter; the adapter must Close()
// it. A Push error means the connection should be treated as gone.
type Pusher interface {
	Push(event string, data any) error
	Close()
}

// PresenceSource is the authoritative view of live connections. The
// coordinator refetches the full set on every presence change instead
// of patching its own bookkeeping, so it can never drift from the
// transport.
type PresenceSource interface {
	Sessions() []domain.Session
	Lookup(id domain.ConnID) (domain.Session, bool)
	FindByUser(userID string) (domain.Session, bool)
}
