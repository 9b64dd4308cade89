package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"callbridge/internal/domain"
)

func TestRegistryLifecycle(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	p := &fakePusher{}

	id := domain.ConnID("c1")
	r.Bind(id, p)

	sess, ok := r.Lookup(id)
	req.True(ok)
	req.Equal(id, sess.ConnID)
	req.Empty(sess.UserID)

	// Not findable by user before join.
	_, ok = r.FindByUser("alice")
	req.False(ok)

	sess, ok = r.SetUser(id, "alice")
	req.True(ok)
	req.Equal("alice", sess.UserID)

	found, ok := r.FindByUser("alice")
	req.True(ok)
	req.Equal(id, found.ConnID)

	pusher, ok := r.Pusher(id)
	req.True(ok)
	req.Same(p, pusher.(*fakePusher))

	r.Unbind(id)
	_, ok = r.Lookup(id)
	req.False(ok)
	_, ok = r.FindByUser("alice")
	req.False(ok)
}

func TestRegistrySessionsSnapshot(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	r.Bind("c1", &fakePusher{})
	r.Bind("c2", &fakePusher{})
	_, _ = r.SetUser("c1", "alice")

	snap := r.Sessions()
	req.Len(snap, 2)

	// The snapshot does not track later changes.
	r.Unbind("c2")
	req.Len(snap, 2)
	req.Len(r.Sessions(), 1)
}

func TestRegistrySetUserOnUnknownConn(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	_, ok := r.SetUser("ghost", "alice")
	req.False(ok)
}

func TestRegistryEmptyUserNeverMatches(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Bind("c1", &fakePusher{})

	// Connections that have not joined must not match an empty query.
	_, ok := r.FindByUser("")
	req.False(ok)
}
