package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()

	anon, err := hub.Register(0, nil)
	require.NoError(t, err)
	user, err := hub.Register(5, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Count())

	hub.BroadcastAll([]byte(`{"type":"likes_changed"}`))

	assert.Equal(t, `{"type":"likes_changed"}`, string(<-anon.Send))
	assert.Equal(t, `{"type":"likes_changed"}`, string(<-user.Send))

	hub.Unregister(user)
	hub.Unregister(user)
	assert.Equal(t, 1, hub.Count())

	_, ok := <-user.Send
	assert.False(t, ok, "send channel is closed on unregister")
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(9, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(9, nil)
	assert.ErrorIs(t, err, ErrUserConnsMax)

	_, err = hub.Register(0, nil)
	assert.NoError(t, err, "anonymous visitors only share the global limit")
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(0, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.Count())

	_, ok := <-c.Send
	assert.False(t, ok)

	// A late send on a dropped client must not panic.
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })

	_, err = hub.Register(2, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}
