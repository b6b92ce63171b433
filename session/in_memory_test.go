package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/core"
)

func TestInMemoryService_CreateAndGet(t *testing.T) {
	svc := NewInMemoryService()
	ctx := context.Background()

	state := map[string]any{"k": "v"}
	sess, err := svc.Create(ctx, "adk_mcp_fastapi", "user_default", state)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user_default", sess.UserID)
	assert.Equal(t, "adk_mcp_fastapi", sess.AppName)

	state["k"] = "mutated"
	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	v, _ := got.GetState("k")
	assert.Equal(t, "v", v, "state is copied on create")

	other, err := svc.Create(ctx, "adk_mcp_fastapi", "user_default", nil)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID, "same caller id never shares a session")
}

func TestInMemoryService_AppendEventAndDelete(t *testing.T) {
	svc := NewInMemoryService()
	ctx := context.Background()

	sess, err := svc.Create(ctx, "app", "u", nil)
	require.NoError(t, err)

	require.NoError(t, svc.AppendEvent(ctx, sess.ID, core.NewMessageEvent("inv", "agent", "hi")))
	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.GetEvents(), 1)
	assert.Empty(t, sess.GetEvents(), "returned sessions are snapshots")

	require.NoError(t, svc.Delete(ctx, sess.ID))
	require.NoError(t, svc.Delete(ctx, sess.ID))
	assert.Equal(t, 0, svc.Len())

	_, err = svc.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, svc.AppendEvent(ctx, sess.ID, core.NewEvent("inv", "agent")), core.ErrSessionNotFound)
}

func TestInMemoryService_ConcurrentCreate(t *testing.T) {
	svc := NewInMemoryService()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Create(context.Background(), "app", "u", nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, svc.Len())
}
