package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "vaxtrack/pkg/platform/audit"
)

func TestInMemoryStore_AppendExtendsChain(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	empty := store.Head()

	require.NoError(t, store.Append(ctx, audit.Event{
		Action:    string(audit.EventBatchReceived),
		Timestamp: time.Now(),
	}))
	first := store.Head()
	assert.NotEqual(t, empty, first)

	require.NoError(t, store.Append(ctx, audit.Event{
		Action:    string(audit.EventStockDeducted),
		Timestamp: time.Now(),
	}))
	second := store.Head()
	assert.NotEqual(t, first, second)

	// Head is stable with no intervening appends.
	assert.Equal(t, second, store.Head())

	events, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
