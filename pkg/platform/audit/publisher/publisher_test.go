package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mintgate/pkg/domain"
	"mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	identity, err := id.ParseIdentity("0x" + strings.Repeat("aa", 20))
	require.NoError(t, err)
	event := audit.Event{
		Identity: identity,
		Action:   string(audit.EventUnitsMinted),
		Amount:   3,
	}

	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := pub.List(context.Background(), identity)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventUnitsMinted), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero(), "zero timestamps are stamped on emit")
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	identity, err := id.ParseIdentity("0x" + strings.Repeat("bb", 20))
	require.NoError(t, err)
	event := audit.Event{
		Identity: identity,
		Action:   string(audit.EventClaimed),
		Amount:   50,
	}

	require.NoError(t, pub.Emit(context.Background(), event))

	// Close flushes the buffer.
	pub.Close()

	events, err := store.List(context.Background(), identity)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventClaimed), events[0].Action)
}

func TestPublisher_ListAllWithNullIdentity(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	a, err := id.ParseIdentity("0x" + strings.Repeat("aa", 20))
	require.NoError(t, err)
	b, err := id.ParseIdentity("0x" + strings.Repeat("bb", 20))
	require.NoError(t, err)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Identity: a, Action: "one", Timestamp: time.Now()}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Identity: b, Action: "two", Timestamp: time.Now()}))

	events, err := pub.List(context.Background(), id.NullIdentity)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
