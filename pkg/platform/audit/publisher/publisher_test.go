package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vaxtrack/pkg/domain"
	audit "vaxtrack/pkg/platform/audit"
	"vaxtrack/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	event := audit.Event{
		Action:    string(audit.EventDoseAdministered),
		Timestamp: time.Now(),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventDoseAdministered), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventStockDeducted),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	// Wait for async processing
	require.Eventually(t, func() bool {
		events, err := store.List(context.Background())
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Action:    string(audit.EventBatchReceived),
			Timestamp: time.Now(),
		})
		require.NoError(t, err)
	}

	// Close should drain all buffered events.
	pub.Close()

	events, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_FiltersByPatient(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	patient := id.PatientID{1}
	other := id.PatientID{2}

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventDoseAdministered),
		PatientID: patient,
	}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventDoseAdministered),
		PatientID: other,
	}))

	events, err := store.ListByPatient(context.Background(), patient)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, patient, events[0].PatientID)
}

func TestPublisher_EmitAfterCloseAppendsSynchronously(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	pub.Close()

	// The drain goroutine is gone; the event must not sit in the buffer.
	err := pub.Emit(context.Background(), audit.Event{
		Action:    string(audit.EventAdministrationAborted),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	events, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventAdministrationAborted), events[0].Action)
}

func TestPublisher_NoLossUnderConcurrentClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))

	const emitters = 8
	const perEmitter = 25

	var wg sync.WaitGroup
	for range emitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perEmitter {
				_ = pub.Emit(context.Background(), audit.Event{
					Action:    string(audit.EventBatchReceived),
					Timestamp: time.Now(),
				})
			}
		}()
	}

	// Close while emitters are still racing the buffer.
	pub.Close()
	wg.Wait()

	events, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, emitters*perEmitter)
}
