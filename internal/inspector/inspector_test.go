package inspector

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspector_RecordAndRecent(t *testing.T) {
	insp := New(Config{RingCapacity: 10}, logrus.New())
	insp.Record("req-1", "VALIDATE", nil)
	insp.Record("req-1", "ROUTE", map[string]interface{}{"provider": "openai"})

	recent := insp.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "VALIDATE", recent[0].Stage)
	assert.Equal(t, "ROUTE", recent[1].Stage)
}

func TestInspector_RingEvictsOldestOnOverflow(t *testing.T) {
	insp := New(Config{RingCapacity: 3}, logrus.New())
	insp.Record("req-1", "A", nil)
	insp.Record("req-2", "B", nil)
	insp.Record("req-3", "C", nil)
	insp.Record("req-4", "D", nil)

	recent := insp.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "req-2", recent[0].RequestID)
	assert.Equal(t, "req-4", recent[2].RequestID)
}

func TestInspector_RecentRespectsLimit(t *testing.T) {
	insp := New(Config{RingCapacity: 10}, logrus.New())
	for i := 0; i < 5; i++ {
		insp.Record("req", "STAGE", nil)
	}
	assert.Len(t, insp.Recent(2), 2)
}

func TestInspector_ForRequestFilters(t *testing.T) {
	insp := New(Config{RingCapacity: 10}, logrus.New())
	insp.Record("req-1", "A", nil)
	insp.Record("req-2", "B", nil)
	insp.Record("req-1", "C", nil)

	events := insp.ForRequest("req-1")
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Stage)
	assert.Equal(t, "C", events[1].Stage)
}

func TestInspector_SubscriberReceivesEvents(t *testing.T) {
	insp := New(Config{RingCapacity: 10, SubscriberBufSize: 4}, logrus.New())
	ch, unsubscribe := insp.Subscribe()
	defer unsubscribe()

	insp.Record("req-1", "A", nil)

	select {
	case event := <-ch:
		assert.Equal(t, "req-1", event.RequestID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber event")
	}
}

func TestInspector_FullSubscriberBufferDoesNotBlockRecord(t *testing.T) {
	insp := New(Config{RingCapacity: 10, SubscriberBufSize: 1}, logrus.New())
	_, unsubscribe := insp.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			insp.Record("req", "STAGE", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full subscriber channel")
	}
}

func TestInspector_UnsubscribeClosesChannel(t *testing.T) {
	insp := New(Config{RingCapacity: 10}, logrus.New())
	ch, unsubscribe := insp.Subscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}
