package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func (s *captureSink) Publish(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	select {
	case s.done <- struct{}{}:
	default:
	}
	return nil
}

func TestAsyncSinkDelivers(t *testing.T) {
	capture := &captureSink{done: make(chan struct{}, 1)}
	sink := NewAsyncSink(capture, AsyncConfig{Workers: 1, BufferSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink.Start(ctx)
	defer sink.Stop()

	ev := Event{Type: TypeStudentEnrolled, InstituteID: "inst-1", EntityID: "enr-1", OccurredAt: time.Now().UTC()}
	require.NoError(t, sink.Publish(ctx, ev))

	select {
	case <-capture.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	require.Len(t, capture.events, 1)
	assert.Equal(t, TypeStudentEnrolled, capture.events[0].Type)
	assert.Equal(t, "inst-1", capture.events[0].InstituteID)
}

func TestAsyncSinkRejectsBeforeStart(t *testing.T) {
	sink := NewAsyncSink(NopSink{}, AsyncConfig{})
	err := sink.Publish(context.Background(), Event{Type: TypeCourseAdded})
	assert.Error(t, err)
}
