package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterRejectsInvalidExpression(t *testing.T) {
	s := New(nil, silentLogger())
	err := s.Register("source", []string{"not a cron expr"}, func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestTriggerRunsHandlerImmediately(t *testing.T) {
	s := New(nil, silentLogger())

	done := make(chan struct{})
	require.NoError(t, s.Register("source", []string{"@yearly"}, func(context.Context) error {
		close(done)
		return nil
	}))

	require.NoError(t, s.Trigger("source"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestTriggerUnknownSourceErrors(t *testing.T) {
	s := New(nil, silentLogger())
	err := s.Trigger("missing")
	assert.Error(t, err)
}

func TestFireDropsOverlappingTicks(t *testing.T) {
	var errs []error
	var mu sync.Mutex
	s := New(func(source string, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}, silentLogger())

	var calls int
	var callsMu sync.Mutex
	release := make(chan struct{})

	require.NoError(t, s.Register("source", []string{"@yearly"}, func(context.Context) error {
		callsMu.Lock()
		calls++
		callsMu.Unlock()
		<-release
		return nil
	}))

	require.NoError(t, s.Trigger("source"))
	time.Sleep(50 * time.Millisecond) // let the first trigger acquire the lock

	j := s.jobs["source"]
	s.fire(j) // synchronous second firing while the first still holds the lock

	close(release)
	time.Sleep(50 * time.Millisecond)

	callsMu.Lock()
	defer callsMu.Unlock()
	assert.Equal(t, 1, calls, "a concurrent tick must be dropped, not queued")
}

func TestFireReportsHandlerErrorToSink(t *testing.T) {
	var got error
	var mu sync.Mutex
	s := New(func(source string, err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	}, silentLogger())

	boom := errors.New("boom")
	require.NoError(t, s.Register("source", []string{"@yearly"}, func(context.Context) error {
		return boom
	}))

	j := s.jobs["source"]
	s.fire(j)

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, got)
	assert.ErrorIs(t, got, boom)
}

func TestStopClosesStoppingSignal(t *testing.T) {
	s := New(nil, silentLogger())

	select {
	case <-s.Stopping():
		t.Fatal("stopping signal closed before Stop")
	default:
	}

	s.Stop()

	select {
	case <-s.Stopping():
	case <-time.After(time.Second):
		t.Fatal("stopping signal not closed after Stop")
	}
}

func TestEntriesReflectsRegisteredSchedules(t *testing.T) {
	s := New(nil, silentLogger())
	require.NoError(t, s.Register("source", []string{"@yearly"}, func(context.Context) error { return nil }))
	assert.Len(t, s.Entries(), 1)
}
