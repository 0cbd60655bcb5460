package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/arcade-client/internal/telemetry"
)

func TestLoopRunsClosuresInOrder(t *testing.T) {
	l := NewLoop("test", 0)
	defer l.Close()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Send(func() { got = append(got, i) })
	}
	require.True(t, l.Do(func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopWaitsWhenFullInsteadOfDropping(t *testing.T) {
	l := NewLoop("full", 1)
	block := make(chan struct{})
	started := make(chan struct{})
	l.Send(func() { close(started); <-block })
	<-started

	var ran []int
	before := telemetry.Metrics.InboxStalls.Value()
	l.Send(func() { ran = append(ran, 1) })
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		l.Send(func() { ran = append(ran, 2) })
	}()

	select {
	case <-sent:
		t.Fatal("Send returned while the inbox was full")
	case <-time.After(50 * time.Millisecond):
	}
	close(block)
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("Send never got room")
	}
	l.Close()
	assert.Equal(t, []int{1, 2}, ran)
	assert.Equal(t, before+1, telemetry.Metrics.InboxStalls.Value())
}

func TestLoopSendAfterCloseIsIgnored(t *testing.T) {
	l := NewLoop("closed", 0)
	l.Close()
	l.Close()

	assert.NotPanics(t, func() { l.Send(func() { t.Error("ran after close") }) })
	assert.False(t, l.Do(func() {}))
	select {
	case <-l.Done():
	default:
		t.Fatal("loop goroutine still running")
	}
}

func TestLoopCloseDrainsQueuedWork(t *testing.T) {
	l := NewLoop("drain", 0)
	var mu sync.Mutex
	n := 0
	for i := 0; i < 50; i++ {
		l.Send(func() { mu.Lock(); n++; mu.Unlock() })
	}
	l.Close()
	assert.Equal(t, 50, n)
}
