package ws

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepaliveSendsOnInterval(t *testing.T) {
	var sent atomic.Int32
	k := NewKeepalive(10*time.Millisecond, func() error {
		sent.Add(1)
		return nil
	}, nil)

	k.Start()
	assert.True(t, k.Running())

	require.Eventually(t, func() bool { return sent.Load() >= 3 }, time.Second, 5*time.Millisecond)

	<-k.Stop()
	assert.False(t, k.Running())

	after := sent.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, sent.Load())
}

func TestKeepaliveStartTwice(t *testing.T) {
	var sent atomic.Int32
	k := NewKeepalive(time.Hour, func() error {
		sent.Add(1)
		return nil
	}, nil)

	k.Start()
	k.Start()
	<-k.Stop()
	<-k.Stop()

	assert.Zero(t, sent.Load())
}

func TestKeepaliveSurvivesSendErrors(t *testing.T) {
	var sent atomic.Int32
	k := NewKeepalive(5*time.Millisecond, func() error {
		sent.Add(1)
		return errors.New("not connected")
	}, nil)

	k.Start()
	require.Eventually(t, func() bool { return sent.Load() >= 2 }, time.Second, 5*time.Millisecond)
	<-k.Stop()
}

func TestKeepaliveDefaultInterval(t *testing.T) {
	k := NewKeepalive(0, func() error { return nil }, nil)
	assert.Equal(t, DefaultKeepaliveInterval, k.interval)
}
