package network

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/rovlink/internal/testutil/testlog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandler struct{}

func (nopHandler) HandleTransportEvent(TransportEvent) error { return nil }

func TestTransportSetupErrors(t *testing.T) {
	testlog.Start(t)
	tr := NewTransport(DefaultConfig(), nopHandler{})
	defer tr.Stop()

	_, err := tr.Listen("udp://127.0.0.1:0")
	var be *BindError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.ErrorIs(t, err, ErrAddressInvalid)

	_, err = tr.Connect("not-an-address")
	var ce *ConnectError
	require.True(t, errors.As(err, &ce), "got %v", err)

	err = tr.Send(Endpoint{ID: uuid.Must(uuid.NewV7()), Addr: "x"}, []byte{1})
	var se *SendError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestTransportStopIsIdempotentAndQuiesces(t *testing.T) {
	testlog.Start(t)
	tr := NewTransport(DefaultConfig(), nopHandler{})
	_, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tr.Stop()
		tr.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.False(t, tr.Post(func() {}), "loop must be closed after stop")
	_, err = tr.Listen("127.0.0.1:0")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPostRunsOnLoopInOrder(t *testing.T) {
	testlog.Start(t)
	tr := NewTransport(DefaultConfig(), nopHandler{})
	got := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		require.True(t, tr.Post(func() { got <- i }))
	}
	tr.Stop()
	close(got)
	var order []int
	for v := range got {
		order = append(order, v)
	}
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestParseAddr(t *testing.T) {
	testlog.Start(t)
	for in, want := range map[string]string{
		"tcp://127.0.0.1:9000": "127.0.0.1:9000",
		"localhost:8080":       "localhost:8080",
		" :7000 ":              ":7000",
	} {
		got, err := parseAddr(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"quic://x:1", "nohost", ""} {
		_, err := parseAddr(bad)
		assert.ErrorIs(t, err, ErrAddressInvalid, bad)
	}
}
