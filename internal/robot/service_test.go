package robot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/rovlink/internal/network"
	"github.com/danmuck/rovlink/internal/protocol"
	"github.com/danmuck/rovlink/internal/store"
	"github.com/danmuck/rovlink/internal/store/tokens"
	"github.com/danmuck/rovlink/internal/testutil/testlog"
	"github.com/danmuck/rovlink/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// operator is a bare surface peer that records every decoded update.
type operator struct {
	adapters  *store.Adapters
	connected chan struct{}
	once      sync.Once

	mu      sync.Mutex
	updates []store.Update
}

func newOperator() *operator {
	return &operator{adapters: tokens.GenerateAdapters(), connected: make(chan struct{})}
}

func (o *operator) HandleConnected(network.Endpoint) {
	o.once.Do(func() { close(o.connected) })
}
func (o *operator) HandleDisconnected(network.Endpoint)              {}
func (o *operator) HandleConnectionFailed(network.Endpoint, error) {}

func (o *operator) HandlePacket(_ network.Endpoint, p protocol.Packet) error {
	var wire []protocol.StoreUpdate
	switch pk := p.(type) {
	case protocol.StoreUpdate:
		wire = append(wire, pk)
	case protocol.StateBatch:
		wire = pk.Updates
	}
	for _, su := range wire {
		var data []byte
		if !su.Delete {
			data = su.Data
		}
		u, err := o.adapters.Deserialize(store.Key(su.Key), data)
		if err != nil {
			return err
		}
		o.mu.Lock()
		o.updates = append(o.updates, u)
		o.mu.Unlock()
	}
	return nil
}

// status returns the latest status update seen.
func (o *operator) status() (types.RobotStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var last types.RobotStatus
	found := false
	for _, u := range o.updates {
		if s, ok := store.HandleUpdate(tokens.Status, u); ok {
			last, found = s, true
		}
	}
	return last, found
}

func (o *operator) armed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, u := range o.updates {
		if a, ok := store.HandleUpdate(tokens.Armed, u); ok && a == types.Armed {
			return true
		}
	}
	return false
}

func testServiceConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Name = "robot.test"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.AdminListenAddr = ""
	cfg.Motor.Tick = 10 * time.Millisecond
	return cfg
}

func runService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunContext(ctx) }()
	require.Eventually(t, func() bool { return s.Network().Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("service did not stop")
		}
	})
}

func TestServiceArmOverTheWire(t *testing.T) {
	testlog.Start(t)
	svc := NewServiceWithConfig(testServiceConfig())
	runService(t, svc)

	op := newOperator()
	link := network.New("surface.test", network.DefaultConfig(), op)
	defer link.Stop()
	_, err := link.Connect(svc.Network().Addr().String())
	require.NoError(t, err)
	select {
	case <-op.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("operator never connected")
	}

	require.Eventually(t, func() bool {
		s, ok := op.status()
		return ok && s == types.DisarmedStatus()
	}, 2*time.Second, 5*time.Millisecond)

	data, err := op.adapters.Serialize(store.CreateUpdate(tokens.Armed, types.Armed))
	require.NoError(t, err)
	require.True(t, link.SendPacket(protocol.StoreUpdate{Key: string(tokens.Armed.Key()), Data: data}))

	require.Eventually(t, func() bool {
		s, ok := op.status()
		return ok && s == types.Ready() && op.armed()
	}, 2*time.Second, 5*time.Millisecond)

	got, ok := Read(svc.State(), tokens.Armed)
	require.True(t, ok)
	assert.Equal(t, types.Armed, got)
	_, connected := svc.Network().Current()
	assert.True(t, connected)
}

func TestServiceRejectsEmptyListenAddr(t *testing.T) {
	testlog.Start(t)
	cfg := testServiceConfig()
	cfg.ListenAddr = " "
	err := NewServiceWithConfig(cfg).RunContext(context.Background())
	assert.ErrorIs(t, err, ErrInvalidListenAddr)
}

func TestServiceBindFailureFailsRun(t *testing.T) {
	testlog.Start(t)
	cfg := testServiceConfig()
	cfg.ListenAddr = "udp://127.0.0.1:1"
	err := NewServiceWithConfig(cfg).RunContext(context.Background())
	var bindErr *network.BindError
	assert.ErrorAs(t, err, &bindErr)
}

func TestAdminRouterEndpoints(t *testing.T) {
	testlog.Start(t)
	svc := NewServiceWithConfig(testServiceConfig())
	svc.State().Apply(store.CreateUpdate(tokens.Armed, types.Armed))
	r := NewAdminRouter(svc)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get("/state")
	require.Equal(t, http.StatusOK, w.Code)
	var state map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "armed", state["armed"])

	w = get("/peer")
	require.Equal(t, http.StatusOK, w.Code)
	var peer peerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &peer))
	assert.False(t, peer.Connected)

	assert.Equal(t, http.StatusServiceUnavailable, get("/status").Code)
	assert.Equal(t, http.StatusOK, get("/metrics").Code)
}

func TestAdminRouterRequiresToken(t *testing.T) {
	testlog.Start(t)
	cfg := testServiceConfig()
	cfg.AdminToken = "s3cret"
	r := NewAdminRouter(NewServiceWithConfig(cfg))

	do := func(path, header string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("/health", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/state", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/peer", "Bearer wrong"))
	assert.Equal(t, http.StatusOK, do("/state", "Bearer s3cret"))
}
