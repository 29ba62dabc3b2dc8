package kecontact_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kecontact/kecontact-go/pkg/connection"
	"github.com/kecontact/kecontact-go/pkg/emulator"
	"github.com/kecontact/kecontact-go/pkg/station"
	"github.com/kecontact/kecontact-go/pkg/wire"
)

// These tests drive the whole stack over real loopback sockets: an emulated
// station on one side, the connection manager with background polling on the
// other.

func startStack(t *testing.T) (*emulator.Emulator, *connection.Manager) {
	t.Helper()

	e := emulator.New(emulator.Config{
		ListenAddress: "127.0.0.1",
		Serial:        "15017355",
		Product:       "KC-P30-EC240422-E00",
	})
	require.NoError(t, e.Start())
	t.Cleanup(func() { e.Close() })

	cfg := connection.DefaultConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.BindPort = 0
	cfg.Port = e.Addr().Port
	cfg.Timeout = time.Second
	cfg.MinSendSpacing = 10 * time.Millisecond

	m, err := connection.New(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Close() })

	return e, m
}

func TestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket test in short mode")
	}

	_, m := startStack(t)
	ctx := context.Background()

	hosts, err := m.Discover(ctx, "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1"}, hosts)

	opts := station.DefaultOptions()
	opts.Interval = 200 * time.Millisecond
	opts.FastInterval = 50 * time.Millisecond

	cs, err := m.Setup(ctx, hosts[0], opts)
	require.NoError(t, err)
	require.Equal(t, "15017355", cs.Info().Serial)
	assert.True(t, cs.Info().Capabilities.Meter)

	// Background polling fills the merged data map without any explicit
	// request.
	var mu sync.Mutex
	var seen []string
	cs.AddObserver(func(_ *station.ChargingStation, data map[string]any) {
		mu.Lock()
		defer mu.Unlock()
		if id, ok := data[wire.FieldID].(string); ok {
			seen = append(seen, id)
		}
	})

	require.Eventually(t, func() bool {
		return cs.GetValue(wire.FieldState) != nil &&
			cs.GetValue(wire.FieldP) != nil
	}, 3*time.Second, 20*time.Millisecond, "polling delivers status and metering reports")

	mu.Lock()
	assert.NotEmpty(t, seen, "observers see merged updates")
	mu.Unlock()

	// Commands are acknowledged by the station and reflected in the next
	// report cycle.
	require.NoError(t, cs.SetCurrent(10))
	require.Eventually(t, func() bool {
		v, ok := cs.GetValue(wire.FieldCurrUser).(float64)
		return ok && v == 10
	}, 3*time.Second, 20*time.Millisecond, "current limit shows up humanized in amps")

	require.NoError(t, cs.Enable(false))
	require.Eventually(t, func() bool {
		v, ok := cs.GetValue(wire.FieldEnableUser).(float64)
		return ok && v == 0
	}, 3*time.Second, 20*time.Millisecond)

	m.Remove(hosts[0])
	assert.Nil(t, m.Station(hosts[0]))
}

func TestSetupSurvivesRestartOfManager(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping socket test in short mode")
	}

	e, m := startStack(t)
	ctx := context.Background()

	opts := station.DefaultOptions()
	opts.PeriodicPolling = false

	_, err := m.Setup(ctx, "127.0.0.1", opts)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// A fresh manager against the same station sets up cleanly.
	cfg := connection.DefaultConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.BindPort = 0
	cfg.Port = e.Addr().Port
	cfg.Timeout = time.Second

	m2, err := connection.New(cfg)
	require.NoError(t, err)
	require.NoError(t, m2.Start())
	defer m2.Close()

	cs2, err := m2.Setup(ctx, "127.0.0.1", opts)
	require.NoError(t, err)
	assert.Equal(t, "15017355", cs2.Info().Serial)
}
