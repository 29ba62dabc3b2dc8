package connection

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kecontact/kecontact-go/pkg/command"
	"github.com/kecontact/kecontact-go/pkg/station"
	"github.com/kecontact/kecontact-go/pkg/transport"
	"github.com/kecontact/kecontact-go/pkg/wire"
)

// DefaultTimeout is the default wait for an identification reply and the
// default discovery collection window.
const DefaultTimeout = 3 * time.Second

// Config configures the connection manager.
type Config struct {
	// BindAddress is the local address for the shared socket
	// (default: 0.0.0.0).
	BindAddress string

	// BindPort is the local port (default: 7090, the protocol port).
	BindPort int

	// Port is the destination port commands are sent to (default: 7090).
	Port int

	// Timeout bounds the identification handshake and sets the discovery
	// collection window (default: 3s).
	Timeout time.Duration

	// MinSendSpacing is the enforced pause between outbound datagrams
	// (default: 100ms).
	MinSendSpacing time.Duration

	// Logger for all components (default: disabled).
	Logger zerolog.Logger
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress:    "0.0.0.0",
		BindPort:       transport.DefaultPort,
		Port:           transport.DefaultPort,
		Timeout:        DefaultTimeout,
		MinSendSpacing: transport.DefaultMinSendSpacing,
		Logger:         zerolog.Nop(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return c.transportConfig().Validate()
}

func (c Config) transportConfig() transport.Config {
	return transport.Config{
		BindAddress:    c.BindAddress,
		BindPort:       c.BindPort,
		Port:           c.Port,
		MinSendSpacing: c.MinSendSpacing,
		Logger:         c.Logger,
	}
}

// Manager owns the shared transport, the correlation registry and the set
// of live charging station sessions. Construct one per process and pass it
// to whoever needs access; there is no ambient instance.
type Manager struct {
	config Config
	logger zerolog.Logger

	transport *transport.Transport
	waiters   *waiterTable

	mu       sync.Mutex
	stations map[string]*station.ChargingStation

	closed atomic.Bool
}

// New creates a manager. Start must be called before any other operation.
func New(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config:   config,
		logger:   config.Logger.With().Str("component", "connection").Logger(),
		waiters:  newWaiterTable(),
		stations: make(map[string]*station.ChargingStation),
	}

	tr, err := transport.New(config.transportConfig(), m.dispatch)
	if err != nil {
		return nil, err
	}
	m.transport = tr
	return m, nil
}

// Start binds the shared socket and begins receiving.
func (m *Manager) Start() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return m.transport.Start()
}

// Close stops all sessions and shuts the transport down. Idempotent.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	stations := make([]*station.ChargingStation, 0, len(m.stations))
	for _, cs := range m.stations {
		stations = append(stations, cs)
	}
	m.stations = make(map[string]*station.ChargingStation)
	m.mu.Unlock()

	for _, cs := range stations {
		cs.Stop()
	}
	return m.transport.Close()
}

// dispatch routes one inbound datagram. It runs on its own goroutine per
// datagram; the receive loop is already reading the next one.
func (m *Manager) dispatch(payload, host string) {
	kind := wire.Classify(payload)
	m.logger.Debug().
		Str("host", host).
		Stringer("kind", kind).
		Str("payload", payload).
		Msg("datagram received")

	// Our own probe echoed from the broadcast segment.
	if kind == wire.KindBroadcast {
		return
	}
	if kind == wire.KindUnknown {
		m.logger.Warn().
			Str("host", host).
			Str("payload", payload).
			Msg("dropping unclassifiable datagram")
		return
	}

	key := waitKey{kind: kind, host: host}
	if kind == wire.KindDiscoveryReply {
		key = discoveryKey
	}
	if m.waiters.satisfy(key, payload, host) {
		return
	}

	m.mu.Lock()
	cs := m.stations[host]
	m.mu.Unlock()

	if cs == nil {
		m.logger.Info().
			Str("host", host).
			Msg("message from a not yet registered charging station")
		return
	}
	cs.Ingest(payload)
}

// Discover probes the given broadcast address and collects answering hosts
// for the full collection window. Best-effort: it returns whoever replied
// in time, and an empty list is a valid outcome.
func (m *Manager) Discover(ctx context.Context, broadcastAddr string) ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	scanID := uuid.NewString()
	m.logger.Info().
		Str("scan_id", scanID).
		Str("broadcast", broadcastAddr).
		Msg("starting charging station discovery")

	if _, err := m.waiters.register(discoveryKey); err != nil {
		return nil, err
	}
	defer m.waiters.deregister(discoveryKey)

	if err := m.transport.Send(broadcastAddr, command.Probe()); err != nil {
		return nil, err
	}

	// The number of stations is unknown, so wait out the whole window.
	select {
	case <-ctx.Done():
		return m.waiters.collectHosts(discoveryKey), ctx.Err()
	case <-time.After(m.config.Timeout):
	}

	hosts := m.waiters.collectHosts(discoveryKey)
	m.logger.Info().
		Str("scan_id", scanID).
		Strs("hosts", hosts).
		Msg("discovery finished")
	return hosts, nil
}

// Identify requests the identification report from a host and validates it
// into a station identity. A host that does not answer in time, or answers
// with a malformed report, yields a SetupError.
func (m *Manager) Identify(ctx context.Context, host string) (*station.Info, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if net.ParseIP(host) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	key := waitKey{kind: wire.KindReportIdentification, host: host}
	w, err := m.waiters.register(key)
	if err != nil {
		return nil, err
	}
	defer m.waiters.deregister(key)

	if err := m.transport.Send(host, command.Report(wire.ReportIdentification)); err != nil {
		return nil, err
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		return nil, &SetupError{Host: host, Err: ctx.Err()}
	case <-time.After(m.config.Timeout):
		m.logger.Warn().
			Str("host", host).
			Dur("timeout", m.config.Timeout).
			Msg("charging station did not reply, aborting")
		return nil, &SetupError{Host: host, Err: ErrReplyTimeout}
	}

	fields, err := wire.DecodeReport(w.payload)
	if err != nil {
		return nil, &SetupError{Host: host, Err: err}
	}
	info, err := station.ParseInfo(host, fields)
	if err != nil {
		return nil, &SetupError{Host: host, Err: err}
	}
	return info, nil
}

// Setup registers the charging station at the given host and returns its
// session. Idempotent per host: an existing session is returned as is. A
// known serial answering from a new host re-keys the existing session
// instead of creating a duplicate.
func (m *Manager) Setup(ctx context.Context, host string, opts station.Options) (*station.ChargingStation, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if net.ParseIP(host) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	m.mu.Lock()
	if cs, ok := m.stations[host]; ok {
		m.mu.Unlock()
		m.logger.Info().
			Str("host", host).
			Msg("charging station already configured, returning existing session")
		return cs, nil
	}
	m.mu.Unlock()

	info, err := m.Identify(ctx, host)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// A concurrent Setup for the same host may have won the race.
	if cs, ok := m.stations[host]; ok {
		m.mu.Unlock()
		return cs, nil
	}

	// Same serial under a different host: the station moved. Re-key the
	// entry and update the session in place.
	for oldHost, cs := range m.stations {
		if cs.Info().Equal(info) {
			delete(m.stations, oldHost)
			m.stations[host] = cs
			m.mu.Unlock()

			m.logger.Info().
				Str("serial", info.Serial).
				Str("old_host", oldHost).
				Str("host", host).
				Msg("known charging station on a new address, re-keying")
			cs.UpdateInfo(info)
			return cs, nil
		}
	}

	cs := station.New(m.transport, info, opts, m.config.Logger)
	m.stations[host] = cs
	m.mu.Unlock()

	m.logger.Info().
		Str("serial", info.Serial).
		Str("host", host).
		Stringer("model", info.Model).
		Msg("charging station connected")
	return cs, nil
}

// Remove stops the session at the given host and drops it from the
// registry. Unknown hosts are a logged no-op.
func (m *Manager) Remove(host string) {
	m.mu.Lock()
	cs, ok := m.stations[host]
	delete(m.stations, host)
	m.mu.Unlock()

	if !ok {
		m.logger.Warn().
			Str("host", host).
			Msg("cannot remove charging station, host not configured")
		return
	}
	cs.Stop()
	m.logger.Info().Str("host", host).Msg("charging station removed")
}

// Station returns the session registered for a host, or nil.
func (m *Manager) Station(host string) *station.ChargingStation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stations[host]
}

// Stations returns all live sessions.
func (m *Manager) Stations() []*station.ChargingStation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*station.ChargingStation, 0, len(m.stations))
	for _, cs := range m.stations {
		out = append(out, cs)
	}
	return out
}

// Send passes a raw payload through to the transport, serialized with all
// other outbound traffic.
func (m *Manager) Send(host, payload string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return m.transport.Send(host, payload)
}
