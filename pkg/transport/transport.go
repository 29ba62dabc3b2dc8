package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPort is the fixed UDP port of the KeContact protocol. Stations
	// listen on it and send their answers back to it.
	DefaultPort = 7090

	// DefaultMinSendSpacing is the minimum pause between two outbound
	// datagrams. The station firmware drops commands that arrive faster.
	DefaultMinSendSpacing = 100 * time.Millisecond

	// maxDatagramSize bounds a single inbound report payload.
	maxDatagramSize = 4096
)

// Transport errors.
var (
	ErrNotStarted     = errors.New("transport not started")
	ErrAlreadyStarted = errors.New("transport already started")
	ErrInvalidHost    = errors.New("invalid host address")
)

// DispatchFunc receives every inbound datagram as (payload, source host).
// It is called on a fresh goroutine per datagram, so implementations may
// block without stalling the receive loop.
type DispatchFunc func(payload string, host string)

// Config configures the transport.
type Config struct {
	// BindAddress is the local address to bind the socket to
	// (default: 0.0.0.0).
	BindAddress string

	// BindPort is the local port to bind to. The protocol expects the
	// fixed port on both sides; tests may use 0 for an ephemeral port.
	BindPort int

	// Port is the destination port commands are sent to (default: 7090).
	Port int

	// MinSendSpacing is the enforced pause after every send
	// (default: 100ms). Values below the default are raised to it.
	MinSendSpacing time.Duration

	// Logger for transport logging (default: disabled).
	Logger zerolog.Logger
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		BindAddress:    "0.0.0.0",
		BindPort:       DefaultPort,
		Port:           DefaultPort,
		MinSendSpacing: DefaultMinSendSpacing,
		Logger:         zerolog.Nop(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if net.ParseIP(c.BindAddress) == nil {
		return fmt.Errorf("%w: bind address %q", ErrInvalidHost, c.BindAddress)
	}
	if c.BindPort < 0 || c.BindPort > 65535 {
		return fmt.Errorf("bind port %d out of range", c.BindPort)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("destination port %d out of range", c.Port)
	}
	return nil
}

// Transport is the process-wide UDP socket for KeContact traffic.
type Transport struct {
	config   Config
	logger   zerolog.Logger
	dispatch DispatchFunc

	// sendMu serializes encode + transmit + minimum spacing as one unit.
	sendMu sync.Mutex

	mu   sync.Mutex
	conn *net.UDPConn

	running   atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a transport. The dispatch callback is required; it receives
// every inbound datagram once Start has bound the socket.
func New(config Config, dispatch DispatchFunc) (*Transport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if dispatch == nil {
		return nil, errors.New("dispatch callback is required")
	}
	if config.MinSendSpacing < DefaultMinSendSpacing {
		config.MinSendSpacing = DefaultMinSendSpacing
	}
	return &Transport{
		config:   config,
		logger:   config.Logger.With().Str("component", "transport").Logger(),
		dispatch: dispatch,
	}, nil
}

// Start binds the socket, enables broadcast for discovery probes and starts
// the receive loop.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return ErrAlreadyStarted
	}

	addr := &net.UDPAddr{IP: net.ParseIP(t.config.BindAddress), Port: t.config.BindPort}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("bind %s:%d: %w", t.config.BindAddress, t.config.BindPort, err)
	}

	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return fmt.Errorf("enable broadcast: %w", err)
	}

	t.conn = conn
	t.running.Store(true)
	t.wg.Add(1)
	go t.receiveLoop(conn)

	t.logger.Debug().
		Str("bind", conn.LocalAddr().String()).
		Msg("socket bound, listening started")
	return nil
}

// Close shuts the socket down and waits for the receive loop to exit.
// It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.running.Store(false)
		t.mu.Lock()
		if t.conn != nil {
			t.conn.Close()
		}
		t.mu.Unlock()
		t.wg.Wait()
	})
	return nil
}

// LocalAddr returns the bound address, or nil before Start.
func (t *Transport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Send transmits a payload to (host, configured port) with the default
// minimum spacing.
func (t *Transport) Send(host, payload string) error {
	return t.SendBlocking(host, payload, 0)
}

// SendBlocking transmits a payload and then holds the send lock for
// max(minBlock, MinSendSpacing) so the station gets its processing pause.
// A transport that was never started returns ErrNotStarted; that is a
// configuration error, not a retryable condition.
func (t *Transport) SendBlocking(host, payload string, minBlock time.Duration) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		t.logger.Error().Str("host", host).Msg("cannot send, socket not initialized")
		return ErrNotStarted
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.logger.Debug().Str("host", host).Str("payload", payload).Msg("send")

	_, err := conn.WriteToUDP(EncodeCP437(payload), &net.UDPAddr{IP: ip, Port: t.config.Port})
	if err != nil {
		return fmt.Errorf("send to %s: %w", host, err)
	}

	spacing := t.config.MinSendSpacing
	if minBlock > spacing {
		spacing = minBlock
	}
	time.Sleep(spacing)
	return nil
}

// receiveLoop reads datagrams until the socket is closed. Each datagram is
// dispatched on its own goroutine so the next read is armed immediately.
func (t *Transport) receiveLoop(conn *net.UDPConn) {
	defer t.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if t.running.Load() {
				t.logger.Error().Err(err).Msg("socket read failed")
			}
			return
		}

		payload := DecodeCP437(buf[:n])
		host := addr.IP.String()
		go t.dispatch(payload, host)
	}
}

// enableBroadcast sets SO_BROADCAST so discovery probes may target the
// network broadcast address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
