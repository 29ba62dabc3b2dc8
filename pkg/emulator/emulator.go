package emulator

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kecontact/kecontact-go/pkg/transport"
)

// Config configures the emulated charging station.
type Config struct {
	// ListenAddress is the address to bind to (default: 0.0.0.0).
	ListenAddress string

	// Port to listen on (default: 7090). Tests use 0 for an ephemeral
	// port.
	Port int

	// Serial of the emulated station (default: "15017355").
	Serial string

	// Product string; selects the emulated model and its capability set
	// (default: a fully equipped P30).
	Product string

	// Firmware banner (default: an emulator version string).
	Firmware string

	// Logger for emulator logging (default: disabled).
	Logger zerolog.Logger
}

// DefaultConfig returns the default emulator configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddress: "0.0.0.0",
		Port:          transport.DefaultPort,
		Serial:        "15017355",
		Product:       "KC-P30-EC240422-E00",
		Firmware:      "KeContact Emulator v 1.0.0",
		Logger:        zerolog.Nop(),
	}
}

// Emulator is a single emulated charging station on a UDP socket.
type Emulator struct {
	config Config
	logger zerolog.Logger

	conn    *net.UDPConn
	running atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup

	started time.Time

	// Station state reflected back into reports.
	mu         sync.Mutex
	enableUser int
	currUser   int // mA
	setenergy  int // 0.1 Wh
	output     int
	tmoFS      int
	currFS     int // mA
	rfidTag    string
	rfidClass  string
}

// New creates an emulator; zero-value config fields fall back to their
// defaults.
func New(config Config) *Emulator {
	def := DefaultConfig()
	if config.ListenAddress == "" {
		config.ListenAddress = def.ListenAddress
	}
	if config.Serial == "" {
		config.Serial = def.Serial
	}
	if config.Product == "" {
		config.Product = def.Product
	}
	if config.Firmware == "" {
		config.Firmware = def.Firmware
	}

	return &Emulator{
		config: config,
		logger: config.Logger.With().
			Str("component", "emulator").
			Str("run_id", uuid.NewString()).
			Logger(),
		enableUser: 1,
		currUser:   63000,
		currFS:     63000,
	}
}

// Start binds the socket and begins answering.
func (e *Emulator) Start() error {
	ip := net.ParseIP(e.config.ListenAddress)
	if ip == nil {
		return fmt.Errorf("invalid listen address %q", e.config.ListenAddress)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: e.config.Port})
	if err != nil {
		return fmt.Errorf("bind emulator: %w", err)
	}

	e.conn = conn
	e.started = time.Now()
	e.running.Store(true)
	e.wg.Add(1)
	go e.serve()

	e.logger.Info().
		Str("addr", conn.LocalAddr().String()).
		Str("product", e.config.Product).
		Msg("emulator listening")
	return nil
}

// Close shuts the emulator down. Idempotent.
func (e *Emulator) Close() error {
	e.once.Do(func() {
		e.running.Store(false)
		if e.conn != nil {
			e.conn.Close()
		}
		e.wg.Wait()
	})
	return nil
}

// Addr returns the bound address, or nil before Start.
func (e *Emulator) Addr() *net.UDPAddr {
	if e.conn == nil {
		return nil
	}
	return e.conn.LocalAddr().(*net.UDPAddr)
}

func (e *Emulator) serve() {
	defer e.wg.Done()

	buf := make([]byte, 1024)
	for {
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if e.running.Load() {
				e.logger.Error().Err(err).Msg("emulator read failed")
			}
			return
		}

		request := transport.DecodeCP437(buf[:n])
		reply := e.respond(request)
		e.logger.Debug().
			Str("from", addr.String()).
			Str("request", request).
			Str("reply", reply).
			Msg("handled")

		if reply == "" {
			continue
		}
		if _, err := e.conn.WriteToUDP(transport.EncodeCP437(reply), addr); err != nil {
			e.logger.Error().Err(err).Msg("emulator write failed")
		}
	}
}

// Mutating commands answered with a plain acknowledgement.
var ackCommands = []string{"unlock", "setenergy", "output", "currtime", "curr", "ena", "failsafe", "display", "x2src", "x2", "stop"}

// respond builds the reply for one request; an empty reply means silence.
func (e *Emulator) respond(request string) string {
	fields := strings.Fields(strings.TrimSpace(request))
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "i":
		return fmt.Sprintf("\"Firmware\":%q\n", e.config.Firmware)

	case "report":
		if len(fields) < 2 {
			return "TCH-ERR"
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return "TCH-ERR"
		}
		return e.report(id)

	case "start":
		e.mu.Lock()
		e.enableUser = 1
		if len(fields) > 1 {
			e.rfidTag = fields[1]
		}
		if len(fields) > 2 {
			e.rfidClass = fields[2]
		}
		tag, class := e.rfidTag, e.rfidClass
		e.mu.Unlock()
		return fmt.Sprintf("\"RFID tag\": %q\n\"RFID class\": %q", tag, class)
	}

	for _, cmd := range ackCommands {
		if fields[0] == cmd {
			if err := e.apply(fields); err != nil {
				return "TCH-ERR"
			}
			return "TCH-OK :done\n"
		}
	}
	return "TCH-ERR"
}

// apply folds a mutating command into the station state.
func (e *Emulator) apply(fields []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	arg := func(i int) (int, error) {
		if len(fields) <= i {
			return 0, fmt.Errorf("missing argument %d", i)
		}
		return strconv.Atoi(fields[i])
	}

	var err error
	switch fields[0] {
	case "ena":
		e.enableUser, err = arg(1)
	case "curr", "currtime":
		e.currUser, err = arg(1)
	case "setenergy":
		e.setenergy, err = arg(1)
	case "output":
		e.output, err = arg(1)
	case "failsafe":
		if e.tmoFS, err = arg(1); err != nil {
			return err
		}
		e.currFS, err = arg(2)
	case "stop":
		e.enableUser = 0
	}
	return err
}

// report renders the numbered report with the current state folded in.
func (e *Emulator) report(id int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	uptime := int(time.Since(e.started).Seconds())
	state := 3
	if e.enableUser == 0 {
		state = 1
	}

	var fields map[string]any
	switch {
	case id == 1:
		fields = map[string]any{
			"ID":         "1",
			"Product":    e.config.Product,
			"Serial":     e.config.Serial,
			"Firmware":   e.config.Firmware,
			"COM-module": 0,
			"Sec":        uptime,
		}
	case id == 2:
		fields = map[string]any{
			"ID":          "2",
			"State":       state,
			"Error1":      0,
			"Error2":      0,
			"Plug":        7,
			"Enable sys":  1,
			"Enable user": e.enableUser,
			"Max curr":    e.currUser,
			"Max curr %":  1000,
			"Curr HW":     32000,
			"Curr user":   e.currUser,
			"Curr FS":     e.currFS,
			"Tmo FS":      e.tmoFS,
			"Curr timer":  0,
			"Tmo CT":      0,
			"Setenergy":   e.setenergy,
			"Output":      e.output,
			"Input":       0,
			"Authreq":     0,
			"Serial":      e.config.Serial,
			"Sec":         uptime,
		}
	case id == 3:
		fields = map[string]any{
			"ID":      "3",
			"U1":      230,
			"U2":      230,
			"U3":      230,
			"I1":      9980,
			"I2":      9980,
			"I3":      9980,
			"P":       6880000,
			"PF":      1000,
			"E pres":  99999,
			"E total": 9999999,
			"Serial":  e.config.Serial,
			"Sec":     uptime,
		}
	case id >= 100:
		fields = map[string]any{
			"ID":         strconv.Itoa(id),
			"Session ID": 35,
			"Curr HW":    32000,
			"E start":    29532,
			"E pres":     0,
			"started[s]": 1698,
			"ended[s]":   0,
			"reason":     0,
			"RFID tag":   e.rfidTag,
			"RFID class": e.rfidClass,
			"Serial":     e.config.Serial,
			"Sec":        uptime,
		}
	default:
		return "TCH-ERR"
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return "TCH-ERR"
	}
	return string(out)
}
