package station

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kecontact/kecontact-go/pkg/command"
	"github.com/kecontact/kecontact-go/pkg/wire"
)

// Session errors.
var (
	// ErrNotSupported is returned when a command needs hardware this
	// model does not carry.
	ErrNotSupported = errors.New("command not supported by this model")

	// ErrNotAuthorized is returned when a charging-power adjustment is
	// attempted without an authorized charging process.
	ErrNotAuthorized = errors.New("charging process not authorized")

	// ErrChargingNotStarted is returned when the charging process could
	// not be brought up in time for a power adjustment.
	ErrChargingNotStarted = errors.New("charging process did not start")
)

// Polling cadence bounds. The firmware needs these minimums between report
// requests.
const (
	DefaultInterval     = 5 * time.Second
	DefaultFastInterval = time.Second

	MinInterval     = 5 * time.Second
	MinFastInterval = time.Second
)

// Sender transmits a payload to a station and keeps the line quiet for at
// least minBlock afterwards. Implemented by transport.Transport.
type Sender interface {
	SendBlocking(host, payload string, minBlock time.Duration) error
}

// Observer is called synchronously after every ingested report with the
// full merged data store.
type Observer func(cs *ChargingStation, data map[string]any)

// Options configures a session's polling behavior.
type Options struct {
	// PeriodicPolling starts the background polling loop on creation
	// (default: true).
	PeriodicPolling bool

	// Interval is the slow polling cadence (default and minimum: 5s).
	Interval time.Duration

	// FastInterval is the fast cadence used briefly after a mutating
	// command (default and minimum: 1s).
	FastInterval time.Duration
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	return Options{
		PeriodicPolling: true,
		Interval:        DefaultInterval,
		FastInterval:    DefaultFastInterval,
	}
}

// normalized raises the cadences to their enforced minimums.
func (o Options) normalized() Options {
	if o.Interval < MinInterval {
		o.Interval = MinInterval
	}
	if o.FastInterval < MinFastInterval {
		o.FastInterval = MinFastInterval
	}
	return o
}

// ChargingStation is the live session for one charging station.
type ChargingStation struct {
	sender Sender
	logger zerolog.Logger
	opts   Options

	// fastCountMax is the number of fast polling rounds after a mutating
	// command before the loop falls back to the slow cadence.
	fastCountMax int32
	fastCount    atomic.Int32

	mu        sync.RWMutex
	info      *Info
	data      map[string]any
	observers []Observer
	updated   chan struct{} // closed and replaced after every merge

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
	wake       chan struct{}
}

// New creates a session for an identified station and, unless disabled in
// the options, starts its polling loop.
func New(sender Sender, info *Info, opts Options, logger zerolog.Logger) *ChargingStation {
	opts = opts.normalized()

	cs := &ChargingStation{
		sender: sender,
		logger: logger.With().
			Str("component", "station").
			Str("serial", info.Serial).
			Logger(),
		opts:         opts,
		fastCountMax: int32(2 * opts.Interval / opts.FastInterval),
		info:         info,
		data:         make(map[string]any),
		updated:      make(chan struct{}),
		wake:         make(chan struct{}, 1),
	}
	// Start at the slow cadence.
	cs.fastCount.Store(cs.fastCountMax)

	if opts.PeriodicPolling {
		cs.startPolling()
	}
	return cs
}

// Info returns the station identity. The returned value is shared and must
// be treated as immutable.
func (cs *ChargingStation) Info() *Info {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.info
}

// Host returns the host the station currently answers on.
func (cs *ChargingStation) Host() string {
	return cs.Info().Host
}

// Equal reports whether both sessions describe the same physical device.
func (cs *ChargingStation) Equal(other *ChargingStation) bool {
	return other != nil && cs.Info().Equal(other.Info())
}

// UpdateInfo swaps the station identity in place, used when a known serial
// reappears under a new host. Accumulated data and observers are kept; the
// polling loop is restarted so it targets the new host.
func (cs *ChargingStation) UpdateInfo(info *Info) {
	cs.Stop()

	cs.mu.Lock()
	cs.info = info
	cs.mu.Unlock()

	if cs.opts.PeriodicPolling {
		cs.startPolling()
	}
}

// AddObserver registers a callback invoked synchronously after every
// ingested report.
func (cs *ChargingStation) AddObserver(fn Observer) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.observers = append(cs.observers, fn)
}

// RemoveObservers drops all registered observers.
func (cs *ChargingStation) RemoveObservers() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.observers = nil
}

// GetValue returns the merged value for a report field, or nil when the
// field has not been seen yet.
func (cs *ChargingStation) GetValue(key string) any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.data[key]
}

// Data returns a snapshot copy of the full merged data store.
func (cs *ChargingStation) Data() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return snapshot(cs.data)
}

func snapshot(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Ingest handles one inbound payload addressed to this station. Reports
// and pushed state changes are decoded, rescaled and merged into the data
// store; acknowledgements and rejections are only logged. A malformed
// payload is dropped and never disturbs the session.
func (cs *ChargingStation) Ingest(payload string) {
	switch wire.Classify(payload) {
	case wire.KindAcknowledged:
		cs.logger.Debug().Msg("last command accepted")
		return
	case wire.KindRejected:
		cs.logger.Warn().Str("payload", payload).Msg("last command rejected")
		return
	}

	fields, err := wire.DecodeReport(payload)
	if err != nil {
		cs.logger.Warn().Err(err).Str("payload", payload).Msg("dropping malformed payload")
		return
	}
	wire.Humanize(fields)

	cs.mu.Lock()
	for k, v := range fields {
		cs.data[k] = v
	}
	data := snapshot(cs.data)
	observers := make([]Observer, len(cs.observers))
	copy(observers, cs.observers)
	close(cs.updated)
	cs.updated = make(chan struct{})
	cs.mu.Unlock()

	for _, fn := range observers {
		fn(cs, data)
	}
}

// waitFor blocks until cond holds on the merged data, the timeout elapses
// or the context is cancelled.
func (cs *ChargingStation) waitFor(ctx context.Context, timeout time.Duration, cond func(data map[string]any) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		cs.mu.RLock()
		ch := cs.updated
		ok := cond(cs.data)
		cs.mu.RUnlock()
		if ok {
			return true
		}

		select {
		case <-ch:
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// startPolling launches the polling loop. No-op while a loop is running.
func (cs *ChargingStation) startPolling() {
	cs.pollMu.Lock()
	defer cs.pollMu.Unlock()

	if cs.pollCancel != nil {
		return
	}

	// Drop a stale wakeup from before a restart.
	select {
	case <-cs.wake:
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	cs.pollCancel = cancel
	cs.pollDone = done
	go cs.pollLoop(ctx, done)
}

// Stop cancels the polling loop and waits for it to exit. Idempotent and
// safe to call mid-sleep or mid-request.
func (cs *ChargingStation) Stop() {
	cs.pollMu.Lock()
	cancel, done := cs.pollCancel, cs.pollDone
	cs.pollCancel, cs.pollDone = nil, nil
	cs.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	cs.logger.Debug().Msg("periodic requests stopped")
}

// pollLoop requests fresh reports on each round, sleeping the fast cadence
// while fast rounds remain and the slow cadence otherwise. A mutating
// command wakes the loop for an immediate round.
func (cs *ChargingStation) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if err := cs.RequestReports(); err != nil {
			cs.logger.Warn().Err(err).Msg("report request failed")
		}

		sleep := cs.opts.Interval
		if cs.fastCount.Load() < cs.fastCountMax {
			cs.fastCount.Add(1)
			sleep = cs.opts.FastInterval
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-cs.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// send transmits a command. Mutating commands reset the fast counter and
// wake the polling loop so the state change is observed promptly.
func (cs *ChargingStation) send(payload string, mutating bool, minBlock time.Duration) error {
	if err := cs.sender.SendBlocking(cs.Host(), payload, minBlock); err != nil {
		return err
	}
	if mutating && cs.opts.PeriodicPolling {
		cs.fastCount.Store(0)
		select {
		case cs.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// RequestReports issues the full report-request sequence for this model:
// the status report always, the metering report when a meter is integrated
// and the current history entry when the data logger is.
func (cs *ChargingStation) RequestReports() error {
	caps := cs.Info().Capabilities

	if err := cs.send(command.Report(wire.ReportStatus), false, 0); err != nil {
		return err
	}
	if caps.Meter {
		if err := cs.send(command.Report(wire.ReportMetering), false, 0); err != nil {
			return err
		}
	}
	if caps.DataLogger {
		if err := cs.send(command.Report(wire.ReportHistoryStart), false, 0); err != nil {
			return err
		}
	}
	return nil
}

// Enable resumes (true) or suspends (false) the charging process.
// Suspending blocks the line longer because the contactor needs time to
// drop out.
func (cs *ChargingStation) Enable(on bool) error {
	var minBlock time.Duration
	if !on {
		minBlock = 2 * time.Second
	}
	return cs.send(command.Enable(on), true, minBlock)
}

// SetFailsafe arms the failsafe watchdog; a timeout of 0 disarms it.
func (cs *ChargingStation) SetFailsafe(timeout int, fallbackAmps float64, persist bool) error {
	payload, err := command.Failsafe(timeout, fallbackAmps, persist)
	if err != nil {
		return err
	}
	return cs.send(payload, true, 0)
}

// SetCurrent permanently limits the charging current in ampere.
func (cs *ChargingStation) SetCurrent(amps float64) error {
	payload, err := command.CurrentMax(amps)
	if err != nil {
		return err
	}
	return cs.send(payload, true, 0)
}

// SetCurrentRamp limits the charging current after delay seconds.
func (cs *ChargingStation) SetCurrentRamp(amps float64, delay int) error {
	payload, err := command.CurrentWithDelay(amps, delay)
	if err != nil {
		return err
	}
	return cs.send(payload, true, 0)
}

// SetEnergyLimit suspends the session once the given energy in kWh has
// been delivered; 0 removes the limit. Needs an integrated meter.
func (cs *ChargingStation) SetEnergyLimit(kwh float64) error {
	if !cs.Info().Capabilities.Meter {
		return fmt.Errorf("%w: energy limit needs an integrated meter", ErrNotSupported)
	}
	payload, err := command.EnergyLimit(kwh)
	if err != nil {
		return err
	}
	return cs.send(payload, true, 0)
}

// SetOutput drives the X1 relay output.
func (cs *ChargingStation) SetOutput(out int) error {
	if !cs.Info().Capabilities.Output {
		return fmt.Errorf("%w: no X1 output", ErrNotSupported)
	}
	payload, err := command.Output(out)
	if err != nil {
		return err
	}
	return cs.send(payload, true, 0)
}

// Authorize starts a charging session with an RFID tag. An empty tag
// authorizes without RFID.
func (cs *ChargingStation) Authorize(rfidTag, rfidClass string) error {
	if !cs.Info().Capabilities.Authorization {
		return fmt.Errorf("%w: no RFID authorization", ErrNotSupported)
	}
	payload, err := command.Start(rfidTag, rfidClass)
	if err != nil {
		return err
	}
	return cs.send(payload, true, time.Second)
}

// Deauthorize stops the charging session identified by the tag, or the
// running one when the tag is empty.
func (cs *ChargingStation) Deauthorize(rfidTag string) error {
	if !cs.Info().Capabilities.Authorization {
		return fmt.Errorf("%w: no RFID authorization", ErrNotSupported)
	}
	payload, err := command.Stop(rfidTag)
	if err != nil {
		return err
	}
	return cs.send(payload, true, time.Second)
}

// Unlock unlocks the plug. The charging process is suspended first.
func (cs *ChargingStation) Unlock() error {
	if !cs.Info().Capabilities.Authorization {
		return fmt.Errorf("%w: no RFID authorization", ErrNotSupported)
	}
	return cs.send(command.Unlock(), true, 0)
}

// SetText shows a text on the built-in display for between minTime and
// maxTime seconds.
func (cs *ChargingStation) SetText(text string, minTime, maxTime int) error {
	if !cs.Info().Capabilities.Display {
		return fmt.Errorf("%w: no display", ErrNotSupported)
	}
	payload, err := command.Display(text, minTime, maxTime)
	if err != nil {
		return err
	}
	return cs.send(payload, false, 0)
}

// SetPhaseSwitchSource selects which channel may toggle the X2 phase
// switch.
func (cs *ChargingStation) SetPhaseSwitchSource(source int) error {
	if !cs.Info().Capabilities.PhaseSwitch {
		return fmt.Errorf("%w: no X2 phase switch", ErrNotSupported)
	}
	payload, err := command.PhaseSwitchSource(source)
	if err != nil {
		return err
	}
	return cs.send(payload, true, 0)
}

// SetPhaseSwitch toggles the X2 phase switch between one and three phase
// charging. The switch source must be set to UDP first.
func (cs *ChargingStation) SetPhaseSwitch(threePhases bool) error {
	if !cs.Info().Capabilities.PhaseSwitch {
		return fmt.Errorf("%w: no X2 phase switch", ErrNotSupported)
	}
	return cs.send(command.PhaseSwitch(threePhases), true, 0)
}

// MaxChargingPowerKW bounds SetChargingPower: 63 A three-phase at 230 V.
const MaxChargingPowerKW = 44.0

// SetChargingPower limits the charging power in kW by deriving a current
// limit from the measured phase voltages. The charging process must be
// authorized; a suspended process is resumed first and the call waits for
// fresh meter readings. Currents are rounded down by default so the power
// limit is never overshot; with stopBelowMin a result below the 6 A
// hardware minimum suspends charging instead of clamping to it.
func (cs *ChargingStation) SetChargingPower(ctx context.Context, powerKW float64, roundUp, stopBelowMin bool) error {
	if !cs.Info().Capabilities.Meter {
		return fmt.Errorf("%w: charging power needs an integrated meter", ErrNotSupported)
	}
	if powerKW < 0 || powerKW > MaxChargingPowerKW {
		return fmt.Errorf("%w: power %g kW must be within 0..%g", command.ErrOutOfRange, powerKW, MaxChargingPowerKW)
	}

	if v, ok := cs.dataNumber(wire.FieldAuthreq); ok && v == 1 {
		return ErrNotAuthorized
	}

	if on, _ := cs.GetValue(wire.FieldStateOn).(bool); !on {
		cs.logger.Info().Msg("charging process authorized but suspended, resuming")
		if err := cs.Enable(true); err != nil {
			return err
		}
		started := cs.waitFor(ctx, 10*time.Second, func(data map[string]any) bool {
			on, _ := data[wire.FieldStateOn].(bool)
			_, metered := data[wire.FieldI1]
			return on && metered
		})
		if !started {
			return ErrChargingNotStarted
		}
	}

	phases, avgVoltage, err := cs.activePhases()
	if err != nil {
		return err
	}

	current := powerKW * 1000.0 / avgVoltage / float64(phases)
	if roundUp {
		current = math.Ceil(current)
	} else {
		current = math.Floor(current)
	}

	switch {
	case current == 0:
		return cs.Enable(false)
	case current < command.MinCurrent:
		if stopBelowMin {
			return cs.Enable(false)
		}
		return cs.SetCurrentRamp(command.MinCurrent, 1)
	case current <= command.MaxCurrent:
		if v, ok := cs.dataNumber(wire.FieldEnableUser); ok && v == 0 {
			if err := cs.Enable(true); err != nil {
				return err
			}
		}
		return cs.SetCurrentRamp(current, 1)
	default:
		return fmt.Errorf("%w: derived current %g A exceeds the hardware range", command.ErrOutOfRange, current)
	}
}

// activePhases derives the number of live phases and their average voltage
// from the latest meter readings. A phase counts as live above a small
// power threshold.
func (cs *ChargingStation) activePhases() (int, float64, error) {
	const minPhasePower = 2.0

	phases := 0
	sumVoltage := 0.0
	for _, pair := range [][2]string{
		{wire.FieldI1, wire.FieldU1},
		{wire.FieldI2, wire.FieldU2},
		{wire.FieldI3, wire.FieldU3},
	} {
		i, iOK := cs.dataNumber(pair[0])
		u, uOK := cs.dataNumber(pair[1])
		if !iOK || !uOK {
			return 0, 0, fmt.Errorf("%w: no meter readings for %s", ErrChargingNotStarted, pair[0])
		}
		if i*u > minPhasePower {
			phases++
			sumVoltage += u
		}
	}
	if phases == 0 {
		return 0, 0, fmt.Errorf("%w: no live phase", ErrChargingNotStarted)
	}
	return phases, sumVoltage / float64(phases), nil
}

func (cs *ChargingStation) dataNumber(key string) (float64, bool) {
	v, ok := cs.GetValue(key).(float64)
	return v, ok
}
