package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kecontact/kecontact-go/pkg/command"
	"github.com/kecontact/kecontact-go/pkg/station"
	"github.com/kecontact/kecontact-go/pkg/version"
	"github.com/kecontact/kecontact-go/pkg/wire"
)

var connectCmd = &cobra.Command{
	Use:   "connect <host>",
	Short: "Connect to a charging station and open an interactive prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	m, err := newManager(cfg, logger, cfg.SetupTimeout)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := cmd.Context()
	cs, err := m.Setup(ctx, args[0], cfg.stationOptions())
	if err != nil {
		return err
	}

	info := cs.Info()
	fmt.Printf("Connected to %s (%s %s, serial %s)\n",
		info.Host, info.Manufacturer, info.Model, info.Serial)
	if fw, err := version.ParseFirmware(info.Firmware); err == nil {
		fmt.Printf("Firmware %s\n", fw)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          info.Serial + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    promptCompleter(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	// The watch observer prints every merged report until toggled off.
	var watching atomic.Bool
	cs.AddObserver(func(_ *station.ChargingStation, data map[string]any) {
		if !watching.Load() {
			return
		}
		fmt.Fprintf(rl.Stdout(), "State=%v Plug=%v P=%v E pres=%v\n",
			data[wire.FieldState], data[wire.FieldPlug],
			data[wire.FieldP], data[wire.FieldEPres])
	})

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := runPromptCommand(cmd, cs, &watching, fields[0], fields[1:]); err != nil {
			fmt.Fprintln(rl.Stderr(), "Error:", err)
		}
	}
}

func promptCompleter() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("status"),
		readline.PcItem("get"),
		readline.PcItem("ena",
			readline.PcItem("on"),
			readline.PcItem("off"),
		),
		readline.PcItem("curr"),
		readline.PcItem("currtime"),
		readline.PcItem("energy"),
		readline.PcItem("power"),
		readline.PcItem("start"),
		readline.PcItem("stop"),
		readline.PcItem("display"),
		readline.PcItem("failsafe"),
		readline.PcItem("output"),
		readline.PcItem("x2"),
		readline.PcItem("x2src"),
		readline.PcItem("unlock"),
		readline.PcItem("watch"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func runPromptCommand(cmd *cobra.Command, cs *station.ChargingStation, watching *atomic.Bool, name string, args []string) error {
	switch name {
	case "help":
		printPromptHelp()
		return nil

	case "status":
		printStatus(cs)
		return nil

	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <key>")
		}
		value := cs.GetValue(args[0])
		if value == nil {
			return fmt.Errorf("no value for %q", args[0])
		}
		fmt.Printf("%s = %v\n", args[0], value)
		return nil

	case "ena":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return fmt.Errorf("usage: ena on|off")
		}
		return cs.Enable(args[0] == "on")

	case "curr":
		amps, err := parseFloatArg(args, 0, "usage: curr <amps>")
		if err != nil {
			return err
		}
		return cs.SetCurrent(amps)

	case "currtime":
		if len(args) != 2 {
			return fmt.Errorf("usage: currtime <amps> <delay-seconds>")
		}
		amps, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad amps %q", args[0])
		}
		delay, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad delay %q", args[1])
		}
		return cs.SetCurrentRamp(amps, delay)

	case "energy":
		kwh, err := parseFloatArg(args, 0, "usage: energy <kWh>")
		if err != nil {
			return err
		}
		return cs.SetEnergyLimit(kwh)

	case "power":
		kw, err := parseFloatArg(args, 0, "usage: power <kW>")
		if err != nil {
			return err
		}
		return cs.SetChargingPower(cmd.Context(), kw, false, true)

	case "start":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: start <rfid-tag> [rfid-class]")
		}
		class := command.DefaultRFIDClass
		if len(args) == 2 {
			class = args[1]
		}
		return cs.Authorize(args[0], class)

	case "stop":
		if len(args) != 1 {
			return fmt.Errorf("usage: stop <rfid-tag>")
		}
		return cs.Deauthorize(args[0])

	case "display":
		if len(args) == 0 {
			return fmt.Errorf("usage: display <text>")
		}
		return cs.SetText(strings.Join(args, " "), 1, 0)

	case "failsafe":
		if len(args) != 2 {
			return fmt.Errorf("usage: failsafe <timeout-seconds> <fallback-amps>")
		}
		timeout, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad timeout %q", args[0])
		}
		amps, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad amps %q", args[1])
		}
		return cs.SetFailsafe(timeout, amps, true)

	case "output":
		if len(args) != 1 {
			return fmt.Errorf("usage: output <n>")
		}
		out, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad output %q", args[0])
		}
		return cs.SetOutput(out)

	case "x2":
		if len(args) != 1 || (args[0] != "1" && args[0] != "3") {
			return fmt.Errorf("usage: x2 1|3")
		}
		return cs.SetPhaseSwitch(args[0] == "3")

	case "x2src":
		if len(args) != 1 {
			return fmt.Errorf("usage: x2src <source>")
		}
		source, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad source %q", args[0])
		}
		return cs.SetPhaseSwitchSource(source)

	case "unlock":
		return cs.Unlock()

	case "watch":
		if watching.Load() {
			watching.Store(false)
			fmt.Println("Watch off.")
		} else {
			watching.Store(true)
			fmt.Println("Watch on; type \"watch\" again to stop.")
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q, type \"help\"", name)
	}
}

func parseFloatArg(args []string, index int, usage string) (float64, error) {
	if len(args) != index+1 {
		return 0, fmt.Errorf("%s", usage)
	}
	value, err := strconv.ParseFloat(args[index], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", args[index])
	}
	return value, nil
}

func printStatus(cs *station.ChargingStation) {
	data := cs.Data()
	if len(data) == 0 {
		fmt.Println("No data yet.")
		return
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-24s %v\n", k, data[k])
	}
}

func printPromptHelp() {
	fmt.Print(`Commands:
  status                      dump the merged report data
  get <key>                   print a single report value
  ena on|off                  allow or suspend charging
  curr <amps>                 set the charging current limit
  currtime <amps> <delay>     set the limit after a delay in seconds
  energy <kWh>                set an energy limit for the session
  power <kW>                  set a charging power target
  start <tag> [class]         authorize an RFID tag
  stop <tag>                  deauthorize an RFID tag
  display <text>              show text on the station display
  failsafe <timeout> <amps>   configure the failsafe fallback
  output <n>                  switch the X1 output relay
  x2 1|3                      switch between one and three phases
  x2src <source>              select the phase switch source
  unlock                      unlock the connected plug
  watch                       toggle live report updates
  exit                        leave the prompt
`)
}
