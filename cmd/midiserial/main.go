// Package main is the entry point for the midiserial CLI.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/leandrodaf/midiserial/internal/api"
	"github.com/leandrodaf/midiserial/internal/logger"
	"github.com/leandrodaf/midiserial/internal/scheduler"
	"github.com/leandrodaf/midiserial/sdk/contracts"
	"github.com/leandrodaf/midiserial/sdk/midi"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	transport  string
	inputPort  string
	outputPort string
	baudRate   int
	logLevel   string
	logFile    string
	serveAddr  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midiserial",
	Short: "Send and receive MIDI over a serial line",
	Long: `midiserial drives a MIDI-over-serial link at 31250 baud.

Examples:
  midiserial ports
  midiserial monitor --in /dev/ttyUSB0
  midiserial send note-on 60 127 1 --out /dev/ttyUSB0
  midiserial play 60 127 100 1 --out /dev/ttyUSB0
  midiserial serve --in /dev/ttyUSB0 --out /dev/ttyUSB0 --addr :8080`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available input and output endpoints",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print received Note On, Note Off and Control Change messages",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single message",
}

var sendNoteOnCmd = &cobra.Command{
	Use:   "note-on <note> <velocity> <channel>",
	Short: "Send Note On (channel 1-16)",
	Args:  cobra.ExactArgs(3),
	RunE:  runSend(func(c contracts.Transceiver, a []uint8) error { return c.SendNoteOn(a[0], a[1], a[2]) }),
}

var sendNoteOffCmd = &cobra.Command{
	Use:   "note-off <note> <velocity> <channel>",
	Short: "Send Note Off (channel 1-16)",
	Args:  cobra.ExactArgs(3),
	RunE:  runSend(func(c contracts.Transceiver, a []uint8) error { return c.SendNoteOff(a[0], a[1], a[2]) }),
}

var sendCCCmd = &cobra.Command{
	Use:   "cc <controller> <value> <channel>",
	Short: "Send Control Change (channel 1-16)",
	Args:  cobra.ExactArgs(3),
	RunE:  runSend(func(c contracts.Transceiver, a []uint8) error { return c.SendControlChange(a[0], a[1], a[2]) }),
}

var playCmd = &cobra.Command{
	Use:   "play <note> <velocity> <duration-ms> <channel>",
	Short: "Send Note On, then Note Off after the duration",
	Args:  cobra.ExactArgs(4),
	RunE:  runPlay,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the send API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&transport, "transport", "t", contracts.SerialTransport, "link transport: serial or host")
	pf.StringVar(&inputPort, "in", "", "input endpoint (serial device path or host MIDI source)")
	pf.StringVar(&outputPort, "out", "", "output endpoint (serial device path or host MIDI destination)")
	pf.IntVar(&baudRate, "baud", contracts.MIDIBaudRate, "serial line rate")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")

	sendCmd.AddCommand(sendNoteOnCmd, sendNoteOffCmd, sendCCCmd)
	rootCmd.AddCommand(portsCmd, monitorCmd, sendCmd, playCmd, serveCmd)
}

func parseLevel(s string) (contracts.LogLevel, error) {
	switch s {
	case "debug":
		return contracts.DebugLevel, nil
	case "info":
		return contracts.InfoLevel, nil
	case "warn":
		return contracts.WarnLevel, nil
	case "error":
		return contracts.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func newClient(extra ...contracts.Option) (contracts.Transceiver, contracts.Logger, error) {
	level, err := parseLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewZapLogger()
	opts := append([]contracts.Option{
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
		contracts.WithLogFilePath(logFile),
		contracts.WithTransport(transport),
		contracts.WithEndpoints(inputPort, outputPort),
		contracts.WithBaudRate(baudRate),
	}, extra...)
	client, err := midi.NewMIDIClient(opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Start(); err != nil {
		return nil, nil, err
	}
	return client, log, nil
}

func parseDataArgs(args []string) ([]uint8, error) {
	out := make([]uint8, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i+1, a, err)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

func runPorts(cmd *cobra.Command, args []string) error {
	inputs, outputs, err := midi.ListEndpoints(transport)
	if err != nil {
		return err
	}
	if len(inputs) == 0 && len(outputs) == 0 {
		fmt.Println("No endpoints found.")
		return nil
	}
	fmt.Println("Inputs:")
	for i, name := range inputs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("Outputs:")
	for i, name := range outputs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if inputPort == "" {
		return fmt.Errorf("--in is required")
	}
	client, log, err := newClient()
	if err != nil {
		return err
	}
	defer client.Stop()
	defer log.Sync()

	show := func(kind string) contracts.Handler {
		return func(channel, data1, data2 uint8) {
			fmt.Printf("%-14s ch=%-2d %3d %3d\n", kind, channel+1, data1, data2)
		}
	}
	client.OnNoteOn(show("NoteOn"))
	client.OnNoteOff(show("NoteOff"))
	client.OnControlChange(show("ControlChange"))

	fmt.Println("Listening for MIDI... Press Ctrl+C to exit.")
	waitForSignal()
	return nil
}

func runSend(send func(contracts.Transceiver, []uint8) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		values, err := parseDataArgs(args)
		if err != nil {
			return err
		}
		client, log, err := newClient()
		if err != nil {
			return err
		}
		defer client.Stop()
		defer log.Sync()
		return send(client, values)
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	duration, err := strconv.Atoi(args[2])
	if err != nil || duration < 0 {
		return fmt.Errorf("invalid duration %q", args[2])
	}
	values, err := parseDataArgs([]string{args[0], args[1], args[3]})
	if err != nil {
		return err
	}

	sched := scheduler.NewRealTime()
	client, log, err := newClient(contracts.WithScheduler(sched))
	if err != nil {
		return err
	}
	defer client.Stop()
	defer log.Sync()

	if err := client.PlayTimedNote(values[0], values[1], time.Duration(duration)*time.Millisecond, values[2]); err != nil {
		return err
	}
	sched.Wait()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	client, log, err := newClient()
	if err != nil {
		return err
	}
	defer client.Stop()
	defer log.Sync()

	errCh := make(chan error, 1)
	go func() { errCh <- api.NewServer(client, log).Run(serveAddr) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sig:
		return nil
	}
}
