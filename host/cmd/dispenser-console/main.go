// Command dispenser-console is an operator console for a dispenser
// connected over serial.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"dispenser/host/link"
	"dispenser/host/serial"
	"dispenser/standalone/config"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	device  = flag.String("device", "", "Serial device path (default $DISPENSER_SERIAL)")
	baud    = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	noEcho  = flag.Bool("no-echo", false, "Device does not echo input")
	timeout = flag.Duration("timeout", 2*time.Minute, "Per-command response timeout")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Host.Serial = *device
	}
	if *baud > 0 {
		cfg.Host.Baud = *baud
	}
	if *verbose {
		cfg.Host.LogLevel = "debug"
	}
	logger, err := cfg.Host.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.SetOutput(os.Stderr)
	log := logrus.NewEntry(logger)

	if cfg.Host.Serial == "" {
		fmt.Fprintln(os.Stderr, "Error: no serial device (use -device or DISPENSER_SERIAL)")
		os.Exit(2)
	}

	scfg := serial.DefaultConfig(cfg.Host.Serial)
	if cfg.Host.Baud > 0 {
		scfg.Baud = cfg.Host.Baud
	}
	// A read timeout lets a pending response be abandoned with Ctrl-C
	scfg.ReadTimeout = 100
	port, err := serial.Open(scfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		log.WithError(err).Warn("flush failed")
	}

	client := link.NewClient(port, log)
	client.SetEcho(!*noEcho)

	editor := NewLineEditor()
	defer editor.Close()

	if editor.IsInteractive() {
		fmt.Printf("Connected to %s. Type 'help' for commands, 'quit' to exit.\n", cfg.Host.Serial)
	}
	if err := repl(editor, client, os.Stdout, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exchanger is the part of link.Client the console drives
type exchanger interface {
	Do(ctx context.Context, line string) ([]string, error)
}

// repl runs until quit or end of input. Per-command failures are printed
// and the loop continues; only input errors end it.
func repl(editor *LineEditor, client exchanger, out io.Writer, timeout time.Duration) error {
	for {
		line, err := editor.GetLine("dispenser> ")
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
		payload, err := client.Do(ctx, line)
		cancelTimeout()
		cancel()

		for _, l := range payload {
			fmt.Fprintln(out, l)
		}
		switch {
		case err == nil:
			fmt.Fprintln(out, "ok")
		case errors.Is(err, link.ErrParseFail):
			fmt.Fprintln(out, "parse fail (type 'help' for commands)")
		default:
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
