// Command dispenser-sim runs the dispenser controller on simulated pins
// and an emulated EEPROM, serving the line protocol over a serial device
// or stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"dispenser/core"
	"dispenser/host/metrics"
	"dispenser/host/serial"
	"dispenser/host/telemetry"
	"dispenser/protocol"
	"dispenser/standalone"
	"dispenser/standalone/config"
	"dispenser/standalone/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "Machine configuration JSON file")
	echo       = flag.Bool("echo", false, "Echo received bytes (stdio mode)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.Host.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol in stdio mode
	logger.SetOutput(os.Stderr)
	log := logrus.NewEntry(logger)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("dispenser-sim failed")
		os.Exit(1)
	}
}

func run(cfg *config.MachineConfig, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eeprom := store.NewMemoryEEPROM(cfg.EEPROMAddress, cfg.EEPROMSize)
	if err := loadImage(eeprom, cfg.Host.EEPROMFile); err != nil {
		return err
	}
	defer saveImage(eeprom, cfg.Host.EEPROMFile, log)

	gpio := core.NewMemoryGPIO()
	ctrl, err := standalone.NewWithConfig(cfg, gpio,
		store.NewEEPROM(eeprom, cfg.EEPROMAddress, cfg.EEPROMSize),
		core.SystemClock{}, log)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Host.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}
		ctrl.AddObserver(m)
		srv := metrics.NewServer(ctrl, reg, log)
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Host.MetricsAddr)
		})
	}

	if cfg.Host.MQTTBroker != "" {
		client, err := telemetry.Connect(telemetry.ClientConfig{
			Broker:   cfg.Host.MQTTBroker,
			ClientID: "dispenser-sim",
		}, log)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub := telemetry.NewPublisher(client, cfg.Host.MQTTTopic, nil, log)
		ctrl.AddObserver(pub)
		g.Go(func() error {
			return pub.Start(ctx)
		})
	}

	rw, closer, err := openStream(cfg)
	if err != nil {
		return err
	}
	transport := protocol.NewTransport(rw, ctrl.HandleLine, log)
	transport.SetEcho(cfg.Host.Serial != "" || *echo)

	g.Go(func() error {
		return ctrl.Run(ctx)
	})

	// Serve is not joined: a blocked stdin read cannot be interrupted.
	// End of input stops everything else.
	serveCtx, cancelServe := context.WithCancel(ctx)
	go func() {
		defer stop()
		if err := transport.Serve(serveCtx); err != nil && serveCtx.Err() == nil {
			log.WithError(err).Error("transport stopped")
		}
	}()
	defer cancelServe()
	if closer != nil {
		defer closer.Close()
	}

	err = g.Wait()
	log.WithFields(logrus.Fields{"failures": ctrl.Diagnostics().Total()}).Info("shutdown")
	return err
}

type stdio struct {
	io.Reader
	io.Writer
}

func openStream(cfg *config.MachineConfig) (io.ReadWriter, io.Closer, error) {
	if cfg.Host.Serial == "" {
		return stdio{os.Stdin, os.Stdout}, nil, nil
	}
	scfg := serial.DefaultConfig(cfg.Host.Serial)
	if cfg.Host.Baud > 0 {
		scfg.Baud = cfg.Host.Baud
	}
	port, err := serial.Open(scfg)
	if err != nil {
		return nil, nil, err
	}
	return port, port, nil
}

func loadImage(eeprom *store.MemoryEEPROM, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return eeprom.LoadImage(f)
}

func saveImage(eeprom *store.MemoryEEPROM, path string, log *logrus.Entry) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.WithError(err).Error("save EEPROM image")
		return
	}
	defer f.Close()
	if err := eeprom.SaveImage(f); err != nil {
		log.WithError(err).Error("save EEPROM image")
	}
}
