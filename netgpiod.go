package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"gregoryjjb/netgpio/gpio"
	"gregoryjjb/netgpio/netgpio"
	"gregoryjjb/netgpio/pinbank"
)

func init() {
	InitializeLogger()
}

// Populated by ldflags
var (
	version            string
	buildUnixTimestamp string
	commitHash         string
)

func main() {
	ts, _ := strconv.ParseInt(buildUnixTimestamp, 10, 64)
	buildTime := time.Unix(ts, 0)

	versionFlag := flag.Bool("version", false, "Print version")
	systemdFlag := flag.Bool("systemd", false, "Print systemd service file")
	var flags Flags
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.BoolVar(&flags.Simulate, "simulate", false, "Use simulated GPIO registers")
	flag.Parse()

	if *versionFlag {
		fmt.Println("netgpiod version:", version)
		fmt.Println("Built on:", buildTime)
		fmt.Println("Commit hash:", commitHash)
		return
	}

	if *systemdFlag {
		if err := WriteServiceFile(os.Stdout, flags.ConfigPath); err != nil {
			log.Fatal().Err(err).Msg("Could not render service file")
		}
		return
	}

	hostFS, err := NewOSFS()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not resolve working directory")
	}
	config, err := NewConfig(hostFS, flags, os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Config initialization failed")
	}
	if err := SetLogLevel(config.LogLevel()); err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}

	log.Info().
		Str("version", version).
		Str("build_timestamp", buildTime.Format(time.RFC3339)).
		Str("commit_hash", commitHash).
		Str("config", config.Path()).
		Msg("Initializing netgpiod")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, BuildInfo{
		Version:   version,
		BuildTime: buildTime.Format(time.RFC3339),
		Commit:    commitHash,
	}); err != nil {
		log.Fatal().Err(err).Msg("netgpiod stopped with error")
	}
}

func run(ctx context.Context, config *Config, build BuildInfo) error {
	desc, err := config.Description()
	if err != nil {
		return fmt.Errorf("load description: %w", err)
	}

	driver, err := gpio.Open(config.Driver())
	if err != nil {
		return fmt.Errorf("open %s driver: %w", config.DriverName(), err)
	}

	bank, err := pinbank.Configure(desc, config.Pinout(), driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("configure pin bank: %w", err)
	}
	defer func() {
		if err := bank.Close(); err != nil {
			log.Warn().Err(err).Msg("Pin bank close failed")
		}
	}()

	controller := netgpio.New(bank,
		netgpio.WithSettleDelay(config.SettleDelay()),
		netgpio.WithHistory(config.History()),
	)

	errs := make(chan error, 2)
	if path := config.FifoPath(); path != "" {
		go func() {
			errs <- ServeFifo(ctx, path, controller)
		}()
	}
	go func() {
		errs <- StartServer(ctx, config.Address(), NewRouter(Device{
			Controller: controller,
			Pins:       bank.Pins(),
			Driver:     config.DriverName(),
		}, build))
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		return nil
	case err := <-errs:
		if err == nil && ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("endpoint exited")
		}
		return err
	}
}
