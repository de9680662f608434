// SPDX-License-Identifier: Apache-2.0

// stratis-dbus-monitor watches a storage daemon's D-Bus signals and, on
// interrupt, checks them for consistency with the daemon's reported
// properties.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stratis-storage/testing/logger"
	"github.com/stratis-storage/testing/monitor"
	"github.com/stratis-storage/testing/pkg/buildinfo"
	"github.com/stratis-storage/testing/pkg/cli"
	"github.com/stratis-storage/testing/pkg/confopt"
	"github.com/stratis-storage/testing/pkg/executable"
)

const (
	exitClean          = 0 // no discrepancies found
	exitDiscrepancies  = 1 // discrepancies found and reported
	exitUsage          = 2 // bad arguments or profile
	exitCallbackErrors = 3 // signal handler errors, no check attempted
	exitCheckFailed    = 4 // the final check itself failed
)

func main() {
	os.Exit(run())
}

func run() int {
	opt := parseCLI()

	if opt.Version {
		fmt.Printf("%s, version: %s\n", executable.Name, buildinfo.Version)
		return exitClean
	}

	if opt.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	cfg, err := buildConfig(opt)
	if err != nil {
		logger.Error(err)
		return exitUsage
	}

	mon, err := monitor.New(cfg)
	if err != nil {
		logger.Error(err)
		return exitUsage
	}
	defer mon.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("monitoring service %s, manager object %s", cfg.Service, cfg.Manager)

	if err := mon.Run(ctx); err != nil {
		logger.Error(err)
		return exitCheckFailed
	}

	// Restore default signal handling so a second interrupt during the
	// final check kills the process.
	stop()

	if errs := mon.CallbackErrors(); len(errs) > 0 {
		for _, err := range errs {
			fmt.Println(err)
		}
		return exitCallbackErrors
	}

	diffs, err := mon.Check(context.Background())
	if err != nil {
		fmt.Println(err)
		return exitCheckFailed
	}

	if len(diffs) == 0 {
		return exitClean
	}

	for _, diff := range diffs {
		fmt.Println(diff)
	}
	return exitDiscrepancies
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(os.Args[1:])
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(exitClean)
		}
		os.Exit(exitUsage)
	}
	return opt
}

func buildConfig(opt *cli.Option) (monitor.Config, error) {
	var cfg monitor.Config
	var err error

	if opt.ConfigPath != "" {
		if cfg, err = monitor.LoadConfig(opt.ConfigPath); err != nil {
			return cfg, err
		}
	}

	if opt.Args.Service != "" {
		cfg.Service = opt.Args.Service
	}
	if opt.Args.Manager != "" {
		cfg.Manager = opt.Args.Manager
	}
	cfg.TopInterfaces = append(cfg.TopInterfaces, opt.TopInterfaces...)
	if opt.OnlyCheck != "" {
		cfg.OnlyCheck = opt.OnlyCheck
	}
	if opt.Timeout != "" {
		timeout, err := confopt.ParseDuration(opt.Timeout)
		if err != nil {
			return cfg, err
		}
		cfg.Timeout = timeout
	}

	return cfg, nil
}
