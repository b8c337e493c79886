// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command midonet-sim runs the per-packet simulation coordinator against a
// static HCL topology fixture, either as an HTTP demo server or as a
// one-shot CLI that simulates a single synthetic packet and prints the
// result.
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/midonet/internal/coordinator"
	"grimm.is/midonet/internal/coordmetrics"
	"grimm.is/midonet/internal/logging"
	"grimm.is/midonet/internal/packetctx"
	"grimm.is/midonet/internal/topology"
	"grimm.is/midonet/internal/topology/static"
)

func main() {
	fixturePath := flag.String("fixture", "", "Path to HCL topology fixture file")
	listen := flag.String("listen", ":8080", "HTTP listen address in server mode")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	log := logging.New(logging.Config{Level: parseLevel(*logLevel), Output: os.Stderr}).WithComponent("midonet-sim")

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: midonet-sim -fixture <path> [server|simulate ...]")
		os.Exit(2)
	}

	topo, err := static.LoadFile(*fixturePath)
	if err != nil {
		log.Fatal("failed to load topology fixture", "error", err, "path", *fixturePath)
	}

	metrics := coordmetrics.NewMetrics()
	metrics.Register()

	coord := coordinator.New(topology.NewDedup(topo), topo, nil, loggingCallbackRunner{log}, metrics, coordinator.DefaultTunables())

	args := flag.Args()
	subcmd := "server"
	if len(args) > 0 {
		subcmd = args[0]
	}

	switch subcmd {
	case "server":
		if err := runServer(*listen, coord, topo, log); err != nil {
			log.Fatal("server failed", "error", err)
		}
	case "simulate":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: midonet-sim -fixture <path> simulate <input-port-label> <frame-hex>")
			os.Exit(2)
		}
		runSimulateOnce(coord, topo, args[1], args[2])
	default:
		log.Fatal("unknown subcommand", "subcommand", subcmd)
	}
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// loggingCallbackRunner runs flow-removed callbacks by logging them; a real
// deployment would look the handle up in whatever registry owns the
// callback's side effect.
type loggingCallbackRunner struct {
	log *logging.Logger
}

func (r loggingCallbackRunner) Run(cb packetctx.FlowRemovedCallback) {
	r.log.Debug("flow removed callback fired", "handle", cb.Handle)
}
