// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/midonet/internal/coordinator"
	"grimm.is/midonet/internal/conncache/memcache"
	"grimm.is/midonet/internal/datapath"
	"grimm.is/midonet/internal/logging"
	"grimm.is/midonet/internal/topology/static"
)

// simulateRequest is the HTTP demo server's request body for POST
// /api/simulate: a hex-encoded Ethernet frame arriving on a named fixture
// port.
type simulateRequest struct {
	InputPort string `json:"input_port"`
	FrameHex  string `json:"frame_hex"`
}

type simulateResponse struct {
	Result string   `json:"result"`
	Tags   []string `json:"tags,omitempty"`
}

// runServer starts the demo HTTP server, serving /api/simulate and
// /metrics until interrupted.
func runServer(addr string, coord *coordinator.Coordinator, topo *static.Topology, log *logging.Logger) error {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/api/simulate", simulateHandler(coord, topo, log)).Methods("POST")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("midonet-sim listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()

	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func simulateHandler(coord *coordinator.Coordinator, topo *static.Topology, log *logging.Logger) http.HandlerFunc {
	cc := memcache.New()
	return func(w http.ResponseWriter, r *http.Request) {
		var req simulateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		port, ok := topo.PortByLabel(req.InputPort)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown input port %q", req.InputPort), http.StatusBadRequest)
			return
		}
		frame, err := hex.DecodeString(req.FrameHex)
		if err != nil {
			http.Error(w, "frame_hex: "+err.Error(), http.StatusBadRequest)
			return
		}

		match, err := datapath.Decode(frame, port)
		if err != nil {
			http.Error(w, "decode: "+err.Error(), http.StatusBadRequest)
			return
		}

		result := coord.Simulate(r.Context(), match, &port, nil, true, cc, nil, frame)
		resp := simulateResponse{Result: result.Tag.String(), Tags: result.Tags}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// runSimulateOnce decodes a single hex-encoded frame and prints the
// coordinator's SimulationResult for one-shot CLI use.
func runSimulateOnce(coord *coordinator.Coordinator, topo *static.Topology, portLabel, frameHex string) {
	port, ok := topo.PortByLabel(portLabel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown input port %q\n", portLabel)
		os.Exit(1)
	}
	frame, err := hex.DecodeString(frameHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "frame hex: %v\n", err)
		os.Exit(1)
	}
	match, err := datapath.Decode(frame, port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode: %v\n", err)
		os.Exit(1)
	}

	cc := memcache.New()
	result := coord.Simulate(context.Background(), match, &port, nil, true, cc, nil, frame)
	fmt.Printf("result: %s\n", result.Tag)
	if len(result.Tags) > 0 {
		fmt.Printf("tags: %v\n", result.Tags)
	}
	if result.Tag == coordinator.ResultAddVirtualWildcardFlow {
		fmt.Printf("idle_expire_ms=%d hard_expire_ms=%d actions=%d\n",
			result.Flow.IdleExpireMillis, result.Flow.HardExpireMillis, len(result.Flow.Actions))
	}
}
