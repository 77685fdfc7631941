// sentinel-plc runs a standalone pressure-vessel controller exposing its
// temperature and pressure registers over Modbus TCP. It stands in for the
// real controller in demos and tests.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"sentinelx/internal/plcsim"
)

func main() {
	addr := flag.String("addr", "localhost:5020", "Listen address for the Modbus TCP server")
	tick := flag.Duration("tick", 500*time.Millisecond, "Register update interval (e.g. 500ms, 2s)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[PLC] Pressure vessel controller listening on %s", *addr)
	if err := plcsim.New(*addr, *tick).Run(ctx); err != nil {
		log.Fatalf("Controller failed: %v", err)
	}
	log.Println("[PLC] Controller stopped.")
}
