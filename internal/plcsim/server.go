// Modbus TCP controller simulator with sensor drift
package plcsim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/tbrandon/mbserver"
)

// Baseline process values mirrored into holding registers 0 and 1 using the
// controller's fixed-point encoding (temperature *100, pressure *10).
const (
	baseTemperature = 22.0 // degrees Celsius
	basePressure    = 45.0 // PSI
)

// Jitter bounds for simulated sensor drift.
const (
	tempJitter = 0.15
	presJitter = 0.5
)

// Server emulates the industrial controller: a Modbus TCP endpoint whose two
// holding registers drift around the baseline like real sensors.
type Server struct {
	srv  *mbserver.Server
	addr string
	tick time.Duration
}

// New builds a simulator listening on addr, updating registers every tick.
func New(addr string, tick time.Duration) *Server {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	return &Server{srv: mbserver.NewServer(), addr: addr, tick: tick}
}

// Run binds the Modbus TCP listener and drifts the registers until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	temp, pres := JitterRegisters()
	s.srv.HoldingRegisters[0] = temp
	s.srv.HoldingRegisters[1] = pres

	if err := s.srv.ListenTCP(s.addr); err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	defer s.srv.Close()
	log.Printf("[PLCSim] modbus server active on %s", s.addr)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			temp, pres := JitterRegisters()
			s.srv.HoldingRegisters[0] = temp
			s.srv.HoldingRegisters[1] = pres
		case <-ctx.Done():
			log.Println("[PLCSim] shutting down")
			return nil
		}
	}
}

// JitterRegisters produces the next scaled register pair with industrial
// jitter applied to the baseline.
func JitterRegisters() (uint16, uint16) {
	temp := baseTemperature + (rand.Float64()*2-1)*tempJitter
	pres := basePressure + (rand.Float64()*2-1)*presJitter
	return uint16(temp * 100), uint16(pres * 10)
}
