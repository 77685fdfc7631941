// Modbus TCP client for the controller telemetry link
package plc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Register layout of the controller: two consecutive holding registers at the
// base address, temperature then pressure, one fixed unit ID.
const (
	baseAddress   = 0
	registerCount = 2
)

// ErrProtocol marks a Modbus-level failure (exception response or malformed
// payload). The link itself is still up; callers log a comms error and keep
// polling without changing link status.
var ErrProtocol = errors.New("modbus protocol error")

// Reading is one decoded telemetry sample.
type Reading struct {
	Temperature float64 // degrees Celsius, register value / 100
	Pressure    float64 // PSI, register value / 10
}

// Link is the reconnectable control link consumed by the monitor loop.
type Link interface {
	Connect() error
	Read() (Reading, error)
	Close() error
}

// Client polls the controller over Modbus TCP.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// NewClient builds a client for the controller at addr:port. timeout bounds
// every request on the wire.
func NewClient(addr string, port int, unitID byte, timeout time.Duration) *Client {
	h := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", addr, port))
	h.Timeout = timeout
	h.SlaveId = unitID
	return &Client{handler: h, client: modbus.NewClient(h)}
}

// Connect dials the controller. Safe to call again after a transport failure.
func (c *Client) Connect() error {
	return c.handler.Connect()
}

// Read fetches and decodes both telemetry registers. Modbus exception
// responses come back wrapped in ErrProtocol; anything else is a transport
// error.
func (c *Client) Read() (Reading, error) {
	data, err := c.client.ReadHoldingRegisters(baseAddress, registerCount)
	if err != nil {
		var mbErr *modbus.ModbusError
		if errors.As(err, &mbErr) {
			return Reading{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return Reading{}, err
	}
	return Decode(data)
}

// Close severs the TCP connection to the controller.
func (c *Client) Close() error {
	return c.handler.Close()
}

// Decode converts the raw big-endian register payload into engineering units.
// The divisors are the controller's fixed-point encoding, not arbitrary
// scaling: registers [2200, 450] mean 22.00 C and 45.0 PSI.
func Decode(data []byte) (Reading, error) {
	if len(data) < registerCount*2 {
		return Reading{}, fmt.Errorf("%w: short payload (%d bytes)", ErrProtocol, len(data))
	}
	rawTemp := binary.BigEndian.Uint16(data[0:2])
	rawPres := binary.BigEndian.Uint16(data[2:4])
	return Reading{
		Temperature: float64(rawTemp) / 100,
		Pressure:    float64(rawPres) / 10,
	}, nil
}
