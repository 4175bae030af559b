package probe

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/ecufix/shflash/internal/slip"
)

// DefaultBaudRate is the probe link's default speed.
const DefaultBaudRate = 115200

const responseTimeout = 2 * time.Second

// Probe is a serial-attached bench probe implementing hw.Port. The port
// interface is infallible by design (on target the bus cannot fail), so
// link errors latch into a sticky error: once set, every access becomes
// a no-op and Err reports the first failure. Callers check Err after an
// operation completes.
type Probe struct {
	port     serial.Port
	portName string
	device   string
	rx       []byte
	err      error
}

// Open connects to a probe and pings it. The returned probe knows which
// target device it is wired to.
func Open(portName string, baudRate int) (*Probe, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	p := &Probe{port: port, portName: portName}
	device, err := p.ping()
	if err != nil {
		port.Close()
		return nil, err
	}
	p.device = device
	return p, nil
}

// Close closes the serial link.
func (p *Probe) Close() error { return p.port.Close() }

// PortName returns the serial port the probe is attached to.
func (p *Probe) PortName() string { return p.portName }

// Device returns the profile name of the target the probe reports.
func (p *Probe) Device() string { return p.device }

// Err returns the first link error since the last ClearErr, or nil.
func (p *Probe) Err() error { return p.err }

// ClearErr re-arms the probe after a link error.
func (p *Probe) ClearErr() { p.err = nil }

func (p *Probe) ping() (string, error) {
	resp, err := p.roundTrip(&Request{Op: OpPing})
	if err != nil {
		return "", fmt.Errorf("probe ping failed: %w", err)
	}
	if len(resp.Data) < 2 {
		return "", fmt.Errorf("short ping response: %d bytes", len(resp.Data))
	}
	if resp.Data[0] != protoVersion {
		return "", fmt.Errorf("probe protocol version %d, want %d", resp.Data[0], protoVersion)
	}
	return DeviceName(resp.Data[1]), nil
}

// roundTrip sends one request and waits for its reply.
func (p *Probe) roundTrip(req *Request) (*Response, error) {
	frame := slip.Frame(req.Encode())
	if _, err := p.port.Write(frame); err != nil {
		return nil, fmt.Errorf("probe write failed: %w", err)
	}

	deadline := time.Now().Add(responseTimeout)
	for time.Now().Before(deadline) {
		chunk := make([]byte, 256)
		n, err := p.port.Read(chunk)
		if n > 0 {
			p.rx = append(p.rx, chunk[:n]...)
		}
		if err != nil && n == 0 {
			continue
		}

		raw, rest := slip.Extract(p.rx)
		if raw == nil {
			continue
		}
		p.rx = rest
		resp, err := DecodeResponse(slip.Unframe(raw))
		if err != nil {
			return nil, err
		}
		if resp.Op != req.Op {
			return nil, fmt.Errorf("probe answered op 0x%02X to op 0x%02X", resp.Op, req.Op)
		}
		if !resp.OK() {
			return nil, fmt.Errorf("probe rejected op 0x%02X: status 0x%02X", req.Op, resp.Status)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("timeout waiting for probe response to op 0x%02X", req.Op)
}

// transact runs a round trip under the sticky-error regime.
func (p *Probe) transact(req *Request) *Response {
	if p.err != nil {
		return nil
	}
	resp, err := p.roundTrip(req)
	if err != nil {
		p.err = err
		return nil
	}
	return resp
}

func (p *Probe) Read8(addr uint32) uint8 {
	resp := p.transact(&Request{Op: OpRead8, Addr: addr})
	if resp == nil || len(resp.Data) < 1 {
		return 0
	}
	return resp.Data[0]
}

func (p *Probe) Write8(addr uint32, v uint8) {
	p.transact(&Request{Op: OpWrite8, Addr: addr, Data: []byte{v}})
}

func (p *Probe) Read32(addr uint32) uint32 {
	resp := p.transact(&Request{Op: OpRead32, Addr: addr})
	if resp == nil || len(resp.Data) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(resp.Data)
}

func (p *Probe) Write32(addr uint32, v uint32) {
	p.transact(&Request{Op: OpWrite32, Addr: addr, Data: binary.BigEndian.AppendUint32(nil, v)})
}

func (p *Probe) Write16(addr uint32, v uint16) {
	p.transact(&Request{Op: OpWrite16, Addr: addr, Data: binary.BigEndian.AppendUint16(nil, v)})
}

func (p *Probe) DisableInterrupts() uint32 {
	resp := p.transact(&Request{Op: OpIrqSave})
	if resp == nil || len(resp.Data) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(resp.Data)
}

func (p *Probe) RestoreInterrupts(state uint32) {
	p.transact(&Request{Op: OpIrqRestore, Data: binary.BigEndian.AppendUint32(nil, state)})
}

func (p *Probe) Wait(loops uint32) {
	p.transact(&Request{Op: OpWait, Data: binary.BigEndian.AppendUint32(nil, loops)})
}

// ListPorts returns the available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}
