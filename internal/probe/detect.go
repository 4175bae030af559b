package probe

import "fmt"

// Result describes a detected probe.
type Result struct {
	Port   string
	Device string
}

// Detect scans the available serial ports for a responding probe and
// returns the first hit.
func Detect(baudRate int) (*Result, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, name := range ports {
		r, err := tryPort(name, baudRate)
		if err != nil {
			lastErr = err
			continue
		}
		return r, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no probe found (last error: %w)", lastErr)
	}
	return nil, fmt.Errorf("no probe found")
}

// ListProbes scans every port and returns all responding probes.
func ListProbes(baudRate int) ([]Result, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	var results []Result
	for _, name := range ports {
		if r, err := tryPort(name, baudRate); err == nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

func tryPort(portName string, baudRate int) (*Result, error) {
	p, err := Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return &Result{Port: p.PortName(), Device: p.Device()}, nil
}
