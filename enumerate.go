package serial

import (
	"fmt"
	"strings"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortDetails describes one present port. The USB fields are empty for
// on-board UARTs.
type PortDetails struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Ports lists the logical names of the serial ports currently present, in
// platform order. No ports is an empty list, not an error.
func Ports() ([]string, error) {
	paths, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, logicalName(p))
	}
	return names, nil
}

// DetailedPorts is Ports with USB identification where available.
func DetailedPorts() ([]PortDetails, error) {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	details := make([]PortDetails, 0, len(list))
	for _, p := range list {
		details = append(details, PortDetails{
			Name:         logicalName(p.Name),
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return details, nil
}

func logicalName(path string) string {
	return strings.TrimPrefix(path, "/dev/")
}
