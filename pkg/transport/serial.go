package transport

import (
	"path/filepath"
	"sort"
	"time"

	"go.bug.st/serial"
)

// SerialPatterns are the device names listed by Ports.
var SerialPatterns = []string{
	"/dev/ttyACM*",
	"/dev/ttyUSB*",
	"/dev/cu.usbmodem*",
}

// Line settings of the keyboard's USB serial port.
const (
	SerialBaudRate    = 921600
	SerialReadTimeout = 100 * time.Millisecond
)

// Ports lists candidate serial devices of the keyboard.
func Ports() ([]string, error) {
	var ports []string
	for _, pattern := range SerialPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)
	return ports, nil
}

// OpenSerial opens a serial device in raw mode, 921600 8N1. A read
// returns no bytes after SerialReadTimeout without data.
func OpenSerial(dev string) (serial.Port, error) {
	port, err := serial.Open(dev, &serial.Mode{
		BaudRate: SerialBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(SerialReadTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
