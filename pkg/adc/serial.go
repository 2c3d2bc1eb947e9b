package adc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the firmware UART rate.
	DefaultBaudRate = 1000000
	// DefaultBits is the converter resolution of the firmware.
	DefaultBits = 12

	samplesPrefix = "adc:"
)

// errNotSamples marks firmware lines that carry no conversions.
var errNotSamples = errors.New("not a samples line")

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads conversions streamed by the sampler firmware. Each line
// holds a batch of space-separated codes prefixed with "adc:". Writing
// "1" or "0" lines drives the firmware's status LED.
type Serial struct {
	stream

	port     string
	baudRate int
	maxCode  uint16
	logger   *slog.Logger

	conn io.ReadWriteCloser
}

// NewSerial creates a device for the firmware on port.
func NewSerial(port string, baudRate, bits int, logger *slog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bits == 0 {
		bits = DefaultBits
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Serial{
		stream:   newStream(),
		port:     port,
		baudRate: baudRate,
		maxCode:  FullScale(bits),
		logger:   logger.With("device", "serial", "port", port),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts delivering conversions.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	h, _, err := d.start()
	if err != nil {
		port.Close()
		return err
	}
	d.conn = port

	go d.readSamples(port, h)

	return nil
}

// Close closes the port and waits for the reader to exit. The port is
// closed even when the reader already stopped on its own.
func (d *Serial) Close() error {
	d.mu.Lock()
	stopped := d.stop()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			d.logger.Warn("error closing serial port", "error", err)
		}
	}
	if stopped {
		<-d.done
	}
	return nil
}

// SetIndicator sends the LED command to the firmware.
func (d *Serial) SetIndicator(on bool) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	cmd := "0\n"
	if on {
		cmd = "1\n"
	}
	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send indicator command: %w", err)
	}
	return nil
}

// readSamples scans lines from r and hands every code to h.
func (d *Serial) readSamples(r io.Reader, h ConversionHandler) {
	defer d.finish()

	codes := make([]uint16, 0, 64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var err error
		codes, err = parseLine(codes[:0], scanner.Text(), d.maxCode)
		if err != nil {
			if !errors.Is(err, errNotSamples) {
				d.logger.Debug("failed to parse line", "line", scanner.Text(), "error", err)
			}
			continue
		}
		for _, c := range codes {
			h(c)
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
		d.logger.Error("error reading from serial port", "error", err)
	}
}

// parseLine appends the codes of a samples line to dst.
// Format: adc:<code> <code> ...
// Example: adc:2048 2051 2039
func parseLine(dst []uint16, line string, maxCode uint16) ([]uint16, error) {
	line = strings.TrimSpace(line)
	payload, ok := strings.CutPrefix(line, samplesPrefix)
	if !ok {
		return dst, errNotSamples
	}

	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return dst, fmt.Errorf("empty samples line")
	}
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return dst, fmt.Errorf("invalid code %q: %w", f, err)
		}
		if v > uint64(maxCode) {
			return dst, fmt.Errorf("code out of range: %d (max %d)", v, maxCode)
		}
		dst = append(dst, uint16(v))
	}
	return dst, nil
}
