package output

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Indicator is a two-state speech status output.
type Indicator interface {
	Set() error
	Reset() error
}

// Switch is a device output that can be turned on or off.
type Switch interface {
	SetIndicator(on bool) error
}

// LogIndicator logs indicator transitions.
type LogIndicator struct {
	logger *slog.Logger
	mu     sync.Mutex
	on     bool
}

var _ Indicator = (*LogIndicator)(nil)

// NewLogIndicator creates an indicator that logs at debug level.
func NewLogIndicator(logger *slog.Logger) *LogIndicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogIndicator{logger: logger}
}

// Set turns the indicator on.
func (l *LogIndicator) Set() error {
	l.change(true)
	return nil
}

// Reset turns the indicator off.
func (l *LogIndicator) Reset() error {
	l.change(false)
	return nil
}

// On reports the current state.
func (l *LogIndicator) On() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *LogIndicator) change(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return
	}
	l.on = on
	l.logger.Debug("indicator", "on", on)
}

// DeviceIndicator forwards state changes to a device output. Repeated
// requests for the current state are not sent.
type DeviceIndicator struct {
	sw    Switch
	mu    sync.Mutex
	known bool
	on    bool
}

var _ Indicator = (*DeviceIndicator)(nil)

// NewDeviceIndicator creates an indicator driving sw.
func NewDeviceIndicator(sw Switch) *DeviceIndicator {
	return &DeviceIndicator{sw: sw}
}

// Set turns the device output on.
func (d *DeviceIndicator) Set() error {
	return d.change(true)
}

// Reset turns the device output off.
func (d *DeviceIndicator) Reset() error {
	return d.change(false)
}

func (d *DeviceIndicator) change(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.known && d.on == on {
		return nil
	}
	if err := d.sw.SetIndicator(on); err != nil {
		d.known = false
		return err
	}
	d.known = true
	d.on = on
	return nil
}

// Blink toggles ind n times with the given period and leaves it off.
func Blink(ctx context.Context, ind Indicator, n int, period time.Duration) error {
	half := period / 2
	for i := 0; i < n; i++ {
		if err := ind.Set(); err != nil {
			return err
		}
		if err := sleep(ctx, half); err != nil {
			_ = ind.Reset()
			return err
		}
		if err := ind.Reset(); err != nil {
			return err
		}
		if err := sleep(ctx, half); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
