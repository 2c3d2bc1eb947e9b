package main

import (
	"errors"
	"fmt"

	"github.com/itohio/gokws/pkg/adc"
)

// Device names accepted by --device.
const (
	deviceSerial    = "serial"
	deviceMock      = "mock"
	deviceWAV       = "wav"
	devicePortAudio = "portaudio"
)

// openDevice creates the named sampling device at the configured
// conversion rate. The device is not connected. The serial device brings its
// own oversample ratio, so openDevice must run before the recognizer is built.
func (a *app) openDevice(name string) (adc.Device, error) {
	if name == deviceSerial {
		a.cfg.Sampling.OversampleRatio = a.cfg.Serial.OversampleRatio
	}
	rate := a.cfg.ConversionRate()
	bits := a.cfg.Sampling.ADCBits

	switch name {
	case deviceSerial:
		return adc.NewSerial(a.cfg.Serial.Port, a.cfg.Serial.BaudRate, bits, a.logger), nil
	case deviceMock:
		return adc.NewMock(&a.cfg.Mock, rate, bits, a.logger), nil
	case deviceWAV:
		if a.cfg.WAV.Path == "" {
			return nil, errors.New("wav device needs a file, set wav.path or --wav")
		}
		dev, err := adc.NewWAV(a.fs, &a.cfg.WAV, rate, bits, a.logger)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case devicePortAudio:
		return newPortAudio(a)
	default:
		return nil, fmt.Errorf("unknown device %q", name)
	}
}
