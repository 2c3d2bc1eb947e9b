//go:build !portaudio

package main

import (
	"errors"

	"github.com/itohio/gokws/pkg/adc"
)

func newPortAudio(*app) (adc.Device, error) {
	return nil, errors.New("kws was built without PortAudio support, rebuild with -tags portaudio")
}
