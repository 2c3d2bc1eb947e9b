//go:build portaudio

package main

import "github.com/itohio/gokws/pkg/adc"

func newPortAudio(a *app) (adc.Device, error) {
	return adc.NewPortAudio(&a.cfg.Microphone, a.cfg.ConversionRate(), a.cfg.Sampling.ADCBits, a.logger), nil
}
