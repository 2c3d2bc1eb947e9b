//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_RATE        = 12800 // Averaged samples per second sent to the host
	OVERSAMPLE_RATIO   = 16    // Conversions averaged into one sample before sending
	SAMPLES_PER_LINE   = 32    // Averaged samples batched in one "adc:" line
	SAMPLE_INTERVAL_NS = 1e9 / SAMPLE_RATE

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Speech indicator LED
	PIN_LED = machine.LED

	// Microphone amplifier output
	PIN_ADC = machine.A1

	// Serial configuration
	// Line format: "adc:<code> <code> ...\n", at most 5 bytes per code.
	// 12800 samples/sec * 5 bytes = 64,000 bytes/sec plus ~400 lines/sec of framing.
	// UART 8N1: 10 bits/byte = 644,000 baud minimum, 1,000,000 leaves ~50% headroom.
	// Averaging happens here, so the host uses serial.oversample_ratio (1) for this device.
	UART_BAUD_RATE = 1000000
)
