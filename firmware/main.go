//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"strconv"
	"time"
)

var (
	adcMic machine.ADC
	uart   = machine.UART0

	// ADC averaging - running sum over OVERSAMPLE_RATIO conversions
	micSum uint32

	// Output batch
	lineBuffer [4 + SAMPLES_PER_LINE*5 + 1]byte
	lineLen    int
	lineCount  int

	// Timing
	nextSample time.Time

	// Serial buffer for reading lines
	serialBuffer [4]byte
	serialPos    int
)

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_LED.Low()

	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})
	adcMic = machine.ADC{Pin: PIN_ADC}
	adcMic.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	resetLine()
	nextSample = time.Now()

	for {
		processSerial()

		now := time.Now()
		if now.Before(nextSample) {
			continue
		}
		nextSample = nextSample.Add(SAMPLE_INTERVAL_NS)
		if now.Sub(nextSample) > time.Millisecond {
			// Fell behind (e.g. while flushing a line), resynchronize
			nextSample = now
		}

		appendSample(readAveraged())
		if lineCount == SAMPLES_PER_LINE {
			flushLine()
		}
	}
}

// readAveraged takes OVERSAMPLE_RATIO back-to-back conversions and returns
// their mean.
func readAveraged() uint16 {
	micSum = 0
	for range OVERSAMPLE_RATIO {
		// Get returns a 16-bit left-aligned value
		micSum += uint32(adcMic.Get() >> (16 - ADC_RESOLUTION))
	}
	return uint16(micSum / OVERSAMPLE_RATIO)
}

func resetLine() {
	lineLen = copy(lineBuffer[:], "adc:")
	lineCount = 0
}

func appendSample(code uint16) {
	if lineCount > 0 {
		lineBuffer[lineLen] = ' '
		lineLen++
	}
	lineLen += len(strconv.AppendUint(lineBuffer[lineLen:lineLen], uint64(code), 10))
	lineCount++
}

func flushLine() {
	lineBuffer[lineLen] = '\n'
	uart.Write(lineBuffer[:lineLen+1])
	resetLine()
}

// processSerial handles indicator commands from the host: "1" lights the
// LED, "0" turns it off.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos == 1 {
				setIndicator(serialBuffer[0] == '1')
			}
			serialPos = 0
			continue
		}

		// Ignore whitespace
		if data == ' ' || data == '\t' {
			continue
		}

		if data == '0' || data == '1' {
			if serialPos < len(serialBuffer) {
				serialBuffer[serialPos] = data
				serialPos++
			}
		} else {
			// Invalid character - reset buffer
			serialPos = 0
		}
	}
}

func setIndicator(on bool) {
	if on {
		PIN_LED.High()
	} else {
		PIN_LED.Low()
	}
}
