package adc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []uint16
		wantErr bool
		skip    bool
	}{
		{
			name: "single code",
			line: "adc:2048",
			want: []uint16{2048},
		},
		{
			name: "batch",
			line: "adc:2048 2051 2039 0 4095",
			want: []uint16{2048, 2051, 2039, 0, 4095},
		},
		{
			name: "trailing whitespace and CR",
			line: "adc:1 2 3 \r",
			want: []uint16{1, 2, 3},
		},
		{
			name: "other firmware output",
			line: "ready",
			skip: true,
		},
		{
			name:    "empty batch",
			line:    "adc:",
			wantErr: true,
		},
		{
			name:    "non-numeric code",
			line:    "adc:12 abc",
			wantErr: true,
		},
		{
			name:    "code out of range",
			line:    "adc:5000",
			wantErr: true,
		},
		{
			name:    "negative code",
			line:    "adc:-1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(nil, tt.line, FullScale(12))
			switch {
			case tt.skip:
				assert.True(t, errors.Is(err, errNotSamples))
			case tt.wantErr:
				assert.Error(t, err)
				assert.False(t, errors.Is(err, errNotSamples))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseLine_Appends(t *testing.T) {
	buf := make([]uint16, 0, 8)
	buf, err := parseLine(buf, "adc:1 2", 4095)
	require.NoError(t, err)
	buf, err = parseLine(buf, "adc:3", 4095)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3}, buf)
}

func TestSerial_ReadSamples(t *testing.T) {
	d := NewSerial("/dev/null", 0, 12, nil)

	var got []uint16
	input := "boot\nadc:10 20\nadc:bad\n\nadc:30\n"

	// Drive the reader directly with an in-memory stream.
	d.connected = true
	d.readSamples(strings.NewReader(input), func(raw uint16) {
		got = append(got, raw)
	})

	assert.Equal(t, []uint16{10, 20, 30}, got)
	assert.False(t, d.IsConnected())
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("Done was not closed after the stream ended")
	}
}

type fakePort struct {
	*strings.Reader
	closed int
}

func (p *fakePort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func TestSerial_CloseAfterStreamEnded(t *testing.T) {
	d := NewSerial("/dev/null", 0, 12, nil)
	port := &fakePort{Reader: strings.NewReader("adc:1 2 3\n")}

	// The port reached EOF before anyone called Close.
	d.conn = port
	d.connected = true
	d.readSamples(port, func(uint16) {})
	require.False(t, d.IsConnected())

	require.NoError(t, d.Close())
	assert.Equal(t, 1, port.closed)

	require.NoError(t, d.Close())
	assert.Equal(t, 1, port.closed, "the port is closed once")
}

func TestSerial_NotConnected(t *testing.T) {
	d := NewSerial("/dev/does-not-exist", 0, 0, nil)

	assert.False(t, d.IsConnected())
	assert.True(t, errors.Is(d.SetIndicator(true), ErrNotConnected))
	assert.NoError(t, d.Close())
	assert.Error(t, d.Connect())
}
