package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_Overlap(t *testing.T) {
	a := New(3)
	assert.Equal(t, 3, a.Stride())
	assert.Equal(t, []uint16{0, 0, 0, 0, 0, 0}, a.Window())

	w, err := a.Push([]uint16{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 0, 0, 1, 2, 3}, w)

	w, err = a.Push([]uint16{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5, 6}, w)

	w, err = a.Push([]uint16{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, []uint16{4, 5, 6, 7, 8, 9}, w)
}

func TestPush_DoesNotRetainInput(t *testing.T) {
	a := New(2)
	in := []uint16{10, 20}

	_, err := a.Push(in)
	require.NoError(t, err)
	in[0] = 99

	assert.Equal(t, []uint16{0, 0, 10, 20}, a.Window())
}

func TestPush_WrongLength(t *testing.T) {
	a := New(4)

	w, err := a.Push([]uint16{1, 2})
	assert.Nil(t, w)
	assert.True(t, errors.Is(err, ErrStrideLength))
	assert.Equal(t, make([]uint16, 8), a.Window(), "window is untouched on error")
}

func TestPrimed(t *testing.T) {
	a := New(2)
	assert.False(t, a.Primed())

	_, err := a.Push([]uint16{1, 2})
	require.NoError(t, err)
	assert.False(t, a.Primed(), "first half still holds the initial zeros")

	_, err = a.Push([]uint16{3, 4})
	require.NoError(t, err)
	assert.True(t, a.Primed())

	_, err = a.Push([]uint16{1})
	require.Error(t, err)
	assert.True(t, a.Primed())
}
