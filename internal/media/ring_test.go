package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func frameWithByte(b byte) *Frame {
	return NewFrame(2, 2, []byte{b, b, b, b, b, b, b, b, b, b, b, b})
}

func TestFrameRingEmpty(t *testing.T) {
	r := NewFrameRing(3)
	assert.Nil(t, r.Latest())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Empty(t, r.Snapshot())
}

func TestFrameRingCapacityClamped(t *testing.T) {
	assert.Equal(t, 1, NewFrameRing(0).Cap())
	assert.Equal(t, 1, NewFrameRing(-5).Cap())
}

func TestFrameRingEviction(t *testing.T) {
	const depth = 3
	r := NewFrameRing(depth)

	// Push more frames than the ring holds.
	for i := byte(0); i < 7; i++ {
		r.Push(frameWithByte(i))
	}

	assert.Equal(t, depth, r.Len())
	assert.Equal(t, byte(6), r.Latest().Data[0])

	snap := r.Snapshot()
	assert.Len(t, snap, depth)
	for j, f := range snap {
		assert.Equal(t, byte(4+j), f.Data[0], "oldest first")
	}
}

func TestFrameRingClear(t *testing.T) {
	r := NewFrameRing(2)
	r.Push(frameWithByte(1))
	r.Push(frameWithByte(2))

	r.Clear()
	assert.Nil(t, r.Latest())
	assert.Equal(t, 0, r.Len())

	// Ring is still usable after a clear.
	r.Push(frameWithByte(9))
	assert.Equal(t, byte(9), r.Latest().Data[0])
}

func TestNewFrameCopiesData(t *testing.T) {
	src := []byte{1, 2, 3}
	f := NewFrame(1, 1, src)
	src[0] = 99
	assert.Equal(t, byte(1), f.Data[0])
	assert.False(t, f.Timestamp.IsZero())
}

func TestFrameBytes(t *testing.T) {
	assert.Equal(t, 1280*720*3, FrameBytes(1280, 720))
}
