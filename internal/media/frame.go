package media

import "time"

// FrameBytes returns the byte size of one raw RGB24 frame.
func FrameBytes(width, height int) int {
	return width * height * 3
}

// A Frame is a single decoded raw RGB24 video frame. Frames are treated as
// immutable once constructed; readers receive the same underlying byte slice
// and must not modify it.
type Frame struct {
	Width  int
	Height int

	// Raw pixel data, width*height*3 bytes, row-major RGB24.
	Data []byte

	// Arrival time as observed by the reader loop.
	Timestamp time.Time
}

// NewFrame copies data into a freshly allocated frame stamped with the
// current time.
func NewFrame(width, height int, data []byte) *Frame {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Frame{
		Width:     width,
		Height:    height,
		Data:      buf,
		Timestamp: time.Now(),
	}
}
