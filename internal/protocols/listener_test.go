package protocols

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransportLine(t *testing.T) {
	connects := []string{
		"[rtmp @ 0x5555] Handshake performed",
		"[srt] client connected from 192.168.1.30",
		"Stream mapping:",
		"connection accepted",
	}
	for _, line := range connects {
		assert.Equal(t, senderConnected, classifyTransportLine(line), line)
	}

	disconnects := []string{
		"[rtmp @ 0x5555] Connection closed",
		"av_interleaved_write_frame(): Broken pipe",
		"srt: peer disconnected",
		"pipe:0: End of file",
	}
	for _, line := range disconnects {
		assert.Equal(t, senderDisconnected, classifyTransportLine(line), line)
	}

	noise := []string{
		"frame=  142 fps= 30 q=-0.0 size=  108000kB",
		"Input #0, flv, from 'rtmp://0.0.0.0:2935/live/stream?listen=1':",
	}
	for _, line := range noise {
		assert.Equal(t, transportNoise, classifyTransportLine(line), line)
	}
}

// "Connection closed" contains the substring "connect"; it must still be
// classified as a disconnect.
func TestClassifyDisconnectBeatsConnect(t *testing.T) {
	assert.Equal(t, senderDisconnected,
		classifyTransportLine("rtmp connection closed by peer"))
}

func TestDiagBufferLines(t *testing.T) {
	b := newDiagBuffer(8)
	b.put("first line")
	b.put("second line")
	b.close()

	sc := bufio.NewScanner(b)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.NoError(t, sc.Err())
	assert.Equal(t, []string{"first line", "second line"}, lines)
}

func TestDiagBufferDropsOldest(t *testing.T) {
	b := newDiagBuffer(2)
	b.put("one")
	b.put("two")
	b.put("three") // evicts "one"
	b.close()

	sc := bufio.NewScanner(b)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.Equal(t, []string{"two", "three"}, lines)
}

func TestDiagBufferBlocksUntilLine(t *testing.T) {
	b := newDiagBuffer(8)

	got := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(b)
		if sc.Scan() {
			got <- sc.Text()
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.put("late line")

	select {
	case line := <-got:
		assert.Equal(t, "late line", line)
	case <-time.After(time.Second):
		t.Fatal("reader never observed the line")
	}
	b.close()
}

func TestDiagBufferCloseIdempotent(t *testing.T) {
	b := newDiagBuffer(1)
	b.close()
	b.close()

	n, err := b.Read(make([]byte, 16))
	assert.Equal(t, 0, n)
	assert.Error(t, err)
}

func TestRawVideoArgs(t *testing.T) {
	args := rawVideoArgs(640, 480)
	assert.Contains(t, args, "rawvideo")
	assert.Contains(t, args, "rgb24")
	assert.Contains(t, args, "640x480")
	assert.Contains(t, args, "pipe:1")
}
