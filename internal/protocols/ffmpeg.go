package protocols

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Decoding is delegated to an external ffmpeg process. Adapters either run
// ffmpeg as the protocol listener itself (RTMP, SRT) or feed it demuxed
// H.264 over stdin (FLV).

const stopTimeout = 3 * time.Second

// findFFmpeg locates the ffmpeg binary: PATH first, then common install
// locations.
func findFFmpeg() (string, error) {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}

	common := []string{
		"/usr/local/bin/ffmpeg",
		"/usr/bin/ffmpeg",
		"/opt/homebrew/bin/ffmpeg",
		filepath.Join(os.Getenv("HOME"), "bin", "ffmpeg"),
	}
	for _, p := range common {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	return "", errors.New("ffmpeg not found; install it and ensure it is on PATH")
}

// rawVideoArgs returns the ffmpeg output arguments producing raw RGB24
// frames on stdout.
func rawVideoArgs(width, height int) []string {
	return []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", "30",
		"-flags", "low_delay",
		"-fflags", "nobuffer",
		"-an", "-sn",
		"pipe:1",
	}
}

// A frameChunker regroups an arbitrary byte stream into whole frames, one
// frame per Read call. A pipe read returns at most the kernel buffer, far
// less than a raw frame at typical geometries, so the decode process's
// stdout cannot be handed to the frame reader directly.
type frameChunker struct {
	src  io.Reader
	size int
}

func newFrameChunker(src io.Reader, size int) *frameChunker {
	return &frameChunker{src: src, size: size}
}

func (c *frameChunker) Read(p []byte) (int, error) {
	if len(p) < c.size {
		return 0, io.ErrShortBuffer
	}
	n, err := io.ReadFull(c.src, p[:c.size])
	if err == io.ErrUnexpectedEOF {
		// Truncated final frame. Surface the short chunk now; the next
		// call reports end of stream.
		return n, nil
	}
	return n, err
}

// ffmpegProc wraps a running decode process and its pipes.
type ffmpegProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

func startFFmpeg(bin string, args []string) (*ffmpegProc, error) {
	cmd := exec.Command(bin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg stderr")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", bin)
	}

	log.Debug("ffmpeg started: %s %s", bin, strings.Join(args, " "))
	return &ffmpegProc{cmd, stdin, stdout, stderr}, nil
}

// stop closes stdin and escalates from interrupt to kill if the process does
// not exit within the timeout. Must be called at most once.
func (p *ffmpegProc) stop() {
	if p == nil {
		return
	}

	p.stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Signal(os.Interrupt)
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Warn("ffmpeg did not exit, killing")
		p.cmd.Process.Kill()
		<-done
	}
}
