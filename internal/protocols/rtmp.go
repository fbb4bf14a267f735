package protocols

import (
	"fmt"
)

const (
	// DefaultRTMPPort avoids clashing with full RTMP servers on 1935.
	DefaultRTMPPort = 2935

	// DefaultRTMPPath is the stream key expected from the sender.
	DefaultRTMPPath = "live/stream"
)

func init() {
	Register("rtmp", func(opts Options) (Adapter, error) {
		return NewRTMPAdapter(opts)
	})
}

// RTMPAdapter accepts an RTMP publish using ffmpeg in listen mode. Broadly
// compatible: PRISM Live Studio, Larix Broadcaster, OBS.
type RTMPAdapter struct {
	ffmpegListener
	port int
	path string
}

func NewRTMPAdapter(opts Options) (*RTMPAdapter, error) {
	opts.applyDefaults()
	bin := opts.FFmpegBin
	if bin == "" {
		var err error
		if bin, err = findFFmpeg(); err != nil {
			return nil, err
		}
	}

	a := &RTMPAdapter{}
	a.bin = bin
	a.width = opts.Width
	a.height = opts.Height
	return a, nil
}

func (a *RTMPAdapter) Start(port int, path string) error {
	if port == 0 {
		port = DefaultRTMPPort
	}
	if path == "" {
		path = DefaultRTMPPath
	}
	a.port = port
	a.path = path

	// The ?listen=1 URL parameter avoids the ffmpeg 7.x listen_timeout bug.
	input := fmt.Sprintf("rtmp://0.0.0.0:%d/%s?listen=1", port, path)
	if err := a.start(input); err != nil {
		return err
	}
	log.Info("RTMP server listening on rtmp://0.0.0.0:%d/%s", port, path)
	return nil
}

func (a *RTMPAdapter) Stop() {
	a.stop()
	log.Info("RTMP adapter stopped")
}

func (a *RTMPAdapter) IsConnected() bool {
	return a.isConnected()
}

func (a *RTMPAdapter) ConnectionURLs(localIPs []string) []string {
	urls := make([]string, 0, len(localIPs))
	for _, ip := range localIPs {
		urls = append(urls, fmt.Sprintf("rtmp://%s:%d/%s", ip, a.port, a.path))
	}
	return urls
}

func (a *RTMPAdapter) Instructions() string {
	return "Use PRISM Live Studio or Larix Broadcaster on the sender device.\n" +
		"Select 'Custom RTMP' and enter one of the RTMP URLs shown above."
}
