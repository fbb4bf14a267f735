package protocols

import (
	"fmt"
)

// DefaultSRTPort is the conventional SRT listener port.
const DefaultSRTPort = 9000

func init() {
	Register("srt", func(opts Options) (Adapter, error) {
		return NewSRTAdapter(opts)
	})
}

// SRTAdapter accepts an SRT caller using ffmpeg in listener mode. SRT keeps
// latency lower than RTMP and recovers from packet loss, at the cost of
// requiring an ffmpeg build with libsrt.
type SRTAdapter struct {
	ffmpegListener
	port int
}

func NewSRTAdapter(opts Options) (*SRTAdapter, error) {
	opts.applyDefaults()
	bin := opts.FFmpegBin
	if bin == "" {
		var err error
		if bin, err = findFFmpeg(); err != nil {
			return nil, err
		}
	}

	a := &SRTAdapter{}
	a.bin = bin
	a.width = opts.Width
	a.height = opts.Height
	return a, nil
}

// Start listens on the given port. SRT has no stream path; the argument is
// ignored.
func (a *SRTAdapter) Start(port int, _ string) error {
	if port == 0 {
		port = DefaultSRTPort
	}
	a.port = port

	input := fmt.Sprintf("srt://0.0.0.0:%d?mode=listener", port)
	if err := a.start(input); err != nil {
		return err
	}
	log.Info("SRT server listening on srt://0.0.0.0:%d", port)
	return nil
}

func (a *SRTAdapter) Stop() {
	a.stop()
	log.Info("SRT adapter stopped")
}

func (a *SRTAdapter) IsConnected() bool {
	return a.isConnected()
}

func (a *SRTAdapter) ConnectionURLs(localIPs []string) []string {
	urls := make([]string, 0, len(localIPs))
	for _, ip := range localIPs {
		urls = append(urls, fmt.Sprintf("srt://%s:%d", ip, a.port))
	}
	return urls
}

func (a *SRTAdapter) Instructions() string {
	return "Use an SRT-capable sender (Larix Broadcaster, OBS) in caller mode.\n" +
		"Enter one of the SRT URLs shown above. SRT gives the lowest latency\n" +
		"on lossy networks."
}
