package camlink

// Config contains pipeline settings. The zero value is not usable; start
// from DefaultConfig and override fields as needed.
type Config struct {
	// Frame geometry. Every transport and the decoder agree on raw RGB24
	// frames of exactly this size.
	Width  int
	Height int

	// BufferDepth is how many decoded frames to retain. Consumers that only
	// ever want the newest frame use depth 1.
	BufferDepth int

	// AutoReconnect enables automatic reconnection with backoff when the
	// sender drops.
	AutoReconnect bool

	// MaxReconnectAttempts caps one reconnection episode. Zero means use the
	// default.
	MaxReconnectAttempts int
}

// DefaultConfig returns the settings used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		Width:                1280,
		Height:               720,
		BufferDepth:          1,
		AutoReconnect:        true,
		MaxReconnectAttempts: 10,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.BufferDepth == 0 {
		c.BufferDepth = def.BufferDepth
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
}
