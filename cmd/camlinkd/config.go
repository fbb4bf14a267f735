package main

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// fileConfig mirrors the TOML configuration file. Every field is optional;
// command line flags that were set explicitly take precedence.
type fileConfig struct {
	Video struct {
		Width       int `toml:"width"`
		Height      int `toml:"height"`
		BufferDepth int `toml:"buffer_depth"`
	} `toml:"video"`

	Network struct {
		Protocol      string `toml:"protocol"`
		Port          int    `toml:"port"`
		Path          string `toml:"path"`
		StatusAddress string `toml:"status_address"`
		FFmpeg        string `toml:"ffmpeg"`
	} `toml:"network"`

	Reconnect struct {
		Auto        *bool `toml:"auto"`
		MaxAttempts int   `toml:"max_attempts"`
	} `toml:"reconnect"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return &fc, nil
}

// mergeConfigFile fills in settings the command line left at their defaults.
// pflag tracks which flags were set explicitly, so "flag beats file beats
// built-in default" falls out of checking Changed.
func mergeConfigFile(fc *fileConfig, changed func(string) bool) {
	if fc.Video.Width != 0 && !changed("width") {
		flagWidth = fc.Video.Width
	}
	if fc.Video.Height != 0 && !changed("height") {
		flagHeight = fc.Video.Height
	}
	if fc.Video.BufferDepth != 0 && !changed("buffer-depth") {
		flagBufferDepth = fc.Video.BufferDepth
	}
	if fc.Network.Protocol != "" && !changed("protocol") {
		flagProtocol = fc.Network.Protocol
	}
	if fc.Network.Port != 0 && !changed("port") {
		flagPort = fc.Network.Port
	}
	if fc.Network.Path != "" && !changed("path") {
		flagPath = fc.Network.Path
	}
	if fc.Network.StatusAddress != "" && !changed("status-address") {
		flagStatusAddr = fc.Network.StatusAddress
	}
	if fc.Network.FFmpeg != "" && !changed("ffmpeg") {
		flagFFmpeg = fc.Network.FFmpeg
	}
	if fc.Reconnect.Auto != nil && !changed("no-reconnect") {
		flagNoReconnect = !*fc.Reconnect.Auto
	}
	if fc.Reconnect.MaxAttempts != 0 && !changed("max-attempts") {
		flagMaxAttempts = fc.Reconnect.MaxAttempts
	}
}
