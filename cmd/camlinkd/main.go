package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/camlink/camlink"
	"github.com/camlink/camlink/internal/conn"
	"github.com/camlink/camlink/internal/logging"
	"github.com/camlink/camlink/internal/media"
	"github.com/camlink/camlink/internal/protocols"
	"github.com/camlink/camlink/internal/stats"
)

// Populated via -ldflags="-X ...". See Makefile.
var GitRevisionId string
var GitTag string

var log = logging.DefaultLogger.WithTag("camlinkd")

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("camlinkd", GitTag, GitRevisionId)
}

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	if flagConfig != "" {
		fc, err := loadConfigFile(flagConfig)
		if err != nil {
			log.Error("%v", err)
			os.Exit(1)
		}
		mergeConfigFile(fc, flag.CommandLine.Changed)
	}

	adapter, err := protocols.Open(flagProtocol, protocols.Options{
		Width:     flagWidth,
		Height:    flagHeight,
		FFmpegBin: flagFFmpeg,
	})
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	pipe := camlink.New(adapter, camlink.Config{
		Width:                flagWidth,
		Height:               flagHeight,
		BufferDepth:          flagBufferDepth,
		AutoReconnect:        !flagNoReconnect,
		MaxReconnectAttempts: flagMaxAttempts,
	})

	metrics := stats.New()
	pipe.OnFrame = func(*media.Frame) {
		metrics.FramesDecoded.Inc()
	}
	pipe.OnError = func(err error) {
		metrics.DecodeErrors.Inc()
	}
	pipe.OnStateChange = func(s conn.State) {
		log.Info("Connection state: %s", s)
		metrics.StateTransitions.WithLabelValues(s.String()).Inc()
		metrics.ConnectionState.Set(float64(s))
	}
	pipe.OnHealthChange = func(h conn.Health) {
		log.Info("Stream health: %s", h)
		metrics.ConnectionHealth.Set(float64(h))
	}

	if err := pipe.Start(flagPort, flagPath); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	defer pipe.Stop()

	// The attempt counter only moves during a reconnection cycle; sampling
	// once a second is plenty.
	samplerQuit := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.ReconnectAttempts.Set(float64(pipe.Manager().ReconnectAttempts()))
			case <-samplerQuit:
				return
			}
		}
	}()
	defer close(samplerQuit)

	server := newStatusServer(flagStatusAddr, pipe, metrics)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Status server: %v", err)
		}
	}()

	printConnectionInfo(adapter)

	// Wait for SIGINT or SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("Received %v, shutting down", s)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

// printConnectionInfo shows the sender-facing URLs for every usable local
// address, plus the protocol's setup instructions.
func printConnectionInfo(adapter protocols.Adapter) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Println("\nConnect your sender to one of:")
	for _, url := range adapter.ConnectionURLs(localIPs()) {
		cyan.Printf("  %s\n", url)
	}
	fmt.Println()
	fmt.Println(adapter.Instructions())
	fmt.Printf("\nStatus endpoint: http://%s/status\n\n", flagStatusAddr)
}

// localIPs returns the host's non-loopback IPv4 addresses.
func localIPs() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		log.Warn("Enumerating interfaces: %v", err)
		return []string{"127.0.0.1"}
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
		}
	}
	if len(ips) == 0 {
		ips = append(ips, "127.0.0.1")
	}
	return ips
}
