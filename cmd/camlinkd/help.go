package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig      string
	flagProtocol    string
	flagPort        int
	flagPath        string
	flagWidth       int
	flagHeight      int
	flagBufferDepth int
	flagNoReconnect bool
	flagMaxAttempts int
	flagStatusAddr  string
	flagFFmpeg      string
	flagHelp        bool
	flagVersion     bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "Configuration file (TOML)")
	flag.StringVarP(&flagProtocol, "protocol", "p", "rtmp", "Ingest protocol")
	flag.IntVarP(&flagPort, "port", "", 0, "Listener port (0 = protocol default)")
	flag.StringVarP(&flagPath, "path", "", "", "Stream path / key, where the protocol uses one")
	flag.IntVarP(&flagWidth, "width", "x", 1280, "Video width")
	flag.IntVarP(&flagHeight, "height", "y", 720, "Video height")
	flag.IntVarP(&flagBufferDepth, "buffer-depth", "d", 1, "Decoded frames to retain")
	flag.BoolVarP(&flagNoReconnect, "no-reconnect", "", false, "Disable automatic reconnection")
	flag.IntVarP(&flagMaxAttempts, "max-attempts", "", 10, "Reconnection attempt ceiling")
	flag.StringVarP(&flagStatusAddr, "status-address", "s", "127.0.0.1:8751", "Status/metrics HTTP address")
	flag.StringVarP(&flagFFmpeg, "ffmpeg", "", "", "Path to the ffmpeg binary")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Turn a phone or any live stream into a local virtual camera feed

Usage: camlinkd [OPTION]...

Ingest:
  -p, --protocol=NAME    Ingest protocol: rtmp, srt, flv, websocket (default: rtmp)
      --port=NUM         Listener port (default: protocol-specific)
      --path=STR         Stream path / key, RTMP only (default: live/stream)
      --ffmpeg=FILE      Path to the ffmpeg binary (default: search $PATH)

Video:
  -x, --width=NUM        Set video width (default: 1280)
  -y, --height=NUM       Set video height (default: 720)
  -d, --buffer-depth=NUM Decoded frames to retain (default: 1)

Reconnection:
      --no-reconnect     Disable automatic reconnection
      --max-attempts=NUM Reconnection attempt ceiling (default: 10)

Miscellaneous:
  -c, --config=FILE      Configuration file, TOML (flags take precedence)
  -s, --status-address=ADDR
                         Status/metrics HTTP address (default: 127.0.0.1:8751)
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//                           _  _         _
	//   ___  __ _  _ __ ___    | |(_) _ __  | | __
	//  / __|/ _` || '_ ` _ \   | || || '_ \ | |/ /
	// | (__| (_| || | | | | |  | || || | | ||   <
	//  \___|\__,_||_| |_| |_|  |_||_||_| |_||_|\_\

	// Line 1
	r.Printf("      ")
	y.Printf("      ")
	b.Printf("        ")
	y.Printf("   _ ")
	r.Printf(" _   ")
	y.Printf("     ")
	b.Println(" _     ")

	// Line 2
	r.Printf("  ___ ")
	y.Printf(" __ _ ")
	b.Printf(" _ __ ___ ")
	y.Printf(" | |")
	r.Printf("| | ")
	y.Printf(" _ __ ")
	b.Println("| | __")

	// Line 3
	r.Printf(" / __|")
	y.Printf("/ _` |")
	b.Printf("| '_ ` _ \\")
	y.Printf(" | |")
	r.Printf("| | ")
	y.Printf("| '_ \\")
	b.Println("| |/ /")

	// Line 4
	r.Printf("| (__ ")
	y.Printf("| (_| |")
	b.Printf("| | | | | |")
	y.Printf("| |")
	r.Printf("| | ")
	y.Printf("| | | |")
	b.Println("|   < ")

	// Line 5
	r.Printf(" \\___|")
	y.Printf(" \\__,_|")
	b.Printf("|_| |_| |_|")
	y.Printf("|_|")
	r.Printf("|_| ")
	y.Printf("|_| |_|")
	b.Println("|_|\\_\\")

	fmt.Println(helpString)
}
