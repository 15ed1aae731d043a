// ABOUTME: Entry point for the NovaBridge audio bridge
// ABOUTME: Parses CLI flags and starts the bridge server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/novastudio/novabridge-go/internal/bridge"
	"github.com/novastudio/novabridge-go/internal/version"
)

var (
	port         = flag.Int("port", 8765, "WebSocket server port")
	name         = flag.String("name", "", "Bridge friendly name (default: hostname-novabridge)")
	logFile      = flag.String("log-file", "novabridge.log", "Log file path")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	maxInstances = flag.Int("max-instances", 128, "Maximum concurrent plugin instances")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		// TUI owns the terminal; log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	bridgeName := *name
	if bridgeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		bridgeName = fmt.Sprintf("%s-novabridge", hostname)
	}

	log.Printf("Starting %s v%s: %s on port %d", version.Product, version.Version, bridgeName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)
	if !useTUI {
		log.Printf("Press Ctrl-C to stop")
	}

	config := bridge.Config{
		Port:         *port,
		Name:         bridgeName,
		EnableMDNS:   !*noMDNS,
		Debug:        *debug,
		UseTUI:       useTUI,
		MaxInstances: *maxInstances,
	}

	srv := bridge.New(config)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Bridge error: %v", err)
	}

	log.Printf("Bridge stopped")
}
