// Flux - LED node configuration service
//
// This is the main entry point for the Flux API. LED controller nodes fetch
// their display configuration from it by id, and the Flux app pushes
// configuration changes to it.
//
// Usage:
//
//	flux              serve the HTTP API (same as "flux serve")
//	flux nodes list   print every stored node configuration
//	flux nodes get ID print one node configuration, or the default
//	flux version      print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on Ctrl+C and SIGTERM so the server can shut down gracefully
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
