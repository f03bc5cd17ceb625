// Package main is the entry point for the snippet API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (flags, config file, env vars)
// 2. Create dependencies (logger, database connection, sandbox executor)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// COMMANDS:
//
//	snippet-api [--config file] serve                 (default)
//	snippet-api [--config file] createuser --username alice --password s3cret
package main

import (
	"fmt"
	"os"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
