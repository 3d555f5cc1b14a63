// ABOUTME: This file is the process entry point for the goodnews service
// ABOUTME: Loads .env when present, then delegates to the bootstrap lifecycle
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"goodnews/bootstrap"
)

func main() {
	// Missing .env is fine; production injects real environment variables.
	_ = godotenv.Load()

	if err := bootstrap.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "goodnews: %v\n", err)
		os.Exit(1)
	}
}
