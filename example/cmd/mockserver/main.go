// Standalone mock API for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/resourceboard serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/resourceboard/example/mockapi"
)

func main() {
	fmt.Println("Mock API starting on :1337")
	fmt.Println("  /api/things        table with drafts that get published")
	fmt.Println("  /api/upload/files  media gallery")
	fmt.Println("  /api/flaky         ok → 500 → invalid JSON")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := mockapi.New(slog.Default()).ListenAndServe(":1337"); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
