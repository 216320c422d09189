package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/resourceboard"
	"github.com/jpalmerr/resourceboard/example/mockapi"
)

func main() {
	// start mock API (see mockapi)
	api := mockapi.New(slog.Default())
	go func() {
		if err := api.ListenAndServe(":1337"); err != nil {
			slog.Error("mock api error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	b, err := resourceboard.New(
		resourceboard.WithSeed("Things", "http://localhost:1337/api/things"),
		resourceboard.WithSeed("Files", "http://localhost:1337/api/upload/files"),
		resourceboard.WithSeed("Flaky", "http://localhost:1337/api/flaky"),
		resourceboard.WithPollingInterval(5*time.Second),
		resourceboard.WithPort(8080),
		resourceboard.WithObservationCallback(func(obs resourceboard.Observation) {
			if obs.Err != nil {
				slog.Info("resource unhealthy", "name", obs.Resource.Name, "kind", obs.ErrorKind)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create resourceboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   ResourceBoard Demo                                  ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Resources:                                          ║")
	fmt.Println("  ║   • Things (table, drafts get published over time)    ║")
	fmt.Println("  ║   • Files (media gallery)                             ║")
	fmt.Println("  ║   • Flaky (cycles through failure kinds)              ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		slog.Error("resourceboard error", "error", err)
		os.Exit(1)
	}
}
