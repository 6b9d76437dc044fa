// Command verify_flash checks that the dream journal lock screen never
// shows the journal first. It loads index.html from the working directory
// unlocked, then with a PIN hash seeded, and writes
// jules-scratch/verification/{unlocked,locked}_view.png.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/pagecheck/pagecheck"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &pagecheck.Config{
		Entry:        "index.html",
		ArtifactsDir: "jules-scratch",
		Scenarios:    pagecheck.FlashScenarios(),
	}
	r := pagecheck.New(cfg, logger)
	defer r.Close()

	rep, err := r.Run(ctx)
	if err != nil {
		logger.Error("verify_flash: fatal", "error", err)
		os.Exit(1)
	}
	for _, res := range rep.Results {
		fmt.Printf("%-10s %s %s\n", res.Scenario, res.Status, res.Error)
	}
	if !rep.OK() {
		os.Exit(1)
	}
}
