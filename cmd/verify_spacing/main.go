// Command verify_spacing saves a dream in index.html, opens its inline
// editor and screenshots the entry to
// jules-scratch/verification/verification.png.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/pagecheck/pagecheck"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		fmt.Printf("Verification script failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Verification script ran successfully.")
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg := &pagecheck.Config{
		Entry:        "index.html",
		ArtifactsDir: "jules-scratch",
		Scenarios:    pagecheck.SpacingScenarios(),
	}
	r := pagecheck.New(cfg, logger)
	defer r.Close()

	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}
	for _, res := range rep.Results {
		for _, m := range res.Console {
			fmt.Printf("Browser Console: %s\n", m.Text)
		}
	}
	if res := rep.FirstFailure(); res != nil {
		if res.Err != nil {
			return res.Err
		}
		return errors.New(res.Error)
	}
	return nil
}
