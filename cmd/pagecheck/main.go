// Command pagecheck runs browser verification scenarios against a local
// HTML application.
//
// Usage:
//
//	pagecheck -entry index.html                    # run the dream journal catalog once
//	pagecheck -config pagecheck.yaml -scenario locked
//	pagecheck -config pagecheck.yaml -db runs.db -serve :8086   # report API
//	pagecheck -db runs.db -mcp                     # MCP over stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagecheck/pagecheck"
)

var version = "dev"

type flags struct {
	config    string
	entry     string
	scenarios string
	db        string
	serve     string
	mcp       bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "path to pagecheck.yaml config file")
	flag.StringVar(&f.entry, "entry", "", "HTML entry point (overrides config)")
	flag.StringVar(&f.scenarios, "scenario", "", "comma-separated scenario names (default: all)")
	flag.StringVar(&f.db, "db", "", "run history database (overrides config)")
	flag.StringVar(&f.serve, "serve", "", "serve the report API on this address")
	flag.BoolVar(&f.mcp, "mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, f); err != nil {
		logger.Error("pagecheck: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	cfg, err := resolveConfig(f)
	if err != nil {
		return err
	}

	var st *pagecheck.Store
	if cfg.Store.Path != "" {
		st, err = pagecheck.OpenStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	sinks, err := buildSinks(cfg, st, f.mcp, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := pagecheck.New(cfg, logger,
		pagecheck.WithSinks(sinks...),
		pagecheck.WithMetrics(pagecheck.NewMetrics(reg)),
	)
	defer r.Close()

	if f.serve == "" && !f.mcp {
		return runOnce(ctx, r, splitNames(f.scenarios))
	}

	g, gctx := errgroup.WithContext(ctx)
	if f.serve != "" {
		srv := &http.Server{
			Addr:              f.serve,
			Handler:           pagecheck.NewHandler(st, cfg.ArtifactsDir, reg, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("pagecheck: serving", "addr", f.serve)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	if f.mcp {
		g.Go(func() error {
			logger.Info("pagecheck: mcp on stdio")
			srv := pagecheck.NewMCPServer(r, st, version)
			if err := srv.Run(gctx, &mcp.StdioTransport{}); err != nil && gctx.Err() == nil {
				return fmt.Errorf("mcp: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func runOnce(ctx context.Context, r *pagecheck.Runner, names []string) error {
	rep, err := r.RunScenarios(ctx, names)
	if err != nil {
		return err
	}
	if !rep.OK() {
		first := rep.FirstFailure()
		return fmt.Errorf("%d failed, %d skipped: %s: %s", rep.Failed(), rep.Skipped(), first.Scenario, first.Error)
	}
	return nil
}

func resolveConfig(f flags) (*pagecheck.Config, error) {
	cfg := &pagecheck.Config{}
	if f.config != "" {
		var err error
		if cfg, err = pagecheck.LoadConfigFile(f.config); err != nil {
			return nil, err
		}
	}
	if f.entry != "" {
		cfg.Entry = f.entry
	}
	if f.db != "" {
		cfg.Store.Path = f.db
	}
	return cfg, nil
}

// buildSinks defaults to stdout. In MCP mode stdout carries the protocol,
// so stdout sinks are dropped.
func buildSinks(cfg *pagecheck.Config, st *pagecheck.Store, mcpMode bool, logger *slog.Logger) ([]pagecheck.Sink, error) {
	var cfgs []pagecheck.SinkConfig
	hasStore := false
	for _, c := range cfg.Sinks {
		if c.Type == "stdout" && mcpMode {
			logger.Warn("pagecheck: stdout sink disabled in mcp mode")
			continue
		}
		hasStore = hasStore || c.Type == "store"
		cfgs = append(cfgs, c)
	}
	if len(cfg.Sinks) == 0 && !mcpMode {
		cfgs = append(cfgs, pagecheck.SinkConfig{Type: "stdout"})
	}
	if st != nil && !hasStore {
		cfgs = append(cfgs, pagecheck.SinkConfig{Type: "store"})
	}
	return pagecheck.SinksFromConfig(cfgs, st, logger)
}

func splitNames(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
