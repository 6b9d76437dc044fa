package pagecheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/sink"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/store"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Sink is the output interface for scenario results and run reports.
type Sink = sink.Sink

// Store is the SQLite run history.
type Store = store.Store

// RunSummary is one row of the run history.
type RunSummary = store.RunSummary

// ErrRunNotFound is returned by the store for unknown runs.
var ErrRunNotFound = store.ErrNotFound

// OpenStore opens (or creates) the run history database at path.
func OpenStore(path string) (*Store, error) {
	return store.Open(path)
}

// NewStdoutSink creates a JSON-lines sink. A nil writer means os.Stdout.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with delivery retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink. Either function may be nil.
func NewCallbackSink(
	onResult func(ctx context.Context, res scenario.Result) error,
	onReport func(ctx context.Context, rep scenario.Report) error,
) Sink {
	return sink.NewCallback(onResult, onReport)
}

// NewStoreSink persists every run report into st.
func NewStoreSink(st *Store) Sink {
	return sink.NewStore(st)
}

// SinksFromConfig builds the sinks listed in cfgs. A "store" sink needs
// st to be non-nil.
func SinksFromConfig(cfgs []SinkConfig, st *Store, logger *slog.Logger) ([]Sink, error) {
	out := make([]Sink, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			out = append(out, NewStdoutSink(nil))
		case "webhook":
			out = append(out, NewWebhookSink(c.URL, logger))
		case "store":
			if st == nil {
				return nil, fmt.Errorf("pagecheck: store sink configured without a store path")
			}
			out = append(out, NewStoreSink(st))
		default:
			return nil, fmt.Errorf("pagecheck: unknown sink type %q", c.Type)
		}
	}
	return out, nil
}
