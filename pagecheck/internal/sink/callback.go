package sink

import (
	"context"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// ResultFunc is called for each scenario result.
type ResultFunc func(ctx context.Context, res scenario.Result) error

// ReportFunc is called once per run.
type ReportFunc func(ctx context.Context, rep scenario.Report) error

// Callback delivers results via Go function calls, for embedding pagecheck
// in another binary.
type Callback struct {
	onResult ResultFunc
	onReport ReportFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onResult ResultFunc, onReport ReportFunc) *Callback {
	return &Callback{onResult: onResult, onReport: onReport}
}

func (c *Callback) SendResult(ctx context.Context, res scenario.Result) error {
	if c.onResult != nil {
		return c.onResult(ctx, res)
	}
	return nil
}

func (c *Callback) SendReport(ctx context.Context, rep scenario.Report) error {
	if c.onReport != nil {
		return c.onReport(ctx, rep)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
