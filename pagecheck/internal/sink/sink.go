// Package sink defines output backends for pagecheck results.
package sink

import (
	"context"
	"encoding/json"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Sink receives each scenario result as it completes and the run report
// at the end (stdout, webhook, run store, in-process callback).
type Sink interface {
	SendResult(ctx context.Context, res scenario.Result) error
	SendReport(ctx context.Context, rep scenario.Report) error
	Close() error
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
