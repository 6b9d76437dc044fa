package sink

import (
	"context"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/store"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Store persists each run report into the run history database. Results
// are saved with their report, never one by one.
type Store struct {
	st *store.Store
}

// NewStore creates a sink writing to st. Closing the sink leaves st open.
func NewStore(st *store.Store) *Store {
	return &Store{st: st}
}

func (s *Store) SendResult(context.Context, scenario.Result) error { return nil }

func (s *Store) SendReport(ctx context.Context, rep scenario.Report) error {
	return s.st.SaveReport(ctx, &rep)
}

func (s *Store) Close() error { return nil }
