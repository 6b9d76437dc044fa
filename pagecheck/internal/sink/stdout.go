package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) SendResult(_ context.Context, res scenario.Result) error {
	data, err := scenario.MarshalResult(&res)
	if err != nil {
		return fmt.Errorf("stdout: marshal result: %w", err)
	}
	return s.write(envelope{Type: "result", Data: data})
}

func (s *Stdout) SendReport(_ context.Context, rep scenario.Report) error {
	data, err := scenario.MarshalReport(&rep)
	if err != nil {
		return fmt.Errorf("stdout: marshal report: %w", err)
	}
	return s.write(envelope{Type: "report", Data: data})
}

func (s *Stdout) write(env envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(env)
}

func (s *Stdout) Close() error { return nil }
