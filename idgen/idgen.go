// Package idgen generates run identifiers. Constructors that mint IDs take
// a Generator so tests can swap in a deterministic sequence.
package idgen

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// RunPrefix marks identifiers of verification runs.
const RunPrefix = "run_"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns time-sortable RFC 9562 identifiers, so runs listed by ID
// come out in start order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns prefix-1, prefix-2, ... Safe for concurrent use.
func Sequence(prefix string) Generator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// Default mints run IDs: "run_" followed by a UUIDv7.
var Default Generator = Prefixed(RunPrefix, UUIDv7())

// New produces an ID using Default.
func New() string {
	return Default()
}

// ParseRun validates an ID minted by Default and returns its UUID part.
func ParseRun(id string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(id, RunPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("idgen: %q lacks prefix %q", id, RunPrefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("idgen: parse %q: %w", id, err)
	}
	return u, nil
}
