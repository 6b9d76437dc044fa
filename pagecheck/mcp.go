package pagecheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagecheck/kit"
	"github.com/hazyhaar/pagecheck/safe"
)

// ErrHistoryDisabled is returned by history tools when no store is configured.
var ErrHistoryDisabled = errors.New("pagecheck: run history is disabled (no store)")

// RegisterMCP registers the pagecheck tools on an MCP server. st may be
// nil, in which case the history tools report ErrHistoryDisabled.
func RegisterMCP(srv *mcp.Server, r *Runner, st *Store) {
	mw := func(name string) kit.Middleware {
		return kit.Chain(kit.Logging(r.logger, name), kit.Recover())
	}
	registerListScenariosTool(srv, r, mw)
	registerRunTool(srv, r, mw)
	registerHistoryTool(srv, st, mw)
	registerRunDetailTool(srv, st, mw)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// ScenarioInfo describes a configured scenario.
type ScenarioInfo struct {
	Name     string   `json:"name"`
	Entry    string   `json:"entry,omitempty"`
	Isolated bool     `json:"isolated"`
	Steps    []string `json:"steps"`
}

// --- list_scenarios ---

func registerListScenariosTool(srv *mcp.Server, r *Runner, mw func(string) kit.Middleware) {
	const name = "pagecheck_list_scenarios"
	tool := &mcp.Tool{
		Name:        name,
		Description: "List the verification scenarios this runner can execute, with their steps.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(context.Context, any) (any, error) {
		scs := r.Scenarios()
		out := make([]ScenarioInfo, 0, len(scs))
		for _, sc := range scs {
			info := ScenarioInfo{Name: sc.Name, Entry: sc.Entry, Isolated: sc.IsIsolated()}
			for _, st := range sc.Steps {
				info.Steps = append(info.Steps, st.Describe())
			}
			out = append(out, info)
		}
		return out, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(name)(endpoint), kit.DecodeArgs[struct{}])
}

// --- run ---

type runRequest struct {
	Scenarios []string `json:"scenarios,omitempty"`
}

func registerRunTool(srv *mcp.Server, r *Runner, mw func(string) kit.Middleware) {
	const name = "pagecheck_run"
	tool := &mcp.Tool{
		Name:        name,
		Description: "Run verification scenarios in a headless browser and return the report. Screenshots are written on success only.",
		InputSchema: inputSchema(map[string]any{
			"scenarios": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Scenario names (default: all)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*runRequest)
		rep, err := r.RunScenarios(ctx, rr.Scenarios)
		if err != nil && rep == nil {
			return nil, err
		}
		if err != nil {
			r.logger.Warn("pagecheck: run aborted", "run_id", rep.RunID, "error", err)
		}
		return rep, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(name)(endpoint), kit.DecodeArgs[runRequest])
}

// --- history ---

type historyRequest struct {
	Limit int `json:"limit,omitempty"`
}

func registerHistoryTool(srv *mcp.Server, st *Store, mw func(string) kit.Middleware) {
	const name = "pagecheck_history"
	tool := &mcp.Tool{
		Name:        name,
		Description: "List recent verification runs, newest first, with pass/fail counts.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max runs (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		if st == nil {
			return nil, ErrHistoryDisabled
		}
		runs, err := st.ListRuns(ctx, req.(*historyRequest).Limit)
		if err != nil {
			return nil, err
		}
		if runs == nil {
			runs = []RunSummary{}
		}
		return runs, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(name)(endpoint), kit.DecodeArgs[historyRequest])
}

// --- run_detail ---

type runDetailRequest struct {
	RunID string `json:"run_id"`
}

func registerRunDetailTool(srv *mcp.Server, st *Store, mw func(string) kit.Middleware) {
	const name = "pagecheck_run_detail"
	tool := &mcp.Tool{
		Name:        name,
		Description: "Get the full report of one run: per-step results, console output, failure excerpt.",
		InputSchema: inputSchema(map[string]any{
			"run_id": map[string]any{"type": "string", "description": "Run ID from pagecheck_history"},
		}, []string{"run_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		if st == nil {
			return nil, ErrHistoryDisabled
		}
		id := req.(*runDetailRequest).RunID
		if err := safe.Identifier(id); err != nil {
			return nil, fmt.Errorf("run_id: %w", err)
		}
		return st.GetRun(ctx, id)
	}

	kit.RegisterMCPTool(srv, tool, mw(name)(endpoint), kit.DecodeArgs[runDetailRequest])
}

// NewMCPServer creates an MCP server exposing r and st.
func NewMCPServer(r *Runner, st *Store, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pagecheck", Version: version}, nil)
	RegisterMCP(srv, r, st)
	return srv
}
