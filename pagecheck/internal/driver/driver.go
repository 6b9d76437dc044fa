// Package driver defines the browser capabilities the executor consumes.
// internal/browser implements them over rod; tests use in-memory fakes.
package driver

import (
	"context"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Scope is anything CSS queries can run against: a page or an element.
// Query never waits; an empty slice means no match.
type Scope interface {
	Query(ctx context.Context, css string) ([]Element, error)
}

// Element is a handle to one DOM node.
type Element interface {
	Scope
	Visible(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	AccessibleName(ctx context.Context) (string, error)
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	Dispatch(ctx context.Context, event string) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Page is one tab inside a browser context.
type Page interface {
	Scope
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	HTML(ctx context.Context) (string, error)

	// EverShown reports whether a watched selector was rendered visible at
	// any point since the current document started.
	EverShown(ctx context.Context, css string) (bool, error)

	// Close releases the page and, for isolated sessions, its context.
	Close() error
}

// SessionOptions configures a page opened for one scenario.
type SessionOptions struct {
	Isolated    bool
	Storage     []scenario.StorageItem
	InitScripts []string
	Watch       []string
	OnConsole   func(scenario.ConsoleMessage)
}

// Launcher owns the browser process shared by the scenarios of a run.
type Launcher interface {
	Start(ctx context.Context) error
	Open(ctx context.Context, opts SessionOptions) (Page, error)
	Close() error
}
