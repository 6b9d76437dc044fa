// Package scenario defines the verification scenarios executed by pagecheck
// and the results they produce. Consumers (CLIs, the MCP surface, webhook
// receivers) import this package to build scenarios and decode reports.
package scenario

import (
	"fmt"
	"strings"
	"time"
)

// Action is the kind of work a Step performs.
type Action string

const (
	ActionNavigate           Action = "navigate"             // load URL (empty = entry point)
	ActionFill               Action = "fill"                 // replace input value with Value
	ActionClick              Action = "click"                // activate Target, see ClickMode
	ActionExpectVisible      Action = "expect_visible"       // first match rendered and visible
	ActionExpectHidden       Action = "expect_hidden"        // no match, or first match not visible
	ActionExpectCount        Action = "expect_count"         // exactly Count visible matches
	ActionExpectNeverVisible Action = "expect_never_visible" // Target.CSS never rendered visible while watched
	ActionScreenshot         Action = "screenshot"           // page (Target nil) or element to Path
)

// ClickMode selects how a click step activates its target.
type ClickMode string

const (
	ClickMouse    ClickMode = "mouse"    // simulated pointer click
	ClickDispatch ClickMode = "dispatch" // raw DOM event dispatch on the element
	ClickAuto     ClickMode = "auto"     // pointer click, dispatch if it fails
)

// Locator is a query for DOM elements in the loaded page.
//
// CSS and Role are alternatives: CSS wins when both are set. Name filters
// role matches by accessible name, HasText filters by visible text. Within
// scopes the query to the first element matched by the parent locator.
type Locator struct {
	CSS     string   `json:"css,omitempty" yaml:"css"`
	Role    string   `json:"role,omitempty" yaml:"role"`
	Name    string   `json:"name,omitempty" yaml:"name"`
	Exact   bool     `json:"exact,omitempty" yaml:"exact"`
	HasText string   `json:"has_text,omitempty" yaml:"has_text"`
	Within  *Locator `json:"within,omitempty" yaml:"within"`
}

// CSSLocator is shorthand for a plain selector locator.
func CSSLocator(sel string) *Locator { return &Locator{CSS: sel} }

// RoleLocator is shorthand for a role+name locator (case-insensitive substring).
func RoleLocator(role, name string) *Locator { return &Locator{Role: role, Name: name} }

// In returns a copy of l scoped within parent.
func (l Locator) In(parent *Locator) *Locator {
	l.Within = parent
	return &l
}

// String renders the locator the way it is reported in failures, e.g.
// `.entry:has-text("A Test") >> role=button[name="Edit"]`.
func (l *Locator) String() string {
	if l == nil {
		return ""
	}
	var b strings.Builder
	if l.Within != nil {
		b.WriteString(l.Within.String())
		b.WriteString(" >> ")
	}
	switch {
	case l.CSS != "":
		b.WriteString(l.CSS)
	case l.Role != "":
		b.WriteString("role=")
		b.WriteString(l.Role)
		if l.Name != "" {
			if l.Exact {
				fmt.Fprintf(&b, "[name=%q s]", l.Name)
			} else {
				fmt.Fprintf(&b, "[name=%q]", l.Name)
			}
		}
	}
	if l.HasText != "" {
		fmt.Fprintf(&b, ":has-text(%q)", l.HasText)
	}
	return b.String()
}

// Step is one unit of a scenario.
type Step struct {
	Action   Action        `json:"action" yaml:"action"`
	Target   *Locator      `json:"target,omitempty" yaml:"target"`
	URL      string        `json:"url,omitempty" yaml:"url"`
	Value    string        `json:"value,omitempty" yaml:"value"`
	Count    int           `json:"count,omitempty" yaml:"count"`
	Click    ClickMode     `json:"click,omitempty" yaml:"click"`
	Event    string        `json:"event,omitempty" yaml:"event"` // dispatched event type, default "click"
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout"`
	Path     string        `json:"path,omitempty" yaml:"path"`
	FullPage bool          `json:"full_page,omitempty" yaml:"full_page"`
}

// Describe is a short human-readable form used in logs.
func (s Step) Describe() string {
	switch s.Action {
	case ActionNavigate:
		if s.URL == "" {
			return "navigate entry"
		}
		return "navigate " + s.URL
	case ActionScreenshot:
		if s.Target == nil {
			return "screenshot page -> " + s.Path
		}
		return "screenshot " + s.Target.String() + " -> " + s.Path
	case ActionExpectCount:
		return fmt.Sprintf("expect_count(%d) %s", s.Count, s.Target.String())
	}
	return string(s.Action) + " " + s.Target.String()
}

// StorageItem is a localStorage entry written before page scripts run.
// Value is stored verbatim (callers JSON-quote it when the app expects a
// JSON string).
type StorageItem struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Scenario is one independent verification case.
type Scenario struct {
	Name string `json:"name" yaml:"name"`

	// Entry overrides the run's entry point for this scenario.
	Entry string `json:"entry,omitempty" yaml:"entry"`

	// Isolated runs the scenario in its own browser context so seeded
	// storage cannot leak. Nil means true.
	Isolated *bool `json:"isolated,omitempty" yaml:"isolated"`

	Storage     []StorageItem `json:"storage,omitempty" yaml:"storage"`
	InitScripts []string      `json:"init_scripts,omitempty" yaml:"init_scripts"`

	// Watch lists CSS selectors watched from document start; a selector
	// seen visible at any frame is recorded for expect_never_visible.
	Watch []string `json:"watch,omitempty" yaml:"watch"`

	Steps []Step `json:"steps" yaml:"steps"`
}

// IsIsolated reports whether the scenario needs its own browser context.
func (s *Scenario) IsIsolated() bool {
	return s.Isolated == nil || *s.Isolated
}

// Validate checks the scenario is executable.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: no steps", s.Name)
	}
	watched := make(map[string]bool, len(s.Watch))
	for _, p := range s.Watch {
		watched[p] = true
	}
	for i, st := range s.Steps {
		if err := st.validate(watched); err != nil {
			return fmt.Errorf("scenario %s: step %d: %w", s.Name, i, err)
		}
	}
	return nil
}

func (s Step) validate(watched map[string]bool) error {
	switch s.Action {
	case ActionNavigate:
		return nil
	case ActionFill, ActionClick, ActionExpectVisible, ActionExpectHidden:
		if s.Target == nil {
			return fmt.Errorf("%s: target is required", s.Action)
		}
	case ActionExpectCount:
		if s.Target == nil {
			return fmt.Errorf("%s: target is required", s.Action)
		}
		if s.Count < 0 {
			return fmt.Errorf("%s: negative count", s.Action)
		}
	case ActionExpectNeverVisible:
		if s.Target == nil || s.Target.CSS == "" {
			return fmt.Errorf("%s: css target is required", s.Action)
		}
		if !watched[s.Target.CSS] {
			return fmt.Errorf("%s: %q is not watched", s.Action, s.Target.CSS)
		}
	case ActionScreenshot:
		if s.Path == "" {
			return fmt.Errorf("%s: path is required", s.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.Action == ActionClick {
		switch s.Click {
		case "", ClickMouse, ClickDispatch, ClickAuto:
		default:
			return fmt.Errorf("click: unknown mode %q", s.Click)
		}
	}
	if s.Target != nil && s.Target.CSS == "" && s.Target.Role == "" {
		return fmt.Errorf("%s: target needs css or role", s.Action)
	}
	return nil
}
