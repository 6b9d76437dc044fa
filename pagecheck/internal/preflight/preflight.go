// Package preflight checks an entry HTML file statically before the
// browser starts. Elements created by the page's scripts are invisible to
// it, so its findings are warnings, never failures.
package preflight

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Report lists what the static document lacks.
type Report struct {
	Title   string
	Missing []string // selectors matching nothing in the static markup
	Invalid []string // selectors the CSS engine rejected
}

// Check parses r and tests every selector against the static DOM.
func Check(r io.Reader, selectors []string) (*Report, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("preflight: parse: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	rep := &Report{Title: strings.TrimSpace(doc.Find("title").First().Text())}
	for _, sel := range selectors {
		// goquery silently matches nothing on a bad selector.
		m, err := cascadia.Compile(sel)
		if err != nil {
			rep.Invalid = append(rep.Invalid, sel)
			continue
		}
		if doc.FindMatcher(m).Length() == 0 {
			rep.Missing = append(rep.Missing, sel)
		}
	}
	return rep, nil
}

// Selectors collects the static CSS targets of scenarios worth checking:
// top-level CSS locators without text filters. Scoped locators and role
// queries usually target script-rendered content and are skipped.
func Selectors(scenarios []scenario.Scenario) []string {
	seen := map[string]bool{}
	var out []string
	for _, sc := range scenarios {
		for _, st := range sc.Steps {
			l := st.Target
			if l == nil || l.CSS == "" || l.Within != nil || l.HasText != "" {
				continue
			}
			if st.Action == scenario.ActionExpectHidden || st.Action == scenario.ActionExpectNeverVisible {
				continue
			}
			if !seen[l.CSS] {
				seen[l.CSS] = true
				out = append(out, l.CSS)
			}
		}
	}
	return out
}
