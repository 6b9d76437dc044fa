// Package locator resolves scenario locators (CSS, role+name, text filters,
// scoping) against a driver.Scope.
package locator

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// roleSelectors maps ARIA roles to the elements that carry them implicitly
// or explicitly.
var roleSelectors = map[string]string{
	"button":   `button, input[type="button"], input[type="submit"], input[type="reset"], [role="button"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], input[type="search"], input[type="url"], input[type="tel"], input[type="password"], textarea, [role="textbox"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
	"radio":    `input[type="radio"], [role="radio"]`,
	"combobox": `select, [role="combobox"]`,
	"heading":  `h1, h2, h3, h4, h5, h6, [role="heading"]`,
	"tab":      `[role="tab"]`,
	"tabpanel": `[role="tabpanel"]`,
	"dialog":   `dialog, [role="dialog"]`,
	"list":     `ul, ol, [role="list"]`,
	"listitem": `li, [role="listitem"]`,
	"img":      `img[alt], [role="img"]`,
	"article":  `article, [role="article"]`,
}

// RoleSelector returns the candidate CSS for an ARIA role.
func RoleSelector(role string) (string, bool) {
	sel, ok := roleSelectors[strings.ToLower(strings.TrimSpace(role))]
	return sel, ok
}

// NormalizeText collapses runs of whitespace and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchName reports whether an accessible name satisfies want. Exact
// compares normalized strings; otherwise a case-insensitive substring match.
func MatchName(got, want string, exact bool) bool {
	got, want = NormalizeText(got), NormalizeText(want)
	if exact {
		return got == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

// Resolve returns every element matching loc, in document order. It never
// waits: callers poll. A Within parent that matches nothing yields no
// elements and no error.
func Resolve(ctx context.Context, root driver.Scope, loc *scenario.Locator) ([]driver.Element, error) {
	if loc == nil {
		return nil, fmt.Errorf("locator: nil locator")
	}

	scope := root
	if loc.Within != nil {
		parents, err := Resolve(ctx, root, loc.Within)
		if err != nil {
			return nil, err
		}
		if len(parents) == 0 {
			return nil, nil
		}
		scope = parents[0]
	}

	css := loc.CSS
	byRole := false
	if css == "" {
		sel, ok := RoleSelector(loc.Role)
		if !ok {
			return nil, fmt.Errorf("locator: unknown role %q", loc.Role)
		}
		css, byRole = sel, true
	}

	candidates, err := scope.Query(ctx, css)
	if err != nil {
		return nil, fmt.Errorf("locator: query %s: %w", css, err)
	}

	out := candidates[:0:0]
	for _, el := range candidates {
		ok, err := matches(ctx, el, loc, byRole)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}

func matches(ctx context.Context, el driver.Element, loc *scenario.Locator, byRole bool) (bool, error) {
	if byRole && loc.Name != "" {
		name, err := el.AccessibleName(ctx)
		if err != nil {
			return false, fmt.Errorf("locator: accessible name: %w", err)
		}
		if !MatchName(name, loc.Name, loc.Exact) {
			return false, nil
		}
	}
	if loc.HasText != "" {
		text, err := el.Text(ctx)
		if err != nil {
			return false, fmt.Errorf("locator: text: %w", err)
		}
		if !MatchName(text, loc.HasText, false) {
			return false, nil
		}
	}
	return true, nil
}
