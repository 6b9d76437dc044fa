package locator

import (
	"context"
	"testing"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver/drivertest"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

const journal = `<html><body>
<button id="journalTab" role="tab">Journal</button>
<button id="save">  Save   Dream </button>
<input type="submit" value="Save Dream Draft">
<div id="entries">
  <div class="entry"><h3>First dream</h3><button aria-label="Edit">✎</button></div>
  <div class="entry"><h3>A Test Dream About Spacing</h3><button>Edit</button></div>
</div>
</body></html>`

func newPage(t *testing.T) *drivertest.Page {
	t.Helper()
	p := drivertest.NewPage(map[string]string{"file:///index.html": journal})
	if err := p.Navigate(context.Background(), "file:///index.html"); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMatchName(t *testing.T) {
	cases := []struct {
		got, want string
		exact     bool
		ok        bool
	}{
		{"  Save   Dream ", "save dream", false, true},
		{"Save Dream Draft", "Save Dream", false, true},
		{"Save Dream Draft", "Save Dream", true, false},
		{"Save\nDream", "Save Dream", true, true},
		{"Edit", "Delete", false, false},
	}
	for _, tc := range cases {
		if got := MatchName(tc.got, tc.want, tc.exact); got != tc.ok {
			t.Errorf("MatchName(%q, %q, %v) = %v, want %v", tc.got, tc.want, tc.exact, got, tc.ok)
		}
	}
}

func TestRoleSelector(t *testing.T) {
	if _, ok := RoleSelector("Button "); !ok {
		t.Error("button role should be known, case and space insensitive")
	}
	if _, ok := RoleSelector("spaceship"); ok {
		t.Error("unknown role reported as known")
	}
}

func TestResolveRoleAndName(t *testing.T) {
	p := newPage(t)
	ctx := context.Background()

	got, err := Resolve(ctx, p, scenario.RoleLocator("button", "Save Dream"))
	if err != nil {
		t.Fatal(err)
	}
	// <button> "Save Dream" and <input type=submit value="Save Dream Draft">.
	if len(got) != 2 {
		t.Fatalf("substring match: got %d elements, want 2", len(got))
	}

	exact := &scenario.Locator{Role: "button", Name: "Save Dream", Exact: true}
	got, err = Resolve(ctx, p, exact)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("exact match: got %d elements, want 1", len(got))
	}
}

func TestResolveWithinHasText(t *testing.T) {
	p := newPage(t)
	ctx := context.Background()

	entry := &scenario.Locator{CSS: ".entry", HasText: "a test dream about spacing"}
	entries, err := Resolve(ctx, p, entry)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}

	edit := scenario.RoleLocator("button", "Edit").In(entry)
	buttons, err := Resolve(ctx, p, edit)
	if err != nil {
		t.Fatal(err)
	}
	if len(buttons) != 1 {
		t.Fatalf("scoped buttons: got %d, want 1", len(buttons))
	}
	text, _ := buttons[0].Text(ctx)
	if text != "Edit" {
		t.Errorf("scoped to wrong entry: button text %q", text)
	}
}

func TestResolveMissingParent(t *testing.T) {
	p := newPage(t)
	loc := scenario.CSSLocator("textarea").In(&scenario.Locator{CSS: ".entry", HasText: "nope"})
	got, err := Resolve(context.Background(), p, loc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d elements under missing parent", len(got))
	}
}

func TestResolveUnknownRole(t *testing.T) {
	p := newPage(t)
	if _, err := Resolve(context.Background(), p, &scenario.Locator{Role: "spaceship"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
