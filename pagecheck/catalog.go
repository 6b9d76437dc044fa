package pagecheck

import (
	"time"

	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Built-in scenario names.
const (
	ScenarioUnlocked   = "unlocked"
	ScenarioLocked     = "locked"
	ScenarioInlineEdit = "inline_edit"
)

// Dream journal fixtures.
const (
	// PinHashKey is the localStorage key whose presence locks the journal.
	PinHashKey = "dreamJournalPinHash"
	// PinHashFixture is stored JSON-encoded, the way the app writes it.
	PinHashFixture = `"somehash"`

	TestDreamTitle   = "A Test Dream About Spacing"
	TestDreamContent = "This is the content of the test dream."
)

// Screenshot destinations, relative to the artifacts directory.
const (
	UnlockedScreenshot   = "verification/unlocked_view.png"
	LockedScreenshot     = "verification/locked_view.png"
	InlineEditScreenshot = "verification/verification.png"
)

// DreamJournalScenarios returns every built-in scenario.
func DreamJournalScenarios() []scenario.Scenario {
	return []scenario.Scenario{unlockedScenario(), lockedScenario(), inlineEditScenario()}
}

// FlashScenarios checks that the lock screen never flashes the journal.
func FlashScenarios() []scenario.Scenario {
	return []scenario.Scenario{unlockedScenario(), lockedScenario()}
}

// SpacingScenarios checks inline editing of a saved entry.
func SpacingScenarios() []scenario.Scenario {
	return []scenario.Scenario{inlineEditScenario()}
}

func unlockedScenario() scenario.Scenario {
	return scenario.Scenario{
		Name: ScenarioUnlocked,
		Steps: []scenario.Step{
			{Action: scenario.ActionNavigate},
			{Action: scenario.ActionExpectVisible, Target: scenario.CSSLocator("#journalTab")},
			{Action: scenario.ActionExpectHidden, Target: scenario.CSSLocator("#lockTab")},
			{Action: scenario.ActionScreenshot, Path: UnlockedScreenshot},
		},
	}
}

func lockedScenario() scenario.Scenario {
	return scenario.Scenario{
		Name:    ScenarioLocked,
		Storage: []scenario.StorageItem{{Key: PinHashKey, Value: PinHashFixture}},
		Watch:   []string{"#journalTab"},
		Steps: []scenario.Step{
			{Action: scenario.ActionNavigate},
			{Action: scenario.ActionExpectVisible, Target: scenario.CSSLocator("#lockTab")},
			{Action: scenario.ActionExpectHidden, Target: scenario.CSSLocator("#journalTab")},
			{Action: scenario.ActionExpectNeverVisible, Target: scenario.CSSLocator("#journalTab")},
			{Action: scenario.ActionScreenshot, Path: LockedScreenshot},
		},
	}
}

func inlineEditScenario() scenario.Scenario {
	entry := &scenario.Locator{CSS: ".entry", HasText: TestDreamTitle}
	return scenario.Scenario{
		Name: ScenarioInlineEdit,
		Steps: []scenario.Step{
			{Action: scenario.ActionNavigate},
			{Action: scenario.ActionFill, Target: scenario.CSSLocator("#dreamTitle"), Value: TestDreamTitle},
			{Action: scenario.ActionFill, Target: scenario.CSSLocator("#dreamContent"), Value: TestDreamContent},
			{Action: scenario.ActionClick, Target: scenario.RoleLocator("button", "Save Dream")},
			{Action: scenario.ActionExpectCount, Target: entry, Count: 1},
			// Dispatched: pointer clicks on this button were flaky.
			{Action: scenario.ActionClick, Target: scenario.RoleLocator("button", "Edit").In(entry), Click: scenario.ClickDispatch, Event: "click"},
			{Action: scenario.ActionExpectVisible, Target: scenario.CSSLocator("textarea").In(entry), Timeout: 10 * time.Second},
			{Action: scenario.ActionScreenshot, Target: entry, Path: InlineEditScreenshot},
		},
	}
}

// FindScenario returns the scenario named name from list.
func FindScenario(list []scenario.Scenario, name string) (scenario.Scenario, bool) {
	for _, sc := range list {
		if sc.Name == name {
			return sc, true
		}
	}
	return scenario.Scenario{}, false
}
