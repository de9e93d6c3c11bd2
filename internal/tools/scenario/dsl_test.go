package scenario

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHabitFixtureCreatesStep(t *testing.T) {
	path := writeScenarioFixture(t, `-- Setup
local scene = Scenario.new("fixtures")
scene:habit("read", {counter = 5, started_days_ago = 10})

return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "fixtures" {
		t.Fatalf("name = %q, want fixtures", scenario.Name)
	}
	if len(scenario.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(scenario.Steps))
	}

	step := scenario.Steps[0]
	if step.Kind != "habit" {
		t.Fatalf("step kind = %q, want habit", step.Kind)
	}
	if step.Args["name"] != "read" {
		t.Fatalf("habit name = %v, want read", step.Args["name"])
	}
	if step.Args["counter"] != 5 {
		t.Fatalf("habit counter = %v, want 5", step.Args["counter"])
	}
	if step.Args["started_days_ago"] != 10 {
		t.Fatalf("started_days_ago = %v, want 10", step.Args["started_days_ago"])
	}
}

func TestCounterAndObserveCreateSteps(t *testing.T) {
	path := writeScenarioFixture(t, `local scene = Scenario.new("drive")
scene:habit("read")
scene:counter("read", 7)
scene:observe("read")

return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(scenario.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(scenario.Steps))
	}

	counter := scenario.Steps[1]
	if counter.Kind != "counter" {
		t.Fatalf("step kind = %q, want counter", counter.Kind)
	}
	if counter.Args["target"] != "read" || counter.Args["value"] != 7 {
		t.Fatalf("counter args = %v, want target=read value=7", counter.Args)
	}

	observe := scenario.Steps[2]
	if observe.Kind != "observe" {
		t.Fatalf("step kind = %q, want observe", observe.Kind)
	}
	if observe.Args["target"] != "read" {
		t.Fatalf("observe target = %v, want read", observe.Args["target"])
	}
}

func TestExpectationTablesArePreserved(t *testing.T) {
	path := writeScenarioFixture(t, `local scene = Scenario.new("expect")
scene:expect_celebration({target = "read", kind = "tier-up", tier = "Kindled", old = 5, new = 7})
scene:expect_awards({target = "read", milestones = {"streak-3", "streak-7"}})

return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(scenario.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(scenario.Steps))
	}

	celebration := scenario.Steps[0]
	if celebration.Kind != "expect_celebration" {
		t.Fatalf("step kind = %q, want expect_celebration", celebration.Kind)
	}
	if celebration.Args["tier"] != "Kindled" {
		t.Fatalf("tier = %v, want Kindled", celebration.Args["tier"])
	}
	if celebration.Args["old"] != 5 || celebration.Args["new"] != 7 {
		t.Fatalf("old/new = %v/%v, want 5/7", celebration.Args["old"], celebration.Args["new"])
	}

	awards := scenario.Steps[1]
	milestones, ok := awards.Args["milestones"].([]any)
	if !ok || len(milestones) != 2 {
		t.Fatalf("milestones = %v, want 2-element list", awards.Args["milestones"])
	}
	if milestones[0] != "streak-3" || milestones[1] != "streak-7" {
		t.Fatalf("milestones = %v, want streak-3, streak-7", milestones)
	}
}

func TestScenarioHabitRequiresName(t *testing.T) {
	path := writeScenarioFixture(t, `local scene = Scenario.new("bad")
scene:habit()

return scene
`)

	if _, err := LoadScenarioFromFile(path); err == nil {
		t.Fatal("expected error for missing habit name")
	}
}

func TestScenarioMustReturnScenario(t *testing.T) {
	path := writeScenarioFixture(t, `return 42`)

	if _, err := LoadScenarioFromFile(path); err == nil {
		t.Fatal("expected error for non-scenario return value")
	}
}

func TestScenarioNameDefaultsToFileName(t *testing.T) {
	path := writeScenarioFixture(t, `return Scenario.new()`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "scenario" {
		t.Fatalf("name = %q, want scenario", scenario.Name)
	}
}

func writeScenarioFixture(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.lua")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}
