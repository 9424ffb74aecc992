package engine

import (
	"strings"
	"testing"

	"github.com/formulary/formulary/pkg/formula"
)

func caveatFormula(blocks ...formula.CaveatBlock) *formula.Formula {
	return &formula.Formula{
		Name:        "hawk-tui",
		Description: "test formula",
		Homepage:    "https://example.com",
		License:     "MIT",
		Caveats:     blocks,
	}
}

func runWith(steps ...StepResult) *RunResult {
	return &RunResult{RunID: "run-1", Root: "hawk-tui", Steps: steps}
}

func TestRenderCaveatsUnguardedAlwaysRenders(t *testing.T) {
	f := caveatFormula(formula.CaveatBlock{Text: "Run hawk-tui to get started.\n"})
	out := RenderCaveats(f, nil, runWith(StepResult{Name: "hawk-tui", Status: StepVerified}))
	if out != "Run hawk-tui to get started." {
		t.Errorf("unexpected caveats %q", out)
	}
}

func TestRenderCaveatsMissingGuard(t *testing.T) {
	f := caveatFormula(formula.CaveatBlock{
		When: formula.CaveatCondition{Missing: "ollama"},
		Text: "Install ollama for local model support.",
	})

	t.Run("dependency absent", func(t *testing.T) {
		result := runWith(StepResult{Name: "hawk-tui", Status: StepVerified})
		out := RenderCaveats(f, nil, result)
		if !strings.Contains(out, "Install ollama") {
			t.Errorf("expected missing-guard block to render, got %q", out)
		}
	})

	t.Run("dependency verified", func(t *testing.T) {
		result := runWith(
			StepResult{Name: "ollama", Status: StepVerified},
			StepResult{Name: "hawk-tui", Status: StepVerified},
		)
		if out := RenderCaveats(f, nil, result); out != "" {
			t.Errorf("expected no caveats when dependency verified, got %q", out)
		}
	})

	t.Run("dependency failed counts as missing", func(t *testing.T) {
		result := runWith(
			StepResult{Name: "ollama", Status: StepFailed},
			StepResult{Name: "hawk-tui", Status: StepVerified},
		)
		if out := RenderCaveats(f, nil, result); out == "" {
			t.Error("a failed dependency is not present; block should render")
		}
	})
}

func TestRenderCaveatsPresentGuard(t *testing.T) {
	f := caveatFormula(formula.CaveatBlock{
		When: formula.CaveatCondition{Present: "chafa"},
		Text: "Image previews are enabled via chafa.",
	})

	result := runWith(
		StepResult{Name: "chafa", Status: StepVerified},
		StepResult{Name: "hawk-tui", Status: StepVerified},
	)
	if out := RenderCaveats(f, nil, result); !strings.Contains(out, "chafa") {
		t.Errorf("expected present-guard block to render, got %q", out)
	}

	without := runWith(StepResult{Name: "hawk-tui", Status: StepVerified})
	if out := RenderCaveats(f, nil, without); out != "" {
		t.Errorf("expected no caveats without chafa, got %q", out)
	}
}

func TestRenderCaveatsOnFailureGuard(t *testing.T) {
	f := caveatFormula(formula.CaveatBlock{
		When: formula.CaveatCondition{OnFailure: true},
		Text: "Check the logs under ~/.hawk-tui/logs.",
	})

	failed := runWith(StepResult{Name: "hawk-tui", Status: StepFailed})
	if out := RenderCaveats(f, nil, failed); !strings.Contains(out, "logs") {
		t.Errorf("expected failure block to render, got %q", out)
	}

	ok := runWith(StepResult{Name: "hawk-tui", Status: StepVerified})
	if out := RenderCaveats(f, nil, ok); out != "" {
		t.Errorf("expected no failure block on success, got %q", out)
	}
}

func TestRenderCaveatsDeclarationOrder(t *testing.T) {
	f := caveatFormula(
		formula.CaveatBlock{Text: "First block."},
		formula.CaveatBlock{
			When: formula.CaveatCondition{Missing: "ollama"},
			Text: "Second block.",
		},
		formula.CaveatBlock{Text: "Third block."},
	)

	out := RenderCaveats(f, nil, runWith(StepResult{Name: "hawk-tui", Status: StepVerified}))
	want := "First block.\n\nSecond block.\n\nThird block."
	if out != want {
		t.Errorf("expected blocks in declaration order:\n%q\ngot:\n%q", want, out)
	}
}

func TestRenderCaveatsDryRunUsesPlan(t *testing.T) {
	f := caveatFormula(formula.CaveatBlock{
		When: formula.CaveatCondition{Missing: "ollama"},
		Text: "Install ollama for local model support.",
	})

	planned := &InstallPlan{
		Root: "hawk-tui",
		Steps: []PlanStep{
			{Name: "ollama", Action: ActionUseSystem},
			{Name: "hawk-tui", Action: ActionInstall},
		},
	}
	if out := RenderCaveats(f, planned, nil); out != "" {
		t.Errorf("planned dependency counts as present in a dry run, got %q", out)
	}

	withoutOllama := &InstallPlan{
		Root:  "hawk-tui",
		Steps: []PlanStep{{Name: "hawk-tui", Action: ActionInstall}},
	}
	if out := RenderCaveats(f, withoutOllama, nil); out == "" {
		t.Error("unplanned dependency is missing in a dry run; block should render")
	}
}

func TestRenderCaveatsNoBlocks(t *testing.T) {
	f := caveatFormula()
	if out := RenderCaveats(f, nil, runWith()); out != "" {
		t.Errorf("expected empty caveats, got %q", out)
	}
	if out := RenderCaveats(nil, nil, nil); out != "" {
		t.Errorf("expected empty caveats for nil formula, got %q", out)
	}
}
