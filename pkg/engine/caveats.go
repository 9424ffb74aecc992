package engine

import (
	"strings"

	"github.com/formulary/formulary/pkg/formula"
)

// RenderCaveats produces the post-install notes for one executed formula.
// Blocks render in declaration order; a guarded block renders only when its
// condition holds against the run outcome. The function is pure: it inspects
// the plan and result, never the system.
//
// With a nil result (a dry run), presence is judged from the plan alone: a
// dependency is present when the plan has a step for it.
func RenderCaveats(f *formula.Formula, plan *InstallPlan, result *RunResult) string {
	if f == nil || len(f.Caveats) == 0 {
		return ""
	}

	rootFailed := false
	if result != nil {
		if sr, ok := result.StepResult(f.Name); ok {
			rootFailed = sr.Status == StepFailed
		}
	}

	var blocks []string
	for _, c := range f.Caveats {
		if !caveatApplies(c.When, plan, result, rootFailed) {
			continue
		}
		text := strings.TrimRight(c.Text, "\n")
		if text == "" {
			continue
		}
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}

// caveatApplies evaluates one block's guard. An empty guard always applies.
func caveatApplies(when formula.CaveatCondition, plan *InstallPlan, result *RunResult, rootFailed bool) bool {
	switch {
	case when.Missing != "":
		return !present(plan, result, when.Missing)
	case when.Present != "":
		return present(plan, result, when.Present)
	case when.OnFailure:
		return rootFailed
	default:
		return true
	}
}

func present(plan *InstallPlan, result *RunResult, name string) bool {
	if result != nil {
		return result.Verified(name)
	}
	if plan != nil {
		_, ok := plan.Step(name)
		return ok
	}
	return false
}
