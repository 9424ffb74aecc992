package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/formulary/formulary/pkg/formula"
)

// ResolveOptions carries the caller's tier selections for one resolution.
type ResolveOptions struct {
	// WithOptional names the optional dependencies to include. Selecting an
	// optional dependency promotes it: if it cannot be satisfied, resolution
	// fails with MISSING_REQUIRED.
	WithOptional []string

	// SkipRecommended excludes recommended dependencies from the plan.
	SkipRecommended bool
}

func (o ResolveOptions) optionalSelected(name string) bool {
	for _, n := range o.WithOptional {
		if n == name {
			return true
		}
	}
	return false
}

// Resolver computes install plans from formulas. Given a root formula, a
// catalog of installable dependency formulas and a system availability query,
// it produces an ordered InstallPlan or a fatal ResolutionError.
type Resolver struct {
	catalog Catalog
	system  SystemPackages
	logger  zerolog.Logger
}

// NewResolver creates a resolver over the given catalog and system query.
func NewResolver(catalog Catalog, system SystemPackages, logger zerolog.Logger) *Resolver {
	if catalog == nil {
		catalog = Catalog{}
	}
	return &Resolver{
		catalog: catalog,
		system:  system,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// resolution is the per-call state of one Resolve invocation. System
// availability answers are cached here and discarded with it.
type resolution struct {
	opts      ResolveOptions
	system    SystemPackages
	plan      *InstallPlan
	placed    map[string]bool
	resolving map[string]bool
	path      []string
}

// Resolve traverses the formula's dependency set and produces an install
// plan. Dependencies appear in the plan before the steps that need them;
// ties between independent dependencies are broken by declaration order, so
// the ordering is deterministic across repeated calls on identical input.
func (r *Resolver) Resolve(ctx context.Context, root *formula.Formula, opts ResolveOptions) (*InstallPlan, error) {
	if root == nil {
		return nil, fmt.Errorf("resolve: root formula is nil")
	}

	res := &resolution{
		opts:   opts,
		system: newCachingSystemPackages(r.system),
		plan: &InstallPlan{
			ID:        uuid.New().String(),
			Root:      root.Name,
			CreatedAt: time.Now(),
		},
		placed:    make(map[string]bool),
		resolving: make(map[string]bool),
	}

	if err := r.resolveFormula(ctx, res, root, formula.Tier(""), false); err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("root", root.Name).
		Int("steps", len(res.plan.Steps)).
		Strs("missing_recommended", res.plan.MissingRecommended).
		Msg("plan resolved")

	return res.plan, nil
}

// resolveFormula places f's dependencies and then f itself. tier is the tier
// under which f entered the graph; the root enters under the empty tier and
// is recorded as required.
func (r *Resolver) resolveFormula(ctx context.Context, res *resolution, f *formula.Formula, tier formula.Tier, buildOnly bool) error {
	if res.placed[f.Name] {
		return nil
	}
	if res.resolving[f.Name] {
		return NewCycleError(append(cycleStart(res.path, f.Name), f.Name))
	}
	res.resolving[f.Name] = true
	res.path = append(res.path, f.Name)
	defer func() {
		delete(res.resolving, f.Name)
		res.path = res.path[:len(res.path)-1]
	}()

	var dependsOn []string
	for _, dep := range f.Dependencies {
		placed, err := r.resolveDependency(ctx, res, dep)
		if err != nil {
			return err
		}
		if placed {
			dependsOn = append(dependsOn, dep.Name)
		}
	}

	if tier == "" {
		tier = formula.TierRequired
	}
	res.plan.Steps = append(res.plan.Steps, PlanStep{
		Name:      f.Name,
		Tier:      tier,
		Action:    ActionInstall,
		BuildOnly: buildOnly,
		Formula:   f,
		DependsOn: dependsOn,
	})
	res.placed[f.Name] = true
	return nil
}

// resolveDependency applies the tier policy for one declared dependency and
// reports whether a step for it was (or already is) in the plan.
func (r *Resolver) resolveDependency(ctx context.Context, res *resolution, dep formula.Dependency) (bool, error) {
	if res.placed[dep.Name] {
		return true, nil
	}

	// A dependency currently on the resolution stack is a cycle regardless
	// of tier.
	if res.resolving[dep.Name] {
		return false, NewCycleError(append(cycleStart(res.path, dep.Name), dep.Name))
	}

	onSystem, err := res.system.Has(ctx, dep.Name)
	if err != nil {
		return false, fmt.Errorf("resolve: system query for %q: %w", dep.Name, err)
	}
	child, inCatalog := r.catalog[dep.Name]

	switch dep.Tier {
	case formula.TierRequired, formula.TierBuild:
		if onSystem {
			r.placeSystemStep(res, dep)
			return true, nil
		}
		if inCatalog {
			return true, r.resolveFormula(ctx, res, child, dep.Tier, dep.Tier == formula.TierBuild)
		}
		return false, NewMissingRequiredError(dep.Name)

	case formula.TierRecommended:
		if onSystem {
			r.placeSystemStep(res, dep)
			return true, nil
		}
		if inCatalog && !res.opts.SkipRecommended {
			return true, r.resolveFormula(ctx, res, child, dep.Tier, false)
		}
		if res.opts.SkipRecommended {
			res.plan.SkippedRecommended = append(res.plan.SkippedRecommended, dep.Name)
		} else {
			res.plan.MissingRecommended = append(res.plan.MissingRecommended, dep.Name)
		}
		return false, nil

	case formula.TierOptional:
		if !res.opts.optionalSelected(dep.Name) {
			res.plan.UnselectedOptional = append(res.plan.UnselectedOptional, dep.Name)
			return false, nil
		}
		if onSystem {
			r.placeSystemStep(res, dep)
			return true, nil
		}
		if inCatalog {
			return true, r.resolveFormula(ctx, res, child, dep.Tier, false)
		}
		// Selection promoted the optional dependency to required.
		return false, NewMissingRequiredError(dep.Name)

	default:
		return false, fmt.Errorf("resolve: dependency %q has invalid tier %q", dep.Name, dep.Tier)
	}
}

// placeSystemStep records a dependency satisfied by the system so the
// ordering property stays visible in plan output.
func (r *Resolver) placeSystemStep(res *resolution, dep formula.Dependency) {
	res.plan.Steps = append(res.plan.Steps, PlanStep{
		Name:   dep.Name,
		Tier:   dep.Tier,
		Action: ActionUseSystem,
	})
	res.placed[dep.Name] = true
}

// cycleStart returns the suffix of path beginning at the first occurrence of
// name, copied so later stack mutation cannot corrupt the error.
func cycleStart(path []string, name string) []string {
	for i, n := range path {
		if n == name {
			out := make([]string, len(path)-i)
			copy(out, path[i:])
			return out
		}
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
