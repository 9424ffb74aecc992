package formula

import (
	"fmt"
)

// Tier classifies how necessary a dependency is to the formula.
type Tier string

const (
	// TierRequired dependencies must be present or installable; resolution
	// fails without them.
	TierRequired Tier = "required"

	// TierRecommended dependencies are included by default but their absence
	// only degrades functionality.
	TierRecommended Tier = "recommended"

	// TierOptional dependencies are included only when explicitly selected.
	TierOptional Tier = "optional"

	// TierBuild dependencies are needed during installation only and may be
	// removed from the environment afterwards.
	TierBuild Tier = "build"
)

// Validate checks if the tier is valid.
func (t Tier) Validate() error {
	switch t {
	case TierRequired, TierRecommended, TierOptional, TierBuild:
		return nil
	default:
		return fmt.Errorf("invalid dependency tier: %s", t)
	}
}

// InstallStrategy selects how a formula's payload is materialized.
type InstallStrategy string

const (
	// StrategyIsolatedEnvironment installs into a private virtual environment.
	StrategyIsolatedEnvironment InstallStrategy = "isolated-environment"

	// StrategyDirectCopy copies the fetched artifact into place unchanged.
	StrategyDirectCopy InstallStrategy = "direct-copy"

	// StrategyCompiledBuild builds the artifact from source before installing.
	StrategyCompiledBuild InstallStrategy = "compiled-build"
)

// Validate checks if the install strategy is valid.
func (s InstallStrategy) Validate() error {
	switch s {
	case StrategyIsolatedEnvironment, StrategyDirectCopy, StrategyCompiledBuild:
		return nil
	default:
		return fmt.Errorf("invalid install strategy: %s", s)
	}
}

// Source is a content-addressed reference to the artifact being installed.
// It is immutable once the formula is loaded.
type Source struct {
	// URL is where the pinned artifact is fetched from.
	URL string `yaml:"url" json:"url" validate:"required,url"`

	// SHA256 is the expected hex digest of the artifact.
	SHA256 string `yaml:"sha256" json:"sha256" validate:"required,len=64,hexadecimal"`
}

// Runtime pins the interpreter the formula's environment is built around.
type Runtime struct {
	// Interpreter is the pinned runtime, e.g. "python3.13" or "python@3.13".
	Interpreter string `yaml:"interpreter" json:"interpreter" validate:"required"`

	// PayloadBytes is a disk-space hint for large dependency payloads
	// (model weights and similar). Zero means no hint.
	PayloadBytes uint64 `yaml:"payload_bytes" json:"payload_bytes,omitempty"`
}

// Dependency declares one edge of the formula's dependency set.
type Dependency struct {
	// Name identifies the dependency. It may refer to another formula in the
	// catalog or to an opaque system package.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Tier is the dependency's necessity classification.
	Tier Tier `yaml:"tier" json:"tier" validate:"required"`
}

// TestSpec is the post-install smoke test: an executable invocation plus an
// expected-output substring predicate.
type TestSpec struct {
	// Command is the argv of the test invocation, resolved inside the
	// formula's environment.
	Command []string `yaml:"command" json:"command" validate:"required,min=1"`

	// ExpectOutput must appear as a substring of the combined output for the
	// test to pass.
	ExpectOutput string `yaml:"expect_output" json:"expect_output"`
}

// CaveatCondition guards a caveat block. Exactly one field should be set;
// an empty condition always matches.
type CaveatCondition struct {
	// Missing matches when the named dependency did not end up present.
	Missing string `yaml:"missing,omitempty" json:"missing,omitempty"`

	// Present matches when the named dependency ended up present.
	Present string `yaml:"present,omitempty" json:"present,omitempty"`

	// OnFailure matches when the formula's own install ended in failure.
	OnFailure bool `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
}

// CaveatBlock is one conditional block of post-install user guidance.
type CaveatBlock struct {
	// When guards the block. Unmatched blocks are omitted from the output.
	When CaveatCondition `yaml:"when" json:"when"`

	// Text is the block body shown to the user.
	Text string `yaml:"text" json:"text" validate:"required"`
}

// Formula is one declarative package definition: metadata, dependency
// declarations and lifecycle hooks. It is read-only after parsing and
// discarded once its install run completes.
type Formula struct {
	// Name is the package name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description is a one-line display string.
	Description string `yaml:"description" json:"description" validate:"required"`

	// Homepage is the upstream project URL.
	Homepage string `yaml:"homepage" json:"homepage" validate:"required,url"`

	// License is an informational license identifier.
	License string `yaml:"license" json:"license" validate:"required"`

	// Source pins the artifact to install.
	Source Source `yaml:"source" json:"source" validate:"required"`

	// Runtime pins the interpreter for isolated-environment installs.
	Runtime Runtime `yaml:"runtime" json:"runtime"`

	// Install selects the install strategy. Defaults to isolated-environment.
	Install InstallStrategy `yaml:"install" json:"install"`

	// Dependencies is the ordered dependency list. Order is significant: the
	// resolver breaks topological ties by declaration order.
	Dependencies []Dependency `yaml:"dependencies" json:"dependencies,omitempty"`

	// Test is the optional post-install smoke test.
	Test *TestSpec `yaml:"test" json:"test,omitempty"`

	// Caveats are the ordered conditional guidance blocks.
	Caveats []CaveatBlock `yaml:"caveats" json:"caveats,omitempty"`
}

// Dependency returns the declared dependency with the given name, if any.
func (f *Formula) Dependency(name string) (Dependency, bool) {
	for _, d := range f.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}
