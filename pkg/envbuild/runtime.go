package envbuild

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/formulary/formulary/pkg/formula"
)

// interpreterSpec splits a pinned interpreter into base name and version,
// accepting both "python3.13" and "python@3.13".
var interpreterSpec = regexp.MustCompile(`^([a-zA-Z_+-]+)[@]?([0-9][0-9.]*)?$`)

// resolveInterpreter locates the formula's pinned runtime interpreter on
// PATH. The versioned name is probed first; if only the generic name exists,
// its reported version must match the pin. Any mismatch or absence is
// RUNTIME_UNAVAILABLE: the builder never silently picks a different version.
func (b *Builder) resolveInterpreter(ctx context.Context, f *formula.Formula) (string, error) {
	pin := f.Runtime.Interpreter
	if pin == "" {
		return "", &BuildError{
			Code:    CodeRuntimeUnavailable,
			Formula: f.Name,
			Err:     fmt.Errorf("formula pins no runtime interpreter"),
		}
	}

	m := interpreterSpec.FindStringSubmatch(pin)
	if m == nil {
		return "", &BuildError{
			Code:    CodeRuntimeUnavailable,
			Formula: f.Name,
			Runtime: pin,
			Err:     fmt.Errorf("unparseable interpreter pin"),
		}
	}
	base, version := m[1], m[2]

	// Exact versioned executable, e.g. python3.13.
	if version != "" {
		if path, err := b.lookPath(base + version); err == nil {
			return path, nil
		}
	}

	path, err := b.lookPath(base)
	if err != nil {
		return "", &BuildError{
			Code:    CodeRuntimeUnavailable,
			Formula: f.Name,
			Runtime: pin,
			Err:     err,
		}
	}

	if version == "" {
		return path, nil
	}

	// Generic executable found; verify it reports the pinned version rather
	// than silently accepting whatever is installed.
	out, err := b.run(ctx, []string{path, "--version"})
	if err != nil {
		return "", &BuildError{
			Code:    CodeRuntimeUnavailable,
			Formula: f.Name,
			Runtime: pin,
			Err:     fmt.Errorf("version probe failed: %w", err),
		}
	}
	if !versionMatches(out, version) {
		return "", &BuildError{
			Code:    CodeRuntimeUnavailable,
			Formula: f.Name,
			Runtime: pin,
			Err:     fmt.Errorf("installed version %q does not match pin", strings.TrimSpace(out)),
		}
	}
	return path, nil
}

// versionMatches reports whether a "--version" output contains a version
// starting with the pinned prefix, matched on whole dotted components.
func versionMatches(output, pin string) bool {
	for _, field := range strings.Fields(output) {
		if field == pin || strings.HasPrefix(field, pin+".") {
			return true
		}
	}
	return false
}
