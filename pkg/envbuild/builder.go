// Package envbuild constructs the isolated runtime environments formulas
// install into. Each environment is a private virtual environment scoped to
// one formula, fully replaced on every build and never shared.
package envbuild

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/formulary/formulary/pkg/formula"
)

// spaceSlackBytes is added on top of a formula's payload hint so a build
// never consumes the last free block of the volume.
const spaceSlackBytes = 256 << 20

// Environment is one isolated runtime, exclusively owned by the executor
// operating on it. No package installed here is visible outside it.
type Environment struct {
	// Name is the owning formula's name.
	Name string `json:"name"`

	// Root is the environment directory.
	Root string `json:"root"`

	// BinDir holds the environment's executables (pip, the installed
	// entry points, the test command).
	BinDir string `json:"bin_dir"`

	// Interpreter is the resolved runtime interpreter path.
	Interpreter string `json:"interpreter"`
}

// Builder creates environments under a common root directory.
type Builder struct {
	// envRoot is the directory environments are created under.
	envRoot string

	logger zerolog.Logger

	// run invokes a command and returns its combined output. Overridable in
	// tests.
	run func(ctx context.Context, argv []string) (string, error)

	// freeBytes reports available disk space at a path. Overridable in tests.
	freeBytes func(path string) (uint64, error)

	// lookPath resolves an executable name. Overridable in tests.
	lookPath func(name string) (string, error)
}

// NewBuilder creates a builder placing environments under envRoot.
func NewBuilder(envRoot string, logger zerolog.Logger) *Builder {
	return &Builder{
		envRoot:   envRoot,
		logger:    logger.With().Str("component", "envbuild").Logger(),
		run:       runCombined,
		freeBytes: availableBytes,
		lookPath:  exec.LookPath,
	}
}

// Build creates a filesystem-isolated environment for the formula. Building
// is idempotent: prior contents of the environment directory are fully
// replaced, never merged. The pinned interpreter and the required disk space
// are verified before anything is written.
func (b *Builder) Build(ctx context.Context, f *formula.Formula) (*Environment, error) {
	interp, err := b.resolveInterpreter(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := b.checkSpace(f); err != nil {
		return nil, err
	}

	root := filepath.Join(b.envRoot, f.Name)

	// Fresh build: never merge into prior contents.
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("envbuild: clearing %s: %w", root, err)
	}
	if err := os.MkdirAll(b.envRoot, 0o755); err != nil {
		return nil, fmt.Errorf("envbuild: creating %s: %w", b.envRoot, err)
	}

	b.logger.Debug().
		Str("formula", f.Name).
		Str("root", root).
		Str("interpreter", interp).
		Msg("building environment")

	if out, err := b.run(ctx, []string{interp, "-m", "venv", root}); err != nil {
		return nil, &BuildError{
			Code:    CodeRuntimeUnavailable,
			Formula: f.Name,
			Runtime: f.Runtime.Interpreter,
			Err:     fmt.Errorf("venv creation failed: %w: %s", err, out),
		}
	}

	return &Environment{
		Name:        f.Name,
		Root:        root,
		BinDir:      filepath.Join(root, "bin"),
		Interpreter: interp,
	}, nil
}

// checkSpace verifies the environments root can hold the formula's payload
// before any write happens.
func (b *Builder) checkSpace(f *formula.Formula) error {
	required := f.Runtime.PayloadBytes
	if required == 0 {
		return nil
	}
	required += spaceSlackBytes

	avail, err := b.freeBytes(b.envRoot)
	if err != nil {
		// The root may not exist yet; probe its parent.
		avail, err = b.freeBytes(filepath.Dir(b.envRoot))
		if err != nil {
			return fmt.Errorf("envbuild: statfs %s: %w", b.envRoot, err)
		}
	}

	if avail < required {
		return &BuildError{
			Code:           CodeInsufficientSpace,
			Formula:        f.Name,
			RequiredBytes:  required,
			AvailableBytes: avail,
		}
	}
	return nil
}

// availableBytes reports the free disk space at path via statfs.
func availableBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// runCombined executes argv and returns its combined output.
func runCombined(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
