package envbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/formulary/formulary/pkg/formula"
)

func testFormula(name string) *formula.Formula {
	return &formula.Formula{
		Name:        name,
		Description: "test formula",
		Homepage:    "https://example.com",
		License:     "MIT",
		Runtime: formula.Runtime{
			Interpreter:  "python@3.13",
			PayloadBytes: 1 << 30,
		},
	}
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder(filepath.Join(t.TempDir(), "envs"), zerolog.Nop())
	b.lookPath = func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}
	b.freeBytes = func(path string) (uint64, error) {
		return 100 << 30, nil
	}
	b.run = func(ctx context.Context, argv []string) (string, error) {
		return "", nil
	}
	return b
}

func TestBuildCreatesEnvironment(t *testing.T) {
	b := testBuilder(t)

	var venvArgv []string
	b.run = func(ctx context.Context, argv []string) (string, error) {
		venvArgv = argv
		return "", nil
	}

	env, err := b.Build(context.Background(), testFormula("hawk-tui"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if env.Name != "hawk-tui" {
		t.Errorf("expected environment name hawk-tui, got %s", env.Name)
	}
	wantRoot := filepath.Join(b.envRoot, "hawk-tui")
	if env.Root != wantRoot {
		t.Errorf("expected root %s, got %s", wantRoot, env.Root)
	}
	if env.BinDir != filepath.Join(wantRoot, "bin") {
		t.Errorf("unexpected bin dir %s", env.BinDir)
	}
	if env.Interpreter != "/usr/bin/python3.13" {
		t.Errorf("expected versioned interpreter, got %s", env.Interpreter)
	}

	want := []string{"/usr/bin/python3.13", "-m", "venv", wantRoot}
	if len(venvArgv) != len(want) {
		t.Fatalf("expected argv %v, got %v", want, venvArgv)
	}
	for i := range want {
		if venvArgv[i] != want[i] {
			t.Errorf("argv[%d]: expected %s, got %s", i, want[i], venvArgv[i])
		}
	}
}

func TestBuildReplacesPriorContents(t *testing.T) {
	b := testBuilder(t)

	root := filepath.Join(b.envRoot, "hawk-tui")
	stale := filepath.Join(root, "stale.txt")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Build(context.Background(), testFormula("hawk-tui")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale file to be removed, stat err = %v", err)
	}
}

func TestBuildInsufficientSpace(t *testing.T) {
	b := testBuilder(t)
	b.freeBytes = func(path string) (uint64, error) {
		return 1 << 20, nil
	}

	_, err := b.Build(context.Background(), testFormula("hawk-tui"))
	if !IsInsufficientSpace(err) {
		t.Fatalf("expected INSUFFICIENT_SPACE, got %v", err)
	}

	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected BuildError, got %T", err)
	}
	if be.AvailableBytes != 1<<20 {
		t.Errorf("expected available bytes recorded, got %d", be.AvailableBytes)
	}
	if be.RequiredBytes <= 1<<30 {
		t.Errorf("expected required bytes to include slack, got %d", be.RequiredBytes)
	}
}

func TestBuildSpaceCheckSkippedWithoutPayloadHint(t *testing.T) {
	b := testBuilder(t)
	b.freeBytes = func(path string) (uint64, error) {
		return 0, nil
	}

	f := testFormula("hawk-tui")
	f.Runtime.PayloadBytes = 0

	if _, err := b.Build(context.Background(), f); err != nil {
		t.Fatalf("expected no space check without payload hint, got %v", err)
	}
}

func TestBuildInterpreterMissing(t *testing.T) {
	b := testBuilder(t)
	b.lookPath = func(name string) (string, error) {
		return "", fmt.Errorf("%s: not found", name)
	}

	_, err := b.Build(context.Background(), testFormula("hawk-tui"))
	if !IsRuntimeUnavailable(err) {
		t.Fatalf("expected RUNTIME_UNAVAILABLE, got %v", err)
	}
}

func TestBuildVenvFailure(t *testing.T) {
	b := testBuilder(t)
	b.run = func(ctx context.Context, argv []string) (string, error) {
		return "No module named venv", errors.New("exit status 1")
	}

	_, err := b.Build(context.Background(), testFormula("hawk-tui"))
	if !IsRuntimeUnavailable(err) {
		t.Fatalf("expected RUNTIME_UNAVAILABLE, got %v", err)
	}
	if !strings.Contains(err.Error(), "venv creation failed") {
		t.Errorf("expected venv failure detail, got %v", err)
	}
}

func TestResolveInterpreter(t *testing.T) {
	tests := []struct {
		name     string
		pin      string
		lookPath func(name string) (string, error)
		version  string
		want     string
		wantErr  bool
	}{
		{
			name: "versioned executable preferred",
			pin:  "python@3.13",
			lookPath: func(name string) (string, error) {
				if name == "python3.13" {
					return "/opt/bin/python3.13", nil
				}
				return "", errors.New("not found")
			},
			want: "/opt/bin/python3.13",
		},
		{
			name: "generic executable with matching version",
			pin:  "python@3.13",
			lookPath: func(name string) (string, error) {
				if name == "python" {
					return "/usr/bin/python", nil
				}
				return "", errors.New("not found")
			},
			version: "Python 3.13.2",
			want:    "/usr/bin/python",
		},
		{
			name: "generic executable with wrong version",
			pin:  "python@3.13",
			lookPath: func(name string) (string, error) {
				if name == "python" {
					return "/usr/bin/python", nil
				}
				return "", errors.New("not found")
			},
			version: "Python 3.11.9",
			wantErr: true,
		},
		{
			name: "unversioned pin",
			pin:  "python3",
			lookPath: func(name string) (string, error) {
				if name == "python3" {
					return "/usr/bin/python3", nil
				}
				return "", errors.New("not found")
			},
			want: "/usr/bin/python3",
		},
		{
			name: "empty pin rejected",
			pin:  "",
			lookPath: func(name string) (string, error) {
				return "/usr/bin/" + name, nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBuilder(t)
			b.lookPath = tt.lookPath
			b.run = func(ctx context.Context, argv []string) (string, error) {
				return tt.version, nil
			}

			f := testFormula("hawk-tui")
			f.Runtime.Interpreter = tt.pin

			got, err := b.resolveInterpreter(context.Background(), f)
			if tt.wantErr {
				if !IsRuntimeUnavailable(err) {
					t.Fatalf("expected RUNTIME_UNAVAILABLE, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveInterpreter failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestVersionMatches(t *testing.T) {
	tests := []struct {
		output string
		pin    string
		want   bool
	}{
		{"Python 3.13.2", "3.13", true},
		{"Python 3.13", "3.13", true},
		{"Python 3.1", "3.13", false},
		{"Python 3.11.9", "3.13", false},
		{"", "3.13", false},
	}
	for _, tt := range tests {
		if got := versionMatches(tt.output, tt.pin); got != tt.want {
			t.Errorf("versionMatches(%q, %q) = %v, want %v", tt.output, tt.pin, got, tt.want)
		}
	}
}

func TestChecksumStableAcrossRebuilds(t *testing.T) {
	writeTree := func(t *testing.T, root string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "bin", "hawk-tui"), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("version = 3.13.2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	first := &Environment{Name: "hawk-tui", Root: filepath.Join(t.TempDir(), "hawk-tui")}
	second := &Environment{Name: "hawk-tui", Root: filepath.Join(t.TempDir(), "hawk-tui")}
	writeTree(t, first.Root)
	writeTree(t, second.Root)

	a, err := first.Checksum()
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	b, err := second.Checksum()
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if a != b {
		t.Errorf("expected identical checksums for identical trees, got %s vs %s", a, b)
	}
}

func TestChecksumDetectsContentChange(t *testing.T) {
	env := &Environment{Name: "hawk-tui", Root: t.TempDir()}
	if err := os.WriteFile(filepath.Join(env.Root, "pyvenv.cfg"), []byte("version = 3.13.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	before, err := env.Checksum()
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(env.Root, "pyvenv.cfg"), []byte("version = 3.11.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	after, err := env.Checksum()
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if before == after {
		t.Error("expected checksum to change when file contents change")
	}
}
