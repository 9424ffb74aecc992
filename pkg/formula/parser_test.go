package formula

import (
	"errors"
	"strings"
	"testing"
)

const validDoc = `
name: hawk-tui
description: Terminal-first video creation tool
homepage: https://example.com/hawk
license: MIT
source:
  url: https://files.example.com/hawk_tui-1.0.0.tar.gz
  sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
runtime:
  interpreter: python3.13
  payload_bytes: 1024
install: isolated-environment
dependencies:
  - name: python@3.13
    tier: required
  - name: ollama
    tier: recommended
  - name: chafa
    tier: optional
test:
  command: ["hawk-tui", "--version"]
  expect_output: "hawk-tui"
caveats:
  - when: { missing: ollama }
    text: "AI features require Ollama."
`

func TestParser_Parse_Valid(t *testing.T) {
	f, err := NewParser().Parse(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if f.Name != "hawk-tui" {
		t.Errorf("Expected name hawk-tui, got %s", f.Name)
	}
	if f.Install != StrategyIsolatedEnvironment {
		t.Errorf("Expected isolated-environment strategy, got %s", f.Install)
	}
	if len(f.Dependencies) != 3 {
		t.Fatalf("Expected 3 dependencies, got %d", len(f.Dependencies))
	}
	if f.Dependencies[1].Name != "ollama" || f.Dependencies[1].Tier != TierRecommended {
		t.Errorf("Unexpected second dependency: %+v", f.Dependencies[1])
	}
	if f.Test == nil || f.Test.ExpectOutput != "hawk-tui" {
		t.Errorf("Unexpected test spec: %+v", f.Test)
	}
	if len(f.Caveats) != 1 || f.Caveats[0].When.Missing != "ollama" {
		t.Errorf("Unexpected caveats: %+v", f.Caveats)
	}
}

func TestParser_Parse_DefaultsInstallStrategy(t *testing.T) {
	doc := strings.Replace(validDoc, "install: isolated-environment\n", "", 1)
	f, err := NewParser().Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if f.Install != StrategyIsolatedEnvironment {
		t.Errorf("Expected defaulted strategy, got %s", f.Install)
	}
}

func TestParser_Parse_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		field  string
	}{
		{"no name", "name: hawk-tui\n", "name"},
		{"no description", "description: Terminal-first video creation tool\n", "description"},
		{"no homepage", "homepage: https://example.com/hawk\n", "homepage"},
		{"no license", "license: MIT\n", "license"},
		{"no source url", "  url: https://files.example.com/hawk_tui-1.0.0.tar.gz\n", "source.url"},
		{"no source digest", "  sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08\n", "source.sha256"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(validDoc, tt.remove, "", 1)
			_, err := NewParser().Parse(strings.NewReader(doc))
			if err == nil {
				t.Fatal("Expected parse error, got nil")
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *ParseError, got %T: %v", err, err)
			}
			if perr.Code != CodeMissingField {
				t.Errorf("Expected MISSING_FIELD, got %s", perr.Code)
			}
			if perr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, perr.Field)
			}
			if !IsMissingField(err) {
				t.Error("IsMissingField should report true")
			}
		})
	}
}

func TestParser_Parse_DuplicateDependency(t *testing.T) {
	doc := strings.Replace(validDoc,
		"  - name: chafa\n    tier: optional\n",
		"  - name: ollama\n    tier: optional\n", 1)

	_, err := NewParser().Parse(strings.NewReader(doc))
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Code != CodeDuplicateDependency {
		t.Fatalf("Expected DUPLICATE_DEPENDENCY, got %v", err)
	}
	if perr.Field != "ollama" {
		t.Errorf("Expected duplicate name ollama, got %q", perr.Field)
	}
}

func TestParser_Parse_InvalidTier(t *testing.T) {
	doc := strings.Replace(validDoc, "tier: optional", "tier: nice-to-have", 1)
	_, err := NewParser().Parse(strings.NewReader(doc))

	var perr *ParseError
	if !errors.As(err, &perr) || perr.Code != CodeInvalidValue {
		t.Fatalf("Expected INVALID_VALUE, got %v", err)
	}
}

func TestParser_Parse_UnknownField(t *testing.T) {
	doc := validDoc + "\nbottled: true\n"
	_, err := NewParser().Parse(strings.NewReader(doc))

	var perr *ParseError
	if !errors.As(err, &perr) || perr.Code != CodeMalformedDocument {
		t.Fatalf("Expected MALFORMED_DOCUMENT for unknown field, got %v", err)
	}
}

func TestParser_Parse_ConflictingCaveatGuards(t *testing.T) {
	doc := strings.Replace(validDoc,
		"when: { missing: ollama }",
		"when: { missing: ollama, on_failure: true }", 1)

	_, err := NewParser().Parse(strings.NewReader(doc))
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Code != CodeInvalidValue {
		t.Fatalf("Expected INVALID_VALUE for conflicting guards, got %v", err)
	}
}

func TestParser_Parse_BadDigestRejectedBySchema(t *testing.T) {
	doc := strings.Replace(validDoc,
		"sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		"sha256: nothex", 1)

	_, err := NewParser().Parse(strings.NewReader(doc))
	if err == nil {
		t.Fatal("Expected error for malformed digest, got nil")
	}
}

func TestFormula_Dependency(t *testing.T) {
	f, err := NewParser().Parse(strings.NewReader(validDoc))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	dep, ok := f.Dependency("chafa")
	if !ok || dep.Tier != TierOptional {
		t.Errorf("Expected optional chafa dependency, got %+v ok=%v", dep, ok)
	}
	if _, ok := f.Dependency("ffmpeg"); ok {
		t.Error("Expected lookup miss for undeclared dependency")
	}
}
