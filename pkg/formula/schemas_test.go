package formula

import (
	"testing"
)

func TestSchemaRegistry_ValidateFormula_Valid(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.ValidateFormula([]byte(validDoc)); err != nil {
		t.Fatalf("Expected valid document, got: %v", err)
	}
}

func TestSchemaRegistry_ValidateFormula_BadTier(t *testing.T) {
	doc := `
name: x
description: y
homepage: https://example.com
license: MIT
source:
  url: https://example.com/x.tar.gz
  sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
dependencies:
  - name: ollama
    tier: mandatory
`
	sr := NewSchemaRegistry()
	if err := sr.ValidateFormula([]byte(doc)); err == nil {
		t.Fatal("Expected schema violation for unknown tier")
	}
}

func TestSchemaRegistry_ValidateFormula_ShortDigest(t *testing.T) {
	doc := `
name: x
description: y
homepage: https://example.com
license: MIT
source:
  url: https://example.com/x.tar.gz
  sha256: abc123
`
	sr := NewSchemaRegistry()
	if err := sr.ValidateFormula([]byte(doc)); err == nil {
		t.Fatal("Expected schema violation for short digest")
	}
}

func TestSchemaRegistry_Register_BadSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.Register("broken", "#X: {"); err == nil {
		t.Fatal("Expected compile error for malformed schema")
	}
}

func TestSchemaRegistry_Schema_Lookup(t *testing.T) {
	sr := NewSchemaRegistry()
	if _, ok := sr.Schema("formula"); !ok {
		t.Fatal("Expected built-in formula schema to be registered")
	}
	if _, ok := sr.Schema("nope"); ok {
		t.Fatal("Expected lookup miss for unregistered schema")
	}
}
