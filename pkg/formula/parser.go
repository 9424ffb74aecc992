package formula

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// requiredFields are the document fields every formula must carry, in the
// order they are reported when absent.
var requiredFields = []struct {
	path  string
	check func(*Formula) bool
}{
	{"name", func(f *Formula) bool { return f.Name != "" }},
	{"description", func(f *Formula) bool { return f.Description != "" }},
	{"homepage", func(f *Formula) bool { return f.Homepage != "" }},
	{"source.url", func(f *Formula) bool { return f.Source.URL != "" }},
	{"source.sha256", func(f *Formula) bool { return f.Source.SHA256 != "" }},
	{"license", func(f *Formula) bool { return f.License != "" }},
}

// Parser parses and validates formula documents. A zero Parser is not usable;
// construct one with NewParser.
type Parser struct {
	validator *validator.Validate
	schemas   *SchemaRegistry
}

// NewParser creates a new formula parser with the built-in schema registry.
func NewParser() *Parser {
	return &Parser{
		validator: validator.New(),
		schemas:   NewSchemaRegistry(),
	}
}

// ParseFile parses the formula document at path.
func (p *Parser) ParseFile(path string) (*Formula, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newParseError(CodeMalformedDocument, "", err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse decodes a formula document, enforces required fields and invariants,
// and validates the result against the formula schema. The returned Formula
// is read-only thereafter; re-installation re-parses.
func (p *Parser) Parse(r io.Reader) (*Formula, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, newParseError(CodeMalformedDocument, "", err)
	}

	var f Formula
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, newParseError(CodeMalformedDocument, "", err)
	}

	if err := p.checkRequired(&f); err != nil {
		return nil, err
	}
	if err := p.applyDefaults(&f); err != nil {
		return nil, err
	}
	if err := p.checkInvariants(&f); err != nil {
		return nil, err
	}

	if err := p.schemas.ValidateFormula(raw); err != nil {
		return nil, newParseError(CodeSchemaViolation, "", err)
	}

	if err := p.validator.Struct(&f); err != nil {
		return nil, newParseError(CodeInvalidValue, firstValidatorField(err), err)
	}

	return &f, nil
}

// checkRequired reports the first missing required field.
func (p *Parser) checkRequired(f *Formula) error {
	for _, rf := range requiredFields {
		if !rf.check(f) {
			return newParseError(CodeMissingField, rf.path, nil)
		}
	}
	return nil
}

// applyDefaults fills defaulted fields and rejects unknown enum values.
func (p *Parser) applyDefaults(f *Formula) error {
	if f.Install == "" {
		f.Install = StrategyIsolatedEnvironment
	}
	if err := f.Install.Validate(); err != nil {
		return newParseError(CodeInvalidValue, "install", err)
	}
	for i, dep := range f.Dependencies {
		if dep.Name == "" {
			return newParseError(CodeMissingField, fmt.Sprintf("dependencies[%d].name", i), nil)
		}
		if err := dep.Tier.Validate(); err != nil {
			return newParseError(CodeInvalidValue, fmt.Sprintf("dependencies[%d].tier", i), err)
		}
	}
	return nil
}

// checkInvariants enforces invariants the schema cannot express.
func (p *Parser) checkInvariants(f *Formula) error {
	seen := make(map[string]bool, len(f.Dependencies))
	for _, dep := range f.Dependencies {
		if seen[dep.Name] {
			return newParseError(CodeDuplicateDependency, dep.Name, nil)
		}
		seen[dep.Name] = true
	}
	if f.Test != nil && len(f.Test.Command) == 0 {
		return newParseError(CodeMissingField, "test.command", nil)
	}
	for i, c := range f.Caveats {
		if c.Text == "" {
			return newParseError(CodeMissingField, fmt.Sprintf("caveats[%d].text", i), nil)
		}
		set := 0
		if c.When.Missing != "" {
			set++
		}
		if c.When.Present != "" {
			set++
		}
		if c.When.OnFailure {
			set++
		}
		if set > 1 {
			return newParseError(CodeInvalidValue, fmt.Sprintf("caveats[%d].when", i),
				fmt.Errorf("at most one guard may be set"))
		}
	}
	return nil
}

// firstValidatorField extracts the first offending field from a validator
// error for reporting.
func firstValidatorField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].StructNamespace())
	}
	return ""
}
