package formula

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// builtinFormulaSchema is the CUE schema every formula document must satisfy.
// It complements struct-tag validation with structural typing of the raw
// document before it is trusted.
const builtinFormulaSchema = `
#Formula: {
	name:        string & !=""
	description: string & !=""
	homepage:    string & !=""
	license:     string & !=""

	source: {
		url:    string & !=""
		sha256: string & =~"^[0-9a-fA-F]{64}$"
	}

	runtime?: {
		interpreter:    string & !=""
		payload_bytes?: int & >=0
	}

	install?: "isolated-environment" | "direct-copy" | "compiled-build"

	dependencies?: [...{
		name: string & !=""
		tier: "required" | "recommended" | "optional" | "build"
	}]

	test?: {
		command: [string, ...string]
		expect_output?: string
	}

	caveats?: [...{
		when?: {
			missing?:    string
			present?:    string
			on_failure?: bool
		}
		text: string & !=""
	}]
}
`

// SchemaRegistry manages CUE schemas for formula validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in formula
// schema registered.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	// The built-in schema is a compile-time constant; failure here is a
	// programming error surfaced on first validation.
	_ = sr.Register("formula", builtinFormulaSchema)
	return sr
}

// Register compiles and registers a CUE schema under the given name.
func (sr *SchemaRegistry) Register(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	sr.schemas[name] = val
	return nil
}

// Schema retrieves a registered schema by name.
func (sr *SchemaRegistry) Schema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateFormula validates a raw YAML formula document against the built-in
// formula schema.
func (sr *SchemaRegistry) ValidateFormula(raw []byte) error {
	schema, ok := sr.Schema("formula")
	if !ok {
		return fmt.Errorf("formula schema not registered")
	}

	def := schema.LookupPath(cue.ParsePath("#Formula"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("formula schema missing #Formula: %w", err)
	}

	file, err := cueyaml.Extract("formula", raw)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	doc := sr.ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("failed to build document: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Final()); err != nil {
		return err
	}
	return nil
}
