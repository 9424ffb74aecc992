// Package formula provides parsing and validation of declarative package
// descriptors for the formulary install engine.
//
// # Overview
//
// A formula is a YAML document stating what a piece of software needs (a
// pinned runtime plus tiered dependencies), how to install it (an install
// strategy), how to validate it (a smoke test with an expected-output
// predicate), and what to tell the user afterwards (conditional caveat
// blocks). The document contains no executable logic; everything it declares
// is interpreted by the engine.
//
// # Components
//
// Parser: strict YAML decoding with required-field enforcement, invariant
// checks (no duplicate dependency names, at most one caveat guard) and
// struct-tag validation.
//
// SchemaRegistry: CUE schemas applied to the raw document before the decoded
// form is trusted. The built-in #Formula schema types every section.
//
// # Usage
//
//	parser := formula.NewParser()
//	f, err := parser.ParseFile("hawk-tui.yaml")
//	if err != nil {
//	    var perr *formula.ParseError
//	    if errors.As(err, &perr) && perr.Code == formula.CodeMissingField {
//	        // report the missing field
//	    }
//	}
//
// Formulas are immutable after parsing and are discarded once their install
// run completes; re-installation re-parses the document.
package formula
