package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		sourceIntegrityPolicy(),
		licenseAllowlistPolicy(),
		dependencyTierPolicy(),
		formulaNamingPolicy(),
	}
}

// sourceIntegrityPolicy requires an https source URL and a pinned digest.
func sourceIntegrityPolicy() Policy {
	return Policy{
		Name:        "source-integrity",
		Description: "Requires an https source URL and a pinned sha256 digest",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"source", "integrity"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package formulary.policies.source

import rego.v1

deny contains violation if {
	input.formula
	f := input.formula

	not startswith(f.source.url, "https://")
	violation := {
		"message": sprintf("Formula %s source URL must use https", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}

deny contains violation if {
	input.formula
	f := input.formula

	not regex.match("^[0-9a-fA-F]{64}$", f.source.sha256)
	violation := {
		"message": sprintf("Formula %s must pin a 64-character sha256 digest", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}`,
	}
}

// licenseAllowlistPolicy restricts formulas to approved open-source licenses.
func licenseAllowlistPolicy() Policy {
	return Policy{
		Name:        "license-allowlist",
		Description: "Restricts formulas to approved open-source licenses",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"license", "compliance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package formulary.policies.license

import rego.v1

allowed_licenses := ["MIT", "Apache-2.0", "BSD-2-Clause", "BSD-3-Clause", "ISC", "MPL-2.0", "GPL-2.0", "GPL-3.0", "LGPL-2.1", "LGPL-3.0"]

deny contains violation if {
	input.formula
	f := input.formula

	not f.license in allowed_licenses
	violation := {
		"message": sprintf("Formula %s declares license %s which is not on the allowlist", [f.name, f.license]),
		"severity": "warning",
		"formula": f.name,
	}
}`,
	}
}

// dependencyTierPolicy validates declared dependency tiers.
func dependencyTierPolicy() Policy {
	return Policy{
		Name:        "dependency-tiers",
		Description: "Dependencies must declare a known tier and a non-empty name",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"dependencies"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package formulary.policies.tiers

import rego.v1

known_tiers := ["required", "recommended", "optional", "build"]

deny contains violation if {
	input.formula
	f := input.formula
	some dep in f.dependencies

	not dep.tier in known_tiers
	violation := {
		"message": sprintf("Formula %s dependency %s has unknown tier %s", [f.name, dep.name, dep.tier]),
		"severity": "error",
		"formula": f.name,
	}
}

deny contains violation if {
	input.formula
	f := input.formula
	some dep in f.dependencies

	dep.name == ""
	violation := {
		"message": sprintf("Formula %s declares a dependency without a name", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}

deny contains violation if {
	input.formula
	f := input.formula
	some dep in f.dependencies

	dep.name == f.name
	violation := {
		"message": sprintf("Formula %s cannot depend on itself", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}`,
	}
}

// formulaNamingPolicy enforces formula naming conventions.
func formulaNamingPolicy() Policy {
	return Policy{
		Name:        "formula-naming",
		Description: "Enforces formula naming conventions (lowercase, alphanumeric, hyphens)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package formulary.policies.naming

import rego.v1

deny contains violation if {
	input.formula
	f := input.formula

	not regex.match("^[a-z0-9][a-z0-9-]*$", f.name)
	violation := {
		"message": sprintf("Formula name '%s' must be lowercase alphanumeric with hyphens", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}

deny contains violation if {
	input.formula
	f := input.formula

	regex.match(".*-$", f.name)
	violation := {
		"message": sprintf("Formula name '%s' must not end with a hyphen", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}

deny contains violation if {
	input.formula
	f := input.formula

	count(f.name) > 63
	violation := {
		"message": sprintf("Formula name '%s' must not exceed 63 characters", [f.name]),
		"severity": "error",
		"formula": f.name,
	}
}`,
	}
}
