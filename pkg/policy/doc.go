// Package policy provides OPA/Rego policy evaluation for formula
// descriptors. A set of built-in policies covers source integrity, license
// compliance, dependency tier validity and naming conventions; additional
// policies load from .rego or .json files, with optional fsnotify-based hot
// reload.
//
// Policies contribute violations through a deny set in their Rego package.
// Error-severity violations block installation; warning-severity violations
// are reported and installation proceeds.
package policy
