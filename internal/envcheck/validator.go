package envcheck

import (
	"os"
	"strings"
)

// LookupFunc reads one environment variable. It matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Report is the outcome of a single validation pass.
type Report struct {
	IsValid  bool     `json:"isValid"`
	Missing  []string `json:"missing"`
	Warnings []string `json:"warnings"`
}

// Validator checks the presence of required and optional variables.
// It reads the environment on every call.
type Validator struct {
	lookup LookupFunc
}

// NewValidator returns a Validator reading through lookup, or the process
// environment when lookup is nil.
func NewValidator(lookup LookupFunc) *Validator {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Validator{lookup: lookup}
}

// Validate reports absent required variables in Missing and absent optional
// variables in Warnings.
func (v *Validator) Validate() Report {
	report := Report{
		Missing:  make([]string, 0),
		Warnings: make([]string, 0),
	}
	for _, required := range RequiredVars {
		if !v.Present(required.Name) {
			report.Missing = append(report.Missing, required.Name)
		}
	}
	for _, optional := range OptionalVars {
		if !v.Present(optional.Name) {
			report.Warnings = append(report.Warnings, optional.Name)
		}
	}
	report.IsValid = len(report.Missing) == 0
	return report
}

// Present reports whether name is set to a non-blank value.
func (v *Validator) Present(name string) bool {
	value, ok := v.lookup(name)
	if !ok {
		return false
	}
	return strings.TrimSpace(value) != ""
}

// MapLookup adapts a fixed map to a LookupFunc.
func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
