package flow

import (
	"fmt"
	"strings"
)

// Field describes one form input
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
}

// Schema is the ordered list of form inputs
type Schema []Field

// Input is the user's answer to a form; nil means the form has not been submitted yet
type Input map[string]string

// WithDefault returns a copy of s where field name defaults to value
func (s Schema) WithDefault(name, value string) Schema {
	out := make(Schema, len(s))
	copy(out, s)
	for i := range out {
		if out[i].Name == name {
			out[i].Default = value
		}
	}
	return out
}

// Validate applies defaults and checks required fields. Unknown keys are dropped.
func (s Schema) Validate(input Input) (Input, error) {
	out := make(Input, len(s))
	var missing []string
	for _, f := range s {
		v, ok := input[f.Name]
		if !ok || v == "" {
			v = f.Default
		}
		if v == "" {
			if f.Required {
				missing = append(missing, f.Name)
			}
			continue
		}
		out[f.Name] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: required field(s) missing: %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return out, nil
}
