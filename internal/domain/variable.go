package domain

import (
	"fmt"
	"strings"
)

// VariableType is the closed set of types a template input variable may declare.
type VariableType string

const (
	VariableTypeString  VariableType = "STRING"
	VariableTypeNumber  VariableType = "NUMBER"
	VariableTypeBoolean VariableType = "BOOLEAN"
	VariableTypeDate    VariableType = "DATE"
)

// VariableTypes lists every valid VariableType in declaration order.
var VariableTypes = []VariableType{
	VariableTypeString,
	VariableTypeNumber,
	VariableTypeBoolean,
	VariableTypeDate,
}

// ParseVariableType accepts the canonical upper-case names, case-insensitively.
func ParseVariableType(s string) (VariableType, error) {
	t := VariableType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown variable type %q", s)
	}
	return t, nil
}

func (t VariableType) Valid() bool {
	switch t {
	case VariableTypeString, VariableTypeNumber, VariableTypeBoolean, VariableTypeDate:
		return true
	}
	return false
}

func (t VariableType) String() string { return string(t) }

// InputVariable is one typed entry of a version's input contract.
type InputVariable struct {
	Name     string       `json:"name"`
	Type     VariableType `json:"type"`
	Required bool         `json:"required"`
}

// Validate checks the entry itself (not a value against it).
func (v InputVariable) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("input variable name must not be empty")
	}
	if !v.Type.Valid() {
		return fmt.Errorf("input variable %q has unknown type %q", v.Name, v.Type)
	}
	return nil
}

// InputSchema is the ordered list of variables a version accepts.
type InputSchema []InputVariable

// Equal is structural: same length, same entries in the same order.
// A difference here is what makes a new version a minor bump.
func (s InputSchema) Equal(other InputSchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy; nil stays nil.
func (s InputSchema) Clone() InputSchema {
	if s == nil {
		return nil
	}
	out := make(InputSchema, len(s))
	copy(out, s)
	return out
}

// Validate checks every entry and rejects duplicate names.
func (s InputSchema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, v := range s {
		if err := v.Validate(); err != nil {
			return err
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("input variable %q declared more than once", v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}
