// Package schema checks a variable map against a version's InputSchema.
package schema

import (
	"encoding/json"
	"reflect"
	"time"

	apperrors "template-engine/internal/common/errors"
	"template-engine/internal/domain"
)

// Accepted string layouts for DATE variables, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02",
}

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate walks the schema in declaration order and stops at the first
// failing variable. Variables not declared in the schema are ignored.
func (v *Validator) Validate(schema domain.InputSchema, vars map[string]interface{}) error {
	for _, def := range schema {
		value, present := vars[def.Name]
		if !present || value == nil {
			if def.Required {
				return apperrors.NewMissingRequiredVariableError(def.Name)
			}
			continue
		}
		if !Conforms(def.Type, value) {
			return apperrors.NewInvalidVariableTypeError(def.Name, def.Type.String())
		}
	}
	return nil
}

// Conforms reports whether value is acceptable for a variable of type t.
func Conforms(t domain.VariableType, value interface{}) bool {
	switch t {
	case domain.VariableTypeString:
		_, ok := value.(string)
		return ok
	case domain.VariableTypeNumber:
		return isNumber(value)
	case domain.VariableTypeBoolean:
		_, ok := value.(bool)
		return ok
	case domain.VariableTypeDate:
		return isDate(value)
	default:
		return false
	}
}

func isNumber(value interface{}) bool {
	if n, ok := value.(json.Number); ok {
		_, err := n.Float64()
		return err == nil
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isDate(value interface{}) bool {
	switch val := value.(type) {
	case time.Time:
		return !val.IsZero()
	case string:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, val); err == nil {
				return true
			}
		}
	}
	return false
}
