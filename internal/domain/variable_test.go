package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputSchema_Equal(t *testing.T) {
	base := InputSchema{
		{Name: "name", Type: VariableTypeString, Required: true},
		{Name: "amount", Type: VariableTypeNumber, Required: false},
	}

	tests := []struct {
		name  string
		other InputSchema
		want  bool
	}{
		{"identical", base.Clone(), true},
		{"added variable", append(base.Clone(), InputVariable{Name: "x", Type: VariableTypeBoolean}), false},
		{"removed variable", base[:1].Clone(), false},
		{"retyped", InputSchema{base[0], {Name: "amount", Type: VariableTypeString}}, false},
		{"required changed", InputSchema{base[0], {Name: "amount", Type: VariableTypeNumber, Required: true}}, false},
		{"reordered", InputSchema{base[1], base[0]}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Equal(tt.other))
		})
	}

	assert.True(t, InputSchema(nil).Equal(InputSchema{}))
}

func TestInputSchema_Validate(t *testing.T) {
	assert.NoError(t, InputSchema{{Name: "a", Type: VariableTypeDate}}.Validate())
	assert.Error(t, InputSchema{{Name: " ", Type: VariableTypeDate}}.Validate())
	assert.Error(t, InputSchema{{Name: "a", Type: "UUID"}}.Validate())
	assert.Error(t, InputSchema{
		{Name: "a", Type: VariableTypeString},
		{Name: "a", Type: VariableTypeNumber},
	}.Validate())
}

func TestParseVariableType(t *testing.T) {
	for _, vt := range VariableTypes {
		got, err := ParseVariableType(string(vt))
		require.NoError(t, err)
		assert.Equal(t, vt, got)
	}

	got, err := ParseVariableType(" boolean ")
	require.NoError(t, err)
	assert.Equal(t, VariableTypeBoolean, got)

	_, err = ParseVariableType("OBJECT")
	assert.Error(t, err)
}

func TestTemplateQuery_Normalized(t *testing.T) {
	q := TemplateQuery{Page: -2, Size: 0}.Normalized()
	assert.Equal(t, 0, q.Page)
	assert.Equal(t, DefaultPageSize, q.Size)

	q = TemplateQuery{Page: 3, Size: 1000}.Normalized()
	assert.Equal(t, MaxPageSize, q.Size)
	assert.Equal(t, 300, q.Offset())
}
