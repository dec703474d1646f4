package render

import (
	"strings"
	"testing"
	"time"

	apperrors "template-engine/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Render(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		content string
		vars    map[string]interface{}
		escape  bool
		want    string
	}{
		{
			name:    "simple substitution",
			content: "Hello {{name}}!",
			vars:    map[string]interface{}{"name": "Ada"},
			want:    "Hello Ada!",
		},
		{
			name:    "whitespace inside braces",
			content: "Hi {{  name\t}}",
			vars:    map[string]interface{}{"name": "Bob"},
			want:    "Hi Bob",
		},
		{
			name:    "repeated key",
			content: "{{a}}-{{a}}-{{ a }}",
			vars:    map[string]interface{}{"a": "x"},
			want:    "x-x-x",
		},
		{
			name:    "no placeholders",
			content: "plain text",
			vars:    nil,
			want:    "plain text",
		},
		{
			name:    "unbalanced open brace is literal",
			content: "Price {{amount",
			vars:    map[string]interface{}{"amount": 5},
			want:    "Price {{amount",
		},
		{
			name:    "empty key is literal",
			content: "a {{ }} b {{x}}",
			vars:    map[string]interface{}{"x": "y"},
			want:    "a {{ }} b y",
		},
		{
			name:    "multi-line braces are literal",
			content: "{{a\nb}} and {{c}}",
			vars:    map[string]interface{}{"c": "d"},
			want:    "{{a\nb}} and d",
		},
		{
			name:    "unused extra variables are ignored",
			content: "{{a}}",
			vars:    map[string]interface{}{"a": 1, "b": 2},
			want:    "1",
		},
		{
			name:    "number formatting",
			content: "{{i}} {{f}} {{whole}}",
			vars:    map[string]interface{}{"i": 42, "f": 3.25, "whole": float64(10)},
			want:    "42 3.25 10",
		},
		{
			name:    "bool formatting",
			content: "{{ok}}",
			vars:    map[string]interface{}{"ok": true},
			want:    "true",
		},
		{
			name:    "values are escaped for html",
			content: "<p>{{name}}</p>",
			vars:    map[string]interface{}{"name": `<script>alert("x")</script>`},
			escape:  true,
			want:    "<p>&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;</p>",
		},
		{
			name:    "values are raw without escaping",
			content: "{{name}}",
			vars:    map[string]interface{}{"name": "<b>"},
			want:    "<b>",
		},
		{
			name:    "substituted value is not rescanned",
			content: "{{a}}",
			vars:    map[string]interface{}{"a": "{{b}}"},
			want:    "{{b}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Render(tt.content, tt.vars, tt.escape)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_RenderMissingVariable(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		vars    map[string]interface{}
		wantVar string
	}{
		{"absent", map[string]interface{}{"first": "a"}, "second"},
		{"nil value", map[string]interface{}{"first": "a", "second": nil}, "second"},
		{"first missing wins", map[string]interface{}{}, "first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Render("{{first}} then {{second}}", tt.vars, false)
			require.Error(t, err)
			assert.Empty(t, got, "no partial output")
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequiredVariable))

			se := apperrors.Normalize(err)
			assert.Equal(t, tt.wantVar, se.Metadata["variable"])
		})
	}
}

func TestEngine_RenderTooLarge(t *testing.T) {
	engine := NewEngine()

	atLimit := strings.Repeat("a", MaxContentLength)
	_, err := engine.Render(atLimit, nil, false)
	assert.NoError(t, err)

	_, err = engine.Render(atLimit+"b", nil, false)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTemplateTooLarge))

	// limit counts characters, not bytes
	multiByte := strings.Repeat("é", MaxContentLength)
	_, err = engine.Render(multiByte, nil, false)
	assert.NoError(t, err)
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{{ b }} {{a}} {{b}} {{ }} {{c")
	assert.Equal(t, []string{"b", "a"}, got)
	assert.Empty(t, Placeholders("nothing here"))
	assert.Equal(t, []string{"x"}, Placeholders("{{ line\nbreak }} {{x}}"))
}

func TestStringify(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, "2026-01-02T03:04:05Z", Stringify(at))
	assert.Equal(t, "0.1", Stringify(0.1))
	assert.Equal(t, "-7", Stringify(int64(-7)))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]interface{}{"k": "v"}))
	assert.Equal(t, `[1,"two"]`, Stringify([]interface{}{1, "two"}))
}
