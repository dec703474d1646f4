// Package render substitutes {{ key }} placeholders in template text.
package render

import (
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "template-engine/internal/common/errors"
)

// MaxContentLength is the ceiling on template text, in characters.
const MaxContentLength = 50000

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Engine renders template text against a variable map. It is stateless and
// safe for concurrent use.
type Engine struct {
	maxLength int
}

func NewEngine() *Engine {
	return &Engine{maxLength: MaxContentLength}
}

// Render replaces every placeholder with the stringified value of its key.
// Substitution is all-or-nothing: the first placeholder whose key is absent
// (or nil) fails the whole call with MISSING_REQUIRED_VARIABLE. When
// escapeHTML is set, substituted values are HTML-escaped; literal template
// text never is.
func (e *Engine) Render(content string, vars map[string]interface{}, escapeHTML bool) (string, error) {
	if n := utf8.RuneCountInString(content); n > e.maxLength {
		return "", apperrors.NewTemplateTooLargeError(n, e.maxLength)
	}

	var out strings.Builder
	out.Grow(len(content))

	rest := content
	for {
		start, end, key := nextPlaceholder(rest)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		if key == "" {
			out.WriteString(rest[:end])
			rest = rest[end:]
			continue
		}

		value, ok := vars[key]
		if !ok || value == nil {
			return "", apperrors.NewMissingRequiredVariableError(key)
		}

		s := Stringify(value)
		if escapeHTML {
			s = html.EscapeString(s)
		}
		out.WriteString(rest[:start])
		out.WriteString(s)
		rest = rest[end:]
	}

	return out.String(), nil
}

// Placeholders lists the distinct keys referenced by content, in first-seen order.
func Placeholders(content string) []string {
	var keys []string
	seen := make(map[string]struct{})

	rest := content
	for {
		start, end, key := nextPlaceholder(rest)
		if start < 0 {
			return keys
		}
		if _, dup := seen[key]; key != "" && !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		rest = rest[end:]
	}
}

// nextPlaceholder finds the first placeholder in s and returns its bounds,
// with end just past the closing delimiter. start is negative when s holds
// no complete placeholder. An opening delimiter around blank or multi-line
// text is not a placeholder: key is empty and end is just past the "{{".
func nextPlaceholder(s string) (start, end int, key string) {
	start = strings.Index(s, openDelim)
	if start < 0 {
		return -1, 0, ""
	}
	closeAt := strings.Index(s[start+len(openDelim):], closeDelim)
	if closeAt < 0 {
		return -1, 0, ""
	}
	closeAt += start + len(openDelim)

	inner := s[start+len(openDelim) : closeAt]
	key = strings.TrimSpace(inner)
	if key == "" || strings.ContainsAny(inner, "\r\n") {
		return start, start + len(openDelim), ""
	}
	return start, closeAt + len(closeDelim), key
}

// Stringify renders a variable value the way it appears in output text.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
