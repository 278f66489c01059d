package render

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// TextRenderer substitutes {{field}} placeholders in a text/markup body.
//
// Tokens without a matching field entry are left verbatim in the output.
// Downstream templates rely on that for optional fields, so the fallback
// is deliberately preserved; callers that want strictness should
// pre-validate with Fields.
type TextRenderer struct{}

// NewTextRenderer constructs the plain-text renderer.
func NewTextRenderer() *TextRenderer { return &TextRenderer{} }

// Render merges fields into body. Fails ErrMalformed when the body has an
// opening {{ with no closing }} after it.
func (r *TextRenderer) Render(body string, fields map[string]string) ([]byte, error) {
	if err := checkBalanced(body); err != nil {
		return nil, err
	}
	out := placeholderPattern.ReplaceAllStringFunc(body, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := fields[name]; ok {
			return value
		}
		return token
	})
	return []byte(out), nil
}

// Fields extracts the distinct placeholder names in body, in order of
// first appearance. Lets callers validate required fields up front.
func Fields(body string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// MissingFields returns the placeholders in body with no entry in fields.
func MissingFields(body string, fields map[string]string) []string {
	var missing []string
	for _, name := range Fields(body) {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func checkBalanced(body string) error {
	rest := body
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			return nil
		}
		end := strings.Index(rest[open:], "}}")
		if end < 0 {
			return fmt.Errorf("%w: unterminated placeholder at offset %d", ErrMalformed, len(body)-len(rest)+open)
		}
		rest = rest[open+end+2:]
	}
}
