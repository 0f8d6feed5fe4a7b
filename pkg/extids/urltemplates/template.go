package urltemplates

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mikepea/extids/pkg/extids/errs"
)

// Allowed lists the tokens a URL template may reference
var Allowed = []string{"id", "gid", "model", "name", "code", "base"}

// ProbeTokens is the sample used to dry-run templates on write
var ProbeTokens = map[string]string{
	"id":    "123",
	"gid":   "gid://example/Model/123",
	"model": "res.partner",
	"name":  "Record Name",
	"code":  "shopify",
	"base":  "https://example.com",
}

var tokenNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type segment struct {
	literal string
	token   string
}

// Template is a parsed URL template. Placeholders are written {name};
// {{ and }} produce literal braces.
type Template struct {
	source   string
	segments []segment
}

// Parse splits a template into literals and tokens
func Parse(source string) (*Template, error) {
	t := &Template{source: source}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch c {
		case '{':
			if i+1 < len(source) && source[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(source[i+1:], '}')
			if end < 0 {
				return nil, &errs.TemplateError{Template: source, Reason: "unclosed '{'"}
			}
			name := source[i+1 : i+1+end]
			if !tokenNameRegex.MatchString(name) {
				return nil, &errs.TemplateError{Template: source, Reason: "invalid placeholder {" + name + "}"}
			}
			flush()
			t.segments = append(t.segments, segment{token: name})
			i += end + 1
		case '}':
			if i+1 < len(source) && source[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &errs.TemplateError{Template: source, Reason: "single '}' encountered"}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// Tokens returns the distinct token names referenced, sorted
func (t *Template) Tokens() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range t.segments {
		if seg.token == "" {
			continue
		}
		if _, ok := seen[seg.token]; !ok {
			seen[seg.token] = struct{}{}
			out = append(out, seg.token)
		}
	}
	sort.Strings(out)
	return out
}

// Render substitutes tokens. A referenced token missing from values is a TemplateError.
func (t *Template) Render(values map[string]string) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.token == "" {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := values[seg.token]
		if !ok {
			return "", &errs.TemplateError{Template: t.source, Token: seg.token, Allowed: keys(values)}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Validate parses source and dry-runs it against ProbeTokens
func Validate(source string) error {
	t, err := Parse(source)
	if err != nil {
		return err
	}
	if _, err := t.Render(ProbeTokens); err != nil {
		return err
	}
	return nil
}

// Render parses and renders source in one step
func Render(source string, values map[string]string) (string, error) {
	t, err := Parse(source)
	if err != nil {
		return "", err
	}
	return t.Render(values)
}

func keys(m map[string]string) []string {
	if sameKeys(m, ProbeTokens) {
		return Allowed
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sameKeys(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

var trailingDigits = regexp.MustCompile(`/(\d+)$`)

// NumericID extracts the trailing number of a global id such as
// gid://shopify/Product/456. Identifiers without one are returned unchanged.
func NumericID(identifier string) string {
	if m := trailingDigits.FindStringSubmatch(identifier); m != nil {
		return m[1]
	}
	return identifier
}

// Values are the token values for rendering a template against one record
type Values struct {
	Identifier string
	Model      string
	Name       string
	Code       string
	Base       string
}

// Map returns the token map for v
func (v Values) Map() map[string]string {
	return map[string]string{
		"id":    NumericID(v.Identifier),
		"gid":   v.Identifier,
		"model": v.Model,
		"name":  v.Name,
		"code":  v.Code,
		"base":  v.Base,
	}
}
