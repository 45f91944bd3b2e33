// Package parser splits chapter files into front matter and body and writes
// them back out in the canonical form used by the site.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

const delim = "---"

// Document holds the output of parsing a chapter file.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// Field is one key of a front-matter block. Fields are written in slice order.
type Field struct {
	Key   string
	Value any
}

// Parse extracts front matter and body from raw Markdown bytes. A file
// without front matter yields an empty map and the whole content as body.
// Malformed YAML is an error.
func Parse(data []byte) (*Document, error) {
	fm := map[string]any{}
	rest, err := frontmatter.Parse(bytes.NewReader(data), &fm)
	if err != nil {
		return nil, fmt.Errorf("parser: front matter: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	body := string(rest)
	if len(rest) != len(data) {
		// Body starts after the closing delimiter line.
		body = strings.TrimLeft(body, "\r\n")
	}
	return &Document{Frontmatter: fm, Body: body}, nil
}

// String returns the front-matter value for key as a string, or "" when it is
// absent or empty. Scalars of other types are formatted with fmt.
func (d *Document) String(key string) string {
	v, ok := d.Frontmatter[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

// Has reports whether key is present with a non-empty value.
func (d *Document) Has(key string) bool {
	return d.String(key) != ""
}

// Marshal renders fields as a delimited YAML block followed by a blank line
// and body. Strings are double-quoted, numbers and booleans are bare.
func Marshal(fields []Field, body string) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Key},
			scalarNode(f.Value),
		)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	if len(fields) > 0 {
		enc := yaml.NewEncoder(&buf)
		if err := enc.Encode(root); err != nil {
			return nil, fmt.Errorf("parser: encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("parser: encode front matter: %w", err)
		}
	}
	buf.WriteString(delim + "\n\n")
	buf.WriteString(strings.TrimLeft(body, "\r\n"))
	return buf.Bytes(), nil
}

func scalarNode(v any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch val := v.(type) {
	case int:
		n.Tag, n.Value = "!!int", strconv.Itoa(val)
	case int64:
		n.Tag, n.Value = "!!int", strconv.FormatInt(val, 10)
	case uint64:
		n.Tag, n.Value = "!!int", strconv.FormatUint(val, 10)
	case float64:
		n.Tag, n.Value = "!!float", strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(val)
	case string:
		n.Tag, n.Value, n.Style = "!!str", val, yaml.DoubleQuotedStyle
	default:
		n.Tag, n.Value, n.Style = "!!str", fmt.Sprint(val), yaml.DoubleQuotedStyle
	}
	return n
}
