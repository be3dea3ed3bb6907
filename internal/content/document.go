package content

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// document is a lesson file split into its front matter and body.
type document struct {
	Meta map[string]any
	Body string
}

// parseDocument splits an optional leading "---" YAML block from the body.
// Files without front matter are all body.
func parseDocument(data []byte) (document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	if !strings.HasPrefix(text, frontMatterDelimiter+"\n") {
		return document{Body: text}, nil
	}
	rest := text[len(frontMatterDelimiter)+1:]
	var header string
	switch {
	case strings.HasPrefix(rest, frontMatterDelimiter+"\n") || rest == frontMatterDelimiter:
		header, rest = "", strings.TrimPrefix(strings.TrimPrefix(rest, frontMatterDelimiter), "\n")
	default:
		end := strings.Index(rest, "\n"+frontMatterDelimiter+"\n")
		if end < 0 {
			if !strings.HasSuffix(rest, "\n"+frontMatterDelimiter) {
				return document{}, fmt.Errorf("unclosed front matter")
			}
			end = len(rest) - len(frontMatterDelimiter) - 1
			header, rest = rest[:end], ""
		} else {
			header, rest = rest[:end], rest[end+len(frontMatterDelimiter)+2:]
		}
	}

	meta := map[string]any{}
	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
			return document{}, fmt.Errorf("front matter: %w", err)
		}
	}
	return document{Meta: meta, Body: strings.TrimLeft(rest, "\n")}, nil
}

func (d document) String(key string) string {
	value, ok := d.Meta[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// baseName strips directories and the extension from a content path.
func baseName(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// stripOrdinal removes numeric ordering prefixes such as "01-" or "2_".
func stripOrdinal(name string) string {
	trimmed := strings.TrimLeftFunc(name, unicode.IsDigit)
	if trimmed == name {
		return name
	}
	trimmed = strings.TrimLeft(trimmed, "-_. ")
	if trimmed == "" {
		return name
	}
	return trimmed
}

// titleFromName turns "01-getting_started.mdx" into "Getting Started".
func titleFromName(name string) string {
	words := strings.FieldsFunc(stripOrdinal(baseName(name)), func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// slugFromName turns "01-Getting_Started.mdx" into "getting-started".
func slugFromName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(stripOrdinal(baseName(name))) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
