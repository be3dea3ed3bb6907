package content

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Field document keys with typed accessors on Fields.
const (
	FieldTitle       = "title"
	FieldSlug        = "slug"
	FieldDescription = "description"
	FieldBody        = "body"
	FieldSummary     = "summary"
	FieldSites       = "sites"
)

// Fields is the field bag of a content resource. The keys the sync tool diffs
// are typed; anything else is carried in Extra untouched. A zero value means
// the field is absent.
type Fields struct {
	Title       string
	Slug        string
	Description string
	Body        string
	Summary     json.RawMessage
	Sites       []string
	Extra       map[string]any
}

func (f Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Document())
}

// Document flattens the fields into the JSON object stored for a resource.
func (f Fields) Document() map[string]any {
	doc := make(map[string]any, len(f.Extra)+6)
	for key, value := range f.Extra {
		doc[key] = value
	}
	setString(doc, FieldTitle, f.Title)
	setString(doc, FieldSlug, f.Slug)
	setString(doc, FieldDescription, f.Description)
	setString(doc, FieldBody, f.Body)
	if len(f.Summary) > 0 {
		doc[FieldSummary] = f.Summary
	}
	if len(f.Sites) > 0 {
		doc[FieldSites] = slices.Clone(f.Sites)
	}
	return doc
}

func setString(doc map[string]any, key, value string) {
	if value != "" {
		doc[key] = value
	}
}

// UnmarshalJSON tolerates schema drift: a known key holding an unexpected type
// is kept in Extra instead of failing the whole document. Extra numbers
// decode as json.Number.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*f = Fields{}
	for key, raw := range doc {
		switch key {
		case FieldTitle:
			if decodeString(raw, &f.Title) {
				continue
			}
		case FieldSlug:
			if decodeString(raw, &f.Slug) {
				continue
			}
		case FieldDescription:
			if decodeString(raw, &f.Description) {
				continue
			}
		case FieldBody:
			if decodeString(raw, &f.Body) {
				continue
			}
		case FieldSummary:
			if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				f.Summary = slices.Clone(raw)
			}
			continue
		case FieldSites:
			var sites []string
			if err := json.Unmarshal(raw, &sites); err == nil {
				f.Sites = sites
				continue
			}
		}
		value, err := decodeValue(raw)
		if err != nil {
			return err
		}
		if f.Extra == nil {
			f.Extra = make(map[string]any)
		}
		f.Extra[key] = value
	}
	return nil
}

// decodeValue keeps numbers as json.Number so large integers survive a
// read-modify-write cycle.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func decodeString(raw json.RawMessage, dst *string) bool {
	return json.Unmarshal(raw, dst) == nil
}

// CanonicalJSON re-encodes raw with sorted object keys and no insignificant
// whitespace so two structurally equal documents compare byte-equal.
func CanonicalJSON(raw json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}

// UnionSites appends the sites in extra that are not already in base,
// preserving the order of both.
func UnionSites(base []string, extra ...string) []string {
	out := slices.Clone(base)
	for _, site := range extra {
		if site == "" || slices.Contains(out, site) {
			continue
		}
		out = append(out, site)
	}
	return out
}
