package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"academy/contentsync/internal/logger"
	"academy/contentsync/internal/util"
)

// Front-matter keys mapped onto typed fields. Everything else lands in Extra.
var frontMatterFields = map[string]struct{}{
	FieldTitle:       {},
	FieldSlug:        {},
	FieldDescription: {},
	FieldSummary:     {},
	FieldSites:       {},
	FieldBody:        {},
}

// Builder turns a manifest and the files it references into a Node tree.
type Builder struct {
	log   *logger.Logger
	newID func() string
}

func NewBuilder(log *logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{log: log, newID: util.NewPlaceholderID}
}

// Build loads the manifest at path and returns it with the generated tree.
// A missing manifest or a structurally invalid one aborts the build; a missing
// lesson file only produces a warning and an empty lesson.
func (b *Builder) Build(path string) (*Manifest, *Node, error) {
	manifest, err := LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	root, err := b.BuildManifest(manifest)
	if err != nil {
		return nil, nil, err
	}
	return manifest, root, nil
}

// BuildManifest generates the tree for an already loaded manifest.
func (b *Builder) BuildManifest(manifest *Manifest) (*Node, error) {
	if manifest.Type != "" && manifest.Type != string(KindModule) {
		return nil, fmt.Errorf("%w: root type must be %q, got %q", ErrMalformedManifest, KindModule, manifest.Type)
	}
	if manifest.ID == "" {
		return nil, fmt.Errorf("%w: module id is required", ErrMalformedManifest)
	}

	root := &Node{
		OriginalID:  manifest.ID,
		PersistedID: persistedID(manifest.DBID),
		TempID:      b.newID(),
		Kind:        KindModule,
		Fields: Fields{
			Title: manifest.Title,
			Slug:  slugFromName(manifest.ID),
		},
	}
	if manifest.Introduction != "" {
		if err := b.applyFile(&root.Fields, manifest.Dir(), manifest.Introduction); err != nil {
			return nil, err
		}
	}
	if root.Fields.Title == "" {
		root.Fields.Title = titleFromName(manifest.ID)
	}

	seen := map[string]string{manifest.ID: "module"}
	children, err := b.buildEntries(manifest, manifest.Resources, KindModule, seen)
	if err != nil {
		return nil, err
	}
	root.Children = children
	return root, nil
}

func (b *Builder) buildEntries(manifest *Manifest, entries []Entry, parent Kind, seen map[string]string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(entries))
	for i, entry := range entries {
		node, err := b.buildEntry(manifest, entry, parent, seen)
		if err != nil {
			return nil, err
		}
		node.Position = i
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (b *Builder) buildEntry(manifest *Manifest, entry Entry, parent Kind, seen map[string]string) (*Node, error) {
	kind, err := ParseKind(entry.Type)
	if err != nil {
		return nil, err
	}
	switch {
	case kind == KindModule:
		return nil, fmt.Errorf("%w: module %q nested inside a %s", ErrMalformedManifest, entry.ID, parent)
	case parent == KindSection && kind == KindSection:
		return nil, fmt.Errorf("%w: section %q nested inside a section", ErrMalformedManifest, entry.ID)
	case kind == KindLesson && len(entry.Resources) > 0:
		return nil, fmt.Errorf("%w: lesson %q cannot have children", ErrMalformedManifest, entry.OriginalID())
	}

	originalID := entry.OriginalID()
	if originalID == "" {
		return nil, fmt.Errorf("%w: %s entry without id or path", ErrMalformedManifest, kind)
	}
	if where, dup := seen[originalID]; dup {
		return nil, fmt.Errorf("%w: duplicate id %q (already used by a %s)", ErrMalformedManifest, originalID, where)
	}
	seen[originalID] = string(kind)

	node := &Node{
		OriginalID:  originalID,
		PersistedID: persistedID(entry.DBID),
		TempID:      b.newID(),
		Kind:        kind,
		Fields:      Fields{Title: entry.Title},
	}

	switch {
	case entry.Path != "":
		if err := b.applyFile(&node.Fields, manifest.Dir(), entry.Path); err != nil {
			return nil, err
		}
	case kind == KindLesson:
		b.log.Warn("lesson has no content path", "lesson", originalID)
	}

	nameSource := originalID
	if entry.Path != "" {
		nameSource = entry.Path
	}
	if node.Fields.Title == "" {
		node.Fields.Title = titleFromName(nameSource)
	}
	if node.Fields.Slug == "" {
		node.Fields.Slug = slugFromName(nameSource)
	}

	if kind == KindSection {
		children, err := b.buildEntries(manifest, entry.Resources, KindSection, seen)
		if err != nil {
			return nil, err
		}
		node.Children = children
	}
	return node, nil
}

// applyFile merges a content file's front matter and body into fields.
func (b *Builder) applyFile(fields *Fields, dir, rel string) error {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, rel)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.log.Warn("content file missing, using empty content", "path", path)
			return nil
		}
		return fmt.Errorf("read content file %s: %w", path, err)
	}

	doc, err := parseDocument(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
	}

	// The manifest title only covers files that do not name themselves.
	if title := doc.String(FieldTitle); title != "" {
		fields.Title = title
	}
	if slug := doc.String(FieldSlug); slug != "" {
		fields.Slug = slug
	}
	if description := doc.String(FieldDescription); description != "" {
		fields.Description = description
	}
	if _, ok := doc.Meta[FieldBody]; ok {
		return fmt.Errorf("%w: %s: front matter key %q is reserved for the file body", ErrMalformedManifest, path, FieldBody)
	}
	fields.Body = doc.Body

	if raw, ok := doc.Meta[FieldSites]; ok && raw != nil {
		sites, err := stringList(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %s: %w", ErrMalformedManifest, path, FieldSites, err)
		}
		fields.Sites = UnionSites(fields.Sites, sites...)
	}
	if summary, ok := doc.Meta[FieldSummary]; ok && summary != nil {
		raw, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("%w: %s: summary: %w", ErrMalformedManifest, path, err)
		}
		fields.Summary = raw
	}
	for key, value := range doc.Meta {
		if _, known := frontMatterFields[key]; known {
			continue
		}
		if fields.Extra == nil {
			fields.Extra = make(map[string]any)
		}
		fields.Extra[key] = value
	}
	return nil
}

// stringList accepts a YAML scalar or sequence of strings.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a string or list of strings, got %T", value)
}
