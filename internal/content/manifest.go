package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Manifest is the authored description of one module. It is parsed as JSONC so
// authors may keep comments and trailing commas; the original bytes are kept
// so write-back can patch ids without reformatting the file.
type Manifest struct {
	ID           string  `json:"id"`
	DBID         *string `json:"dbId,omitempty"`
	Type         string  `json:"type"`
	Title        string  `json:"title,omitempty"`
	Introduction string  `json:"introduction,omitempty"`
	Resources    []Entry `json:"resources"`

	path string
	raw  []byte
}

// Entry is a section or lesson listed in a manifest.
type Entry struct {
	ID        string  `json:"id"`
	DBID      *string `json:"dbId,omitempty"`
	Type      string  `json:"type"`
	Path      string  `json:"path,omitempty"`
	Title     string  `json:"title,omitempty"`
	Resources []Entry `json:"resources,omitempty"`
}

func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	// Standardize strips comments in place; raw keeps them for WriteBack.
	standardized, err := hujson.Standardize(bytes.Clone(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(standardized, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedManifest, path, err)
	}
	manifest.path = path
	manifest.raw = raw
	return &manifest, nil
}

// Path is the file the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// Dir is the directory lesson paths are resolved against.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.path)
}

// OriginalID returns the entry's manifest key, falling back to the name of the
// file it references.
func (e Entry) OriginalID() string {
	if e.ID != "" {
		return e.ID
	}
	if e.Path != "" {
		return baseName(e.Path)
	}
	return ""
}

func persistedID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
