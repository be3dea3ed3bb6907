package content

import "errors"

var (
	// ErrManifestNotFound is returned when the manifest file does not exist.
	ErrManifestNotFound = errors.New("manifest not found")
	// ErrMalformedManifest covers unparsable manifests and lesson front matter
	// as well as structurally invalid trees.
	ErrMalformedManifest = errors.New("malformed manifest")
)
