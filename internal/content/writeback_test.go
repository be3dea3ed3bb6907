package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteBackPatchesIDsAndKeepsComments(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"course.json": sampleManifest})
	path := filepath.Join(dir, "course.json")

	manifest, root, err := NewBuilder(nil).Build(path)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	changed, err := WriteBack(manifest, map[string]string{
		"ai-sdk":         "res-1",
		"fundamentals":   "res-2",
		"02-setup_guide": "res-4",
		"wrap-up":        "res-9",
	})
	if err != nil {
		t.Fatalf("WriteBack() error = %v", err)
	}
	if !changed {
		t.Fatal("expected manifest to change")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if !strings.Contains(string(raw), "// AI SDK course") {
		t.Fatalf("comment lost:\n%s", raw)
	}

	_, rebuilt, err := NewBuilder(nil).Build(path)
	if err != nil {
		t.Fatalf("rebuild error = %v", err)
	}
	got := map[string]string{}
	rebuilt.Walk(func(n *Node) bool {
		got[n.OriginalID] = n.PersistedID
		return true
	})
	want := map[string]string{
		"ai-sdk":         "res-1",
		"fundamentals":   "res-2",
		"intro":          "",
		"02-setup_guide": "res-4",
		"wrap-up":        "res-9",
	}
	for id, persisted := range want {
		if got[id] != persisted {
			t.Errorf("node %s persisted id = %q, want %q", id, got[id], persisted)
		}
	}
	if root.Children[1].PersistedID != "res-9" {
		t.Fatalf("in-memory tree should be untouched")
	}
}

func TestWriteBackReplacesStaleID(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"course.json": sampleManifest})
	path := filepath.Join(dir, "course.json")

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if _, err := WriteBack(manifest, map[string]string{"wrap-up": "res-10"}); err != nil {
		t.Fatalf("WriteBack() error = %v", err)
	}
	reloaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := persistedID(reloaded.Resources[1].DBID); got != "res-10" {
		t.Fatalf("wrap-up dbId = %q, want res-10", got)
	}
}

func TestWriteBackNoChanges(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"course.json": sampleManifest})
	path := filepath.Join(dir, "course.json")
	before, _ := os.ReadFile(path)

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	changed, err := WriteBack(manifest, map[string]string{"wrap-up": "res-9"})
	if err != nil {
		t.Fatalf("WriteBack() error = %v", err)
	}
	if changed {
		t.Fatal("expected no rewrite when ids already match")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("manifest bytes changed")
	}
}
