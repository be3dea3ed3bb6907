package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

type patchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// WriteBack records store ids in the manifest. ids maps original ids to the
// store ids they resolved to; nodes whose manifest already carries that id are
// skipped. The file is patched in place (comments and layout survive) and
// replaced atomically. It reports whether the file was rewritten.
func WriteBack(manifest *Manifest, ids map[string]string) (bool, error) {
	var ops []patchOp
	if id, ok := ids[manifest.ID]; ok && id != "" && id != persistedID(manifest.DBID) {
		ops = append(ops, dbIDPatch("", manifest.DBID, id))
		manifest.DBID = &id
	}
	ops = entryPatches(ops, "", manifest.Resources, ids)
	if len(ops) == 0 {
		return false, nil
	}

	value, err := hujson.Parse(bytes.Clone(manifest.raw))
	if err != nil {
		return false, fmt.Errorf("parse manifest %s: %w", manifest.path, err)
	}
	patch, err := json.Marshal(ops)
	if err != nil {
		return false, fmt.Errorf("encode manifest patch: %w", err)
	}
	if err := value.Patch(patch); err != nil {
		return false, fmt.Errorf("patch manifest %s: %w", manifest.path, err)
	}
	packed := value.Pack()
	if err := atomic.WriteFile(manifest.path, bytes.NewReader(packed)); err != nil {
		return false, fmt.Errorf("write manifest %s: %w", manifest.path, err)
	}
	manifest.raw = packed
	return true, nil
}

func entryPatches(ops []patchOp, prefix string, entries []Entry, ids map[string]string) []patchOp {
	for i := range entries {
		entry := &entries[i]
		pointer := prefix + "/resources/" + strconv.Itoa(i)
		if id, ok := ids[entry.OriginalID()]; ok && id != "" && id != persistedID(entry.DBID) {
			ops = append(ops, dbIDPatch(pointer, entry.DBID, id))
			entry.DBID = &id
		}
		ops = entryPatches(ops, pointer, entry.Resources, ids)
	}
	return ops
}

func dbIDPatch(pointer string, current *string, id string) patchOp {
	op := "add"
	if current != nil {
		op = "replace"
	}
	return patchOp{Op: op, Path: pointer + "/dbId", Value: id}
}
