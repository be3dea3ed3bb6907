package content

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFieldsDocumentRoundTrip(t *testing.T) {
	in := Fields{
		Title:   "Intro",
		Body:    "# Intro\n",
		Summary: json.RawMessage(`{"points":["a"]}`),
		Sites:   []string{"academy"},
		Extra:   map[string]any{"duration": json.Number("5")},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Fields
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldsToleratesDrift(t *testing.T) {
	var f Fields
	if err := json.Unmarshal([]byte(`{"title":42,"slug":"intro","summary":null,"sites":"academy"}`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Title != "" || f.Slug != "intro" || f.Summary != nil || f.Sites != nil {
		t.Fatalf("unexpected typed fields: %+v", f)
	}
	want := map[string]any{"title": json.Number("42"), "sites": "academy"}
	if diff := cmp.Diff(want, f.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonicalJSON(t *testing.T) {
	a, err := CanonicalJSON(json.RawMessage(`{ "b": 1, "a": [1, 2] }`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := CanonicalJSON(json.RawMessage(`{"a":[1,2],"b":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("canonical forms differ: %s vs %s", a, b)
	}
}

func TestUnionSites(t *testing.T) {
	got := UnionSites([]string{"academy", "docs"}, "docs", "", "labs")
	if diff := cmp.Diff([]string{"academy", "docs", "labs"}, got); diff != "" {
		t.Fatalf("UnionSites mismatch (-want +got):\n%s", diff)
	}
	if got := UnionSites(nil, "academy"); len(got) != 1 || got[0] != "academy" {
		t.Fatalf("UnionSites(nil) = %v", got)
	}
}
