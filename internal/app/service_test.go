package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"academy/contentsync/internal/cache"
	"academy/contentsync/internal/content"
	"academy/contentsync/internal/gitrepo"
	"academy/contentsync/internal/store"
	"academy/contentsync/internal/store/storetest"
)

type fakeCache struct {
	invalidateFn func(context.Context, []string) (int64, error)
	publishFn    func(context.Context, cache.SyncEvent) error
}

func (f *fakeCache) Invalidate(ctx context.Context, ids []string) (int64, error) {
	if f.invalidateFn != nil {
		return f.invalidateFn(ctx, ids)
	}
	return int64(len(ids)), nil
}

func (f *fakeCache) Publish(ctx context.Context, event cache.SyncEvent) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, event)
	}
	return nil
}

type fakeSearch struct {
	reindexFn func(string, store.Index, []string) (bool, error)
}

func (f *fakeSearch) Reindex(moduleID string, tree store.Index, removed []string) (bool, error) {
	if f.reindexFn != nil {
		return f.reindexFn(moduleID, tree, removed)
	}
	return true, nil
}

type fakeGit struct {
	commitFilesFn func([]string, string) (gitrepo.CommitInfo, bool, error)
}

func (f *fakeGit) CommitFiles(paths []string, message string) (gitrepo.CommitInfo, bool, error) {
	if f.commitFilesFn != nil {
		return f.commitFilesFn(paths, message)
	}
	return gitrepo.CommitInfo{Hash: "abc123"}, true, nil
}

const course = `{
	// AI SDK
	"id": "ai-sdk",
	"type": "module",
	"title": "AI SDK",
	"resources": [
		{
			"id": "fundamentals",
			"type": "section",
			"resources": [
				{"id": "intro", "type": "lesson", "path": "lessons/intro.mdx"},
				{"id": "setup", "type": "lesson", "path": "lessons/setup.mdx"},
			],
		},
	],
}`

func writeCourse(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"course.json":       course,
		"lessons/intro.mdx": "---\ntitle: Introduction\ndescription: Start here\n---\nHello.\n",
		"lessons/setup.mdx": "Install the SDK.\n",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "course.json")
}

func countResources(t *testing.T, s *store.Store) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRowContext(context.Background(), `SELECT count(*) FROM content_resources`).Scan(&n); err != nil {
		t.Fatalf("count resources: %v", err)
	}
	return n
}

func TestSyncFirstRunThenNoop(t *testing.T) {
	s := storetest.Open(t)
	path := writeCourse(t)

	var events []cache.SyncEvent
	c := &fakeCache{publishFn: func(_ context.Context, event cache.SyncEvent) error {
		events = append(events, event)
		return nil
	}}
	var reindexed int
	idx := &fakeSearch{reindexFn: func(moduleID string, tree store.Index, _ []string) (bool, error) {
		reindexed = len(tree)
		return true, nil
	}}
	svc := New(s, nil, WithCache(c), WithSearch(idx))
	svc.now = func() time.Time { return time.Unix(100, 0) }

	ctx := context.Background()
	first, err := svc.Sync(ctx, path, Options{Site: "academy"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := first.Plan.Summary(); got.Inserts != 4 || got.Relationships != 3 {
		t.Fatalf("unexpected plan: %+v", got)
	}
	if !first.ManifestUpdated || first.ModuleID == "" || len(first.IDs) != 4 {
		t.Fatalf("unexpected result: %+v", first)
	}
	if !first.Indexed || reindexed != 4 {
		t.Fatalf("expected the synced tree to be indexed, got %d entries", reindexed)
	}
	if len(events) != 1 || len(events[0].Inserted) != 4 || events[0].Site != "academy" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if countResources(t, s) != 4 {
		t.Fatalf("resources = %d", countResources(t, s))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "// AI SDK") {
		t.Fatalf("manifest comment lost:\n%s", raw)
	}
	manifest, err := content.LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.DBID == nil || *manifest.DBID != first.ModuleID {
		t.Fatalf("module dbId not recorded:\n%s", raw)
	}

	second, err := svc.Sync(ctx, path, Options{Site: "academy"})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if second.Plan.Changes() || second.ManifestUpdated {
		t.Fatalf("second run should be a no-op: %+v", second.Plan.Summary())
	}
	if second.ModuleID != first.ModuleID {
		t.Fatalf("module id changed: %s -> %s", first.ModuleID, second.ModuleID)
	}
	if countResources(t, s) != 4 {
		t.Fatalf("resources = %d", countResources(t, s))
	}
}

func TestSyncDryRunTouchesNothing(t *testing.T) {
	s := storetest.Open(t)
	path := writeCourse(t)
	before, _ := os.ReadFile(path)

	c := &fakeCache{publishFn: func(context.Context, cache.SyncEvent) error {
		t.Fatal("dry run must not publish")
		return nil
	}}
	svc := New(s, nil, WithCache(c))

	result, err := svc.Sync(context.Background(), path, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !result.DryRun || result.Plan.Summary().Inserts != 4 || result.IDs != nil {
		t.Fatalf("unexpected dry-run result: %+v", result)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatal("dry run rewrote the manifest")
	}
	if countResources(t, s) != 0 {
		t.Fatal("dry run wrote to the store")
	}
}

func TestSyncRemovesDroppedLesson(t *testing.T) {
	s := storetest.Open(t)
	path := writeCourse(t)
	svc := New(s, nil)
	ctx := context.Background()

	first, err := svc.Sync(ctx, path, Options{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	trimmed := `{
		"id": "ai-sdk", "dbId": "` + first.IDs["ai-sdk"] + `", "type": "module", "title": "AI SDK",
		"resources": [{
			"id": "fundamentals", "dbId": "` + first.IDs["fundamentals"] + `", "type": "section",
			"resources": [{"id": "intro", "dbId": "` + first.IDs["intro"] + `", "type": "lesson", "path": "lessons/intro.mdx"}]
		}]
	}`
	if err := os.WriteFile(path, []byte(trimmed), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := svc.Sync(ctx, path, Options{})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if len(second.Plan.Deletes) != 1 || second.Plan.Deletes[0] != first.IDs["setup"] {
		t.Fatalf("expected setup to be deleted, got %v", second.Plan.Deletes)
	}
	if countResources(t, s) != 3 {
		t.Fatalf("resources = %d", countResources(t, s))
	}
}

func TestSyncMissingManifest(t *testing.T) {
	svc := New(storetest.Open(t), nil)
	_, err := svc.Sync(context.Background(), filepath.Join(t.TempDir(), "missing.json"), Options{})
	if !errors.Is(err, content.ErrManifestNotFound) {
		t.Fatalf("expected ErrManifestNotFound, got %v", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageBuild {
		t.Fatalf("expected build stage error, got %v", err)
	}
}

func TestSyncHookFailuresAreWarnings(t *testing.T) {
	s := storetest.Open(t)
	path := writeCourse(t)
	boom := errors.New("unreachable")

	c := &fakeCache{
		invalidateFn: func(context.Context, []string) (int64, error) { return 0, boom },
		publishFn:    func(context.Context, cache.SyncEvent) error { return boom },
	}
	idx := &fakeSearch{reindexFn: func(string, store.Index, []string) (bool, error) { return true, boom }}
	g := &fakeGit{commitFilesFn: func([]string, string) (gitrepo.CommitInfo, bool, error) {
		return gitrepo.CommitInfo{}, false, boom
	}}

	result, err := New(s, nil, WithCache(c), WithSearch(idx), WithGit(g)).
		Sync(context.Background(), path, Options{Commit: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(result.Warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %v", result.Warnings)
	}
	if countResources(t, s) != 4 {
		t.Fatal("hook failures must not undo the sync")
	}
}

func TestSyncCommitsRewrittenManifest(t *testing.T) {
	s := storetest.Open(t)
	path := writeCourse(t)

	var committed []string
	g := &fakeGit{commitFilesFn: func(paths []string, message string) (gitrepo.CommitInfo, bool, error) {
		committed = paths
		if !strings.Contains(message, "ai-sdk") {
			t.Errorf("unexpected message %q", message)
		}
		return gitrepo.CommitInfo{Hash: "abc123"}, true, nil
	}}
	svc := New(s, nil, WithGit(g))

	result, err := svc.Sync(context.Background(), path, Options{Commit: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Commit == nil || result.Commit.Hash != "abc123" {
		t.Fatalf("expected commit info, got %+v", result.Commit)
	}
	if len(committed) != 1 || committed[0] != path {
		t.Fatalf("unexpected committed paths: %v", committed)
	}

	committed = nil
	if _, err := svc.Sync(context.Background(), path, Options{Commit: true}); err != nil {
		t.Fatal(err)
	}
	if committed != nil {
		t.Fatal("unchanged manifest must not be committed")
	}
}
