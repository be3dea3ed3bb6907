// Package app orchestrates one content sync: build the tree, diff it against
// the store, apply the plan, record ids in the manifest and run the
// post-commit hooks.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"academy/contentsync/internal/cache"
	"academy/contentsync/internal/content"
	"academy/contentsync/internal/gitrepo"
	"academy/contentsync/internal/logger"
	"academy/contentsync/internal/reconcile"
	"academy/contentsync/internal/store"
)

type contentStore interface {
	reconcile.TxRunner
	LoadTree(ctx context.Context, rootID string) (store.Index, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, ids []string) (int64, error)
	Publish(ctx context.Context, event cache.SyncEvent) error
}

type lessonIndexer interface {
	Reindex(moduleID string, tree store.Index, removed []string) (bool, error)
}

type gitService interface {
	CommitFiles(paths []string, message string) (gitrepo.CommitInfo, bool, error)
}

// Options control a single sync.
type Options struct {
	// Site is the tenant tag added to every synced resource.
	Site   string
	DryRun bool
	// Commit records the rewritten manifest in its git repository.
	Commit bool
}

// Result describes what a sync did. On a dry run only Plan is filled in.
type Result struct {
	Manifest string         `json:"manifest"`
	DryRun   bool           `json:"dryRun"`
	ModuleID string         `json:"moduleId,omitempty"`
	Plan     reconcile.Plan `json:"plan"`
	// Inserted maps placeholders to the ids the store assigned.
	Inserted        map[string]string   `json:"inserted,omitempty"`
	IDs             map[string]string   `json:"ids,omitempty"`
	ManifestUpdated bool                `json:"manifestUpdated"`
	Indexed         bool                `json:"indexed"`
	Commit          *gitrepo.CommitInfo `json:"commit,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
}

type Service struct {
	store   contentStore
	builder *content.Builder
	cache   cacheInvalidator
	search  lessonIndexer
	git     gitService
	log     *logger.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithCache(c cacheInvalidator) Option {
	return func(s *Service) { s.cache = c }
}

func WithSearch(idx lessonIndexer) Option {
	return func(s *Service) { s.search = idx }
}

func WithGit(g gitService) Option {
	return func(s *Service) { s.git = g }
}

func New(contentStore contentStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		store:   contentStore,
		builder: content.NewBuilder(log),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles the manifest at path with the store. Build, load and apply
// failures are fatal and leave the store untouched. Once the transaction has
// committed every later failure is reported as a warning.
func (s *Service) Sync(ctx context.Context, path string, opts Options) (Result, error) {
	result := Result{Manifest: path, DryRun: opts.DryRun}

	manifest, root, err := s.builder.Build(path)
	if err != nil {
		return result, stageError(StageBuild, err)
	}
	counts := root.Count()
	s.log.Info("content tree built",
		"module", root.OriginalID,
		"sections", counts[content.KindSection],
		"lessons", counts[content.KindLesson])

	index, err := s.store.LoadTree(ctx, root.PersistedID)
	if err != nil {
		return result, stageError(StageLoad, fmt.Errorf("load persisted tree: %w", err))
	}

	plan := reconcile.New(index, opts.Site).Plan(root)
	result.Plan = plan
	summary := plan.Summary()
	s.log.Info("plan computed",
		"inserts", summary.Inserts,
		"updates", summary.Updates,
		"deletes", summary.Deletes,
		"rebuilt", summary.Rebuilt,
		"relationships", summary.Relationships)

	if opts.DryRun {
		return result, nil
	}

	inserted, err := reconcile.Apply(ctx, s.store, plan)
	if err != nil {
		return result, stageError(StageApply, err)
	}
	result.Inserted = inserted
	result.IDs = plan.Resolved(inserted)
	result.ModuleID = result.IDs[root.OriginalID]
	s.log.Info("plan applied", "module", result.ModuleID, "inserted", len(inserted))

	updated, err := content.WriteBack(manifest, result.IDs)
	if err != nil {
		s.warn(&result, "manifest not updated; record the new ids before the next run", err)
	} else {
		result.ManifestUpdated = updated
	}

	s.invalidate(ctx, &result, opts.Site)
	s.reindex(ctx, &result)
	if opts.Commit && result.ManifestUpdated {
		s.commit(&result, manifest)
	}
	return result, nil
}

func (s *Service) warn(result *Result, msg string, err error) {
	s.log.Warn(msg, "error", err)
	result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

func (s *Service) invalidate(ctx context.Context, result *Result, site string) {
	if s.cache == nil {
		return
	}
	if !result.Plan.Changes() && len(result.Plan.Rebuild) == 0 {
		return
	}

	event := cache.SyncEvent{
		ModuleID: result.ModuleID,
		Site:     site,
		Inserted: sortedValues(result.Inserted),
		Updated:  make([]string, 0, len(result.Plan.Updates)),
		Deleted:  append([]string{}, result.Plan.Deletes...),
		SyncedAt: s.now().UTC(),
	}
	for _, update := range result.Plan.Updates {
		event.Updated = append(event.Updated, update.ID)
	}

	ids := append(event.Touched(), result.Plan.Rebuild...)
	if n, err := s.cache.Invalidate(ctx, ids); err != nil {
		s.warn(result, "cache invalidation failed", err)
	} else {
		s.log.Debug("cache invalidated", "keys", n)
	}
	if err := s.cache.Publish(ctx, event); err != nil {
		s.warn(result, "sync event not published", err)
	}
}

func (s *Service) reindex(ctx context.Context, result *Result) {
	if s.search == nil || result.ModuleID == "" {
		return
	}
	tree, err := s.store.LoadTree(ctx, result.ModuleID)
	if err != nil {
		s.warn(result, "search reindex skipped", err)
		return
	}
	indexed, err := s.search.Reindex(result.ModuleID, tree, result.Plan.Deletes)
	if err != nil {
		s.warn(result, "search reindex failed", err)
		return
	}
	result.Indexed = indexed
}

func (s *Service) commit(result *Result, manifest *content.Manifest) {
	if s.git == nil {
		return
	}
	info, committed, err := s.git.CommitFiles([]string{manifest.Path()}, fmt.Sprintf("contentsync: record ids for %s", manifest.ID))
	if err != nil {
		s.warn(result, "manifest commit failed", err)
		return
	}
	if committed {
		result.Commit = &info
		s.log.Info("manifest committed", "hash", info.Hash)
	}
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
