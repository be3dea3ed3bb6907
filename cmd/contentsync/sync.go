package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"academy/contentsync/internal/app"
	"academy/contentsync/internal/cache"
	"academy/contentsync/internal/gitrepo"
	"academy/contentsync/internal/logger"
	"academy/contentsync/internal/reconcile"
	"academy/contentsync/internal/search"
)

var (
	syncDryRun     bool
	syncSite       string
	syncReportPath string
	syncCommit     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <manifest>",
	Short: "Reconcile a course manifest with the content store",
	Long: `Sync builds the content tree described by a course manifest, diffs it
against the persisted tree and applies the resulting plan in a single
transaction. Newly assigned ids are written back into the manifest.

Use --dry-run to compute and report the plan without writing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", cfg.DryRun, "Compute the plan without applying it (CONTENT_DRY_RUN)")
	syncCmd.Flags().StringVar(&syncSite, "site", cfg.Site, "Tenant tag added to every synced resource (CONTENT_SITE)")
	syncCmd.Flags().StringVar(&syncReportPath, "report", "", "Write JSON report to path")
	syncCmd.Flags().BoolVar(&syncCommit, "commit", cfg.GitCommit, "Commit the rewritten manifest to its git repository (CONTENT_GIT_COMMIT)")
}

func runSync(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	st, err := openStore(ctx, log, cfg.AutoMigrate && !syncDryRun)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []app.Option{
		app.WithSearch(search.NewService(lessonIndex(log), st, log)),
		app.WithGit(gitrepo.New(cfg.GitAuthor, cfg.GitEmail)),
	}
	if invalidator := redisInvalidator(ctx, log); invalidator != nil {
		defer invalidator.Close()
		opts = append(opts, app.WithCache(invalidator))
	}

	svc := app.New(st, log, opts...)
	result, err := svc.Sync(ctx, args[0], app.Options{
		Site:   syncSite,
		DryRun: syncDryRun,
		Commit: syncCommit,
	})
	if err != nil {
		return err
	}

	if syncReportPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := atomic.WriteFile(syncReportPath, bytes.NewReader(append(data, '\n'))); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	printSyncSummary(cmd, result)
	return nil
}

// redisInvalidator connects to REDIS_URL. A broken cache only costs stale
// reads, so a connection failure is logged and the hook skipped.
func redisInvalidator(ctx context.Context, log *logger.Logger) *cache.RedisInvalidator {
	if cfg.RedisURL == "" {
		return nil
	}
	invalidator, err := cache.NewRedisInvalidator(cfg.RedisURL)
	if err != nil {
		log.Warn("redis misconfigured, cache invalidation disabled", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := invalidator.Ping(pingCtx); err != nil {
		_ = invalidator.Close()
		log.Warn("redis unavailable, cache invalidation disabled", "error", err)
		return nil
	}
	return invalidator
}

func printSyncSummary(cmd *cobra.Command, result app.Result) {
	out := cmd.OutOrStdout()
	summary := result.Plan.Summary()
	fmt.Fprintf(out, "Sync %s\n", result.Manifest)
	if result.DryRun {
		fmt.Fprintln(out, "Mode: dry-run")
	} else if result.ModuleID != "" {
		fmt.Fprintf(out, "Module: %s\n", result.ModuleID)
	}
	fmt.Fprintf(out, "Resources: %d inserted, %d updated, %d deleted\n", summary.Inserts, summary.Updates, summary.Deletes)
	fmt.Fprintf(out, "Relationships: %d written, %d parents rebuilt\n", summary.Relationships, summary.Rebuilt)
	if result.DryRun {
		printPlan(out, result.Plan)
	}
	if !result.DryRun {
		fmt.Fprintf(out, "Manifest updated: %t\n", result.ManifestUpdated)
		if result.Indexed {
			fmt.Fprintln(out, "Search index: updated")
		}
		if result.Commit != nil {
			fmt.Fprintf(out, "Commit: %s\n", result.Commit.Hash)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings: %d\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
}

// printPlan lists every operation of a plan, naming nodes by their manifest
// ids where the plan knows them.
func printPlan(out io.Writer, plan reconcile.Plan) {
	names := make(map[string]string, len(plan.Assigned))
	for original, id := range plan.Assigned {
		names[id] = original
	}
	name := func(id string) string {
		if original, ok := names[id]; ok && original != id {
			return fmt.Sprintf("%s (%s)", original, id)
		}
		return id
	}

	for _, ins := range plan.Inserts {
		fmt.Fprintf(out, "  + insert %s %s %q\n", ins.Kind, ins.OriginalID, ins.Fields.Title)
	}
	for _, upd := range plan.Updates {
		keys := make([]string, 0, len(upd.Patch))
		for key := range upd.Patch {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fmt.Fprintf(out, "  ~ update %s: %s\n", name(upd.ID), strings.Join(keys, ", "))
	}
	for _, id := range plan.Deletes {
		fmt.Fprintf(out, "  - delete %s\n", name(id))
	}
	for _, rel := range plan.Relationships {
		fmt.Fprintf(out, "  > link %s -> %s @%g\n", name(rel.ParentID), name(rel.ChildID), rel.Position)
	}
}
