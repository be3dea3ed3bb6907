package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"academy/contentsync/internal/logger"
	"academy/contentsync/internal/search"
	"academy/contentsync/internal/store"
)

var (
	searchSite  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search synced lessons",
	Long: `Search queries the Meilisearch lesson index when MEILI_URL is set and
healthy, and falls back to scanning the content store otherwise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchSite, "site", cfg.Site, "Only return lessons tagged with this site")
	searchCmd.Flags().IntVar(&searchLimit, "limit", cfg.SearchLimit, "Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := openStore(cmd.Context(), log, cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := search.NewService(lessonIndex(log), st, log)
	resp := svc.Search(cmd.Context(), search.Query{
		Text:  strings.Join(args, " "),
		Site:  searchSite,
		Limit: searchLimit,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// lessonIndex returns the configured Meilisearch index, or nil when none is
// configured.
func lessonIndex(log *logger.Logger) search.LessonIndex {
	if cfg.MeiliURL == "" {
		return nil
	}
	return search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
}

var _ search.Fallback = (*store.Store)(nil)
