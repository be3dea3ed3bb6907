package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	meili "github.com/meilisearch/meilisearch-go"

	"academy/contentsync/internal/logger"
)

const idxLessons = "content_lessons"

// Meili implements LessonIndex via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	log     *logger.Logger
}

// NewMeili creates a Meilisearch client and configures the lesson index.
// An unreachable server leaves the client unhealthy rather than failing.
func NewMeili(url, apiKey string, log *logger.Logger) *Meili {
	if log == nil {
		log = logger.Nop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{client: client, log: log}

	if _, err := client.Health(); err != nil {
		log.Warn("search: meilisearch unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxLessons,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Debug("search: create index (may already exist)", "index", idxLessons, "error", err)
	}

	index := m.client.Index(idxLessons)
	filterable := []interface{}{"moduleId", "sites"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn("search: update filterable attrs", "index", idxLessons, "error", err)
	}
	searchable := []string{"title", "description", "slug"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("search: update searchable attrs", "index", idxLessons, "error", err)
	}
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the lesson index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	sr := &meili.SearchRequest{
		IndexUID:              idxLessons,
		Query:                 q.Text,
		Limit:                 limit,
		AttributesToHighlight: []string{"description"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.Site != "" {
		sr.Filter = []string{fmt.Sprintf("sites = %q", q.Site)}
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, r := range resp.Results {
		total += int(r.EstimatedTotalHits)
		for _, hit := range r.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:      decodeString(hit, "id"),
		Title:   decodeString(hit, "title"),
		Slug:    decodeString(hit, "slug"),
		Snippet: firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description")),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexLessons bulk-indexes lessons.
func (m *Meili) IndexLessons(lessons []LessonRecord) error {
	if len(lessons) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLessons).AddDocuments(lessons, nil)
	return err
}

// DeleteLessons removes lessons from the index.
func (m *Meili) DeleteLessons(ids []string) error {
	index := m.client.Index(idxLessons)
	for _, id := range ids {
		if _, err := index.DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete lesson %s: %w", id, err)
		}
	}
	return nil
}
