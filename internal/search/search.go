package search

import (
	"context"
	"slices"
	"sort"

	"academy/contentsync/internal/content"
	"academy/contentsync/internal/store"
)

// Result is a single lesson hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Snippet string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Site  string // empty = every site
	Limit int
}

// Response is the envelope printed by the search command.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// LessonIndex is a search engine holding lesson records.
type LessonIndex interface {
	Search(q Query) ([]Result, int, error)
	IndexLessons(lessons []LessonRecord) error
	DeleteLessons(ids []string) error
	Healthy() bool
}

// Fallback answers queries straight from the content store.
type Fallback interface {
	SearchLessons(ctx context.Context, text, site string, limit int) ([]store.Resource, error)
}

// LessonRecord is the data we index for a lesson.
type LessonRecord struct {
	ID          string   `json:"id"`
	ModuleID    string   `json:"moduleId"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Sites       []string `json:"sites"`
}

// LessonRecords collects the lessons of a loaded module tree, ordered by id.
func LessonRecords(moduleID string, index store.Index) []LessonRecord {
	records := make([]LessonRecord, 0)
	for id, entry := range index {
		if entry.Type != string(content.KindLesson) {
			continue
		}
		records = append(records, LessonRecord{
			ID:          id,
			ModuleID:    moduleID,
			Title:       entry.Fields.Title,
			Slug:        entry.Fields.Slug,
			Description: entry.Fields.Description,
			Sites:       slices.Clone(entry.Fields.Sites),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}
