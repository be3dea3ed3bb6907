package search

import (
	"context"
	"strings"

	"academy/contentsync/internal/logger"
	"academy/contentsync/internal/store"
)

// Service is the facade that tries the lesson index first and falls back to
// the content store.
type Service struct {
	index    LessonIndex
	fallback Fallback
	log      *logger.Logger
}

// NewService creates a search service. index may be nil if no search engine
// is configured.
func NewService(index LessonIndex, fallback Fallback, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{index: index, fallback: fallback, log: log}
}

func (s *Service) indexReady() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries the lesson index if healthy, otherwise queries the store.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "index"}
		}
		s.log.Warn("search: index error, falling back to store", "error", err)
	}

	resources, err := s.fallback.SearchLessons(ctx, q.Text, q.Site, q.Limit)
	if err != nil {
		s.log.Error("search: store fallback failed", "error", err)
		return Response{Results: []Result{}, Query: q.Text, Source: "store"}
	}
	results := resourcesToResults(resources)
	return Response{Results: results, Total: len(results), Query: q.Text, Source: "store"}
}

// Reindex pushes the lessons of a freshly synced module into the index and
// drops removed ids. It reports false when no index is available.
func (s *Service) Reindex(moduleID string, tree store.Index, removed []string) (bool, error) {
	if !s.indexReady() {
		return false, nil
	}
	if err := s.index.IndexLessons(LessonRecords(moduleID, tree)); err != nil {
		return true, err
	}
	if len(removed) > 0 {
		if err := s.index.DeleteLessons(removed); err != nil {
			return true, err
		}
	}
	return true, nil
}

func resourcesToResults(resources []store.Resource) []Result {
	results := make([]Result, 0, len(resources))
	for _, res := range resources {
		results = append(results, Result{
			ID:      res.ID,
			Title:   res.Fields.Title,
			Slug:    res.Fields.Slug,
			Snippet: snippet(res.Fields.Description, res.Fields.Body),
		})
	}
	return results
}

func snippet(description, body string) string {
	if text := strings.TrimSpace(description); text != "" {
		return text
	}
	text := strings.Join(strings.Fields(body), " ")
	if len(text) > 160 {
		cut := strings.LastIndex(text[:160], " ")
		if cut <= 0 {
			cut = 160
		}
		text = text[:cut] + "..."
	}
	return text
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
