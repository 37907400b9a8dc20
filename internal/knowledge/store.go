// Package knowledge implements the dual vector index over ingested courses:
// a catalog collection holding one embedded title per course for fuzzy name
// resolution, and a content collection holding embedded text chunks for
// semantic search.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/log"
)

// Collection names within the chromem database.
const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
)

// Metadata keys on indexed documents. chromem metadata values are strings,
// so lesson numbers are stored in decimal form.
const (
	metaCourseTitle  = "course_title"
	metaLessonNumber = "lesson_number"
	metaChunkIndex   = "chunk_index"
	metaCourseLink   = "course_link"
	metaInstructor   = "instructor"
	metaLessons      = "lessons_json"
)

// Sentinel errors, checkable with errors.Is.
var (
	// ErrCourseNotFound indicates a course hint resolved to nothing, which
	// only happens when the catalog is empty or an exact title is unknown.
	ErrCourseNotFound = errors.New("course not found")

	// ErrLessonNotFound indicates a known course has no lesson with the
	// requested number.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrEmptyQuery indicates a blank search query.
	ErrEmptyQuery = errors.New("empty query")
)

// Store manages the two vector collections and an in-process course registry.
// The registry backs the analytics endpoints; it is rebuilt by the startup
// ingest, so a persisted index never serves without it.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	catalog    *chromem.Collection
	content    *chromem.Collection
	maxResults int
	logger     log.Logger

	mu      sync.RWMutex
	courses map[string]course.Course
}

// New creates a Store over db, creating the two collections if they do not
// exist. maxResults is the default result cap for Search; non-positive values
// fall back to 5.
func New(db *chromem.DB, embedder ai.Embedder, maxResults int, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	embedFn := NewEmbeddingFunc(embedder)
	catalog, err := db.GetOrCreateCollection(catalogCollection, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("creating catalog collection: %w", err)
	}
	content, err := db.GetOrCreateCollection(contentCollection, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("creating content collection: %w", err)
	}

	return &Store{
		catalog:    catalog,
		content:    content,
		maxResults: maxResults,
		logger:     logger,
		courses:    make(map[string]course.Course),
	}, nil
}

// AddCourse indexes a course and its chunks. Re-adding a title replaces the
// earlier version: old catalog and content documents are deleted first, so
// the index never holds two generations of the same course.
func (s *Store) AddCourse(ctx context.Context, c course.Course, chunks []course.Chunk) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("adding course: empty title")
	}

	if _, err := s.catalog.GetByID(ctx, c.Title); err == nil {
		if err := s.content.Delete(ctx, map[string]string{metaCourseTitle: c.Title}, nil); err != nil {
			return fmt.Errorf("removing stale chunks for %q: %w", c.Title, err)
		}
		if err := s.catalog.Delete(ctx, nil, nil, c.Title); err != nil {
			return fmt.Errorf("removing stale catalog entry %q: %w", c.Title, err)
		}
		s.logger.Debug("replacing indexed course", "title", c.Title)
	}

	lessonsJSON, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("encoding lessons for %q: %w", c.Title, err)
	}

	// The catalog embeds the title itself so fuzzy hints resolve by
	// nearest-neighbor; everything else about the course rides as metadata.
	err = s.catalog.AddDocument(ctx, chromem.Document{
		ID:      c.Title,
		Content: c.Title,
		Metadata: map[string]string{
			metaCourseLink: c.Link,
			metaInstructor: c.Instructor,
			metaLessons:    string(lessonsJSON),
		},
	})
	if err != nil {
		return fmt.Errorf("indexing catalog entry %q: %w", c.Title, err)
	}

	for i, ch := range chunks {
		meta := map[string]string{
			metaCourseTitle: ch.CourseTitle,
			metaChunkIndex:  strconv.Itoa(i),
		}
		if ch.LessonNumber != nil {
			meta[metaLessonNumber] = strconv.Itoa(*ch.LessonNumber)
		}
		err := s.content.AddDocument(ctx, chromem.Document{
			ID:       fmt.Sprintf("%s#%d", c.Title, i),
			Content:  ch.Content,
			Metadata: meta,
		})
		if err != nil {
			return fmt.Errorf("indexing chunk %d of %q: %w", i, c.Title, err)
		}
	}

	s.mu.Lock()
	s.courses[c.Title] = c
	s.mu.Unlock()

	s.logger.Debug("indexed course", "title", c.Title, "chunks", len(chunks))
	return nil
}

// Search performs semantic search over content chunks.
//
// A course hint given via WithCourse is resolved against the catalog first;
// an unresolvable hint returns ErrCourseNotFound rather than an empty result,
// so callers can distinguish "bad course" from "no matching content".
//
// Example:
//
//	results, err := store.Search(ctx, "what is backpropagation",
//	    knowledge.WithCourse("MCP"),
//	    knowledge.WithLesson(3))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	cfg := buildSearchConfig(opts)
	limit := cfg.limit
	if limit <= 0 {
		limit = s.maxResults
	}

	where := make(map[string]string)
	if cfg.course != "" {
		title, err := s.ResolveCourseName(ctx, cfg.course)
		if err != nil {
			return nil, err
		}
		where[metaCourseTitle] = title
	}
	if cfg.lesson != nil {
		where[metaLessonNumber] = strconv.Itoa(*cfg.lesson)
	}
	if len(where) == 0 {
		where = nil
	}

	// chromem rejects nResults above the collection size.
	count := s.content.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := s.content.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		r := Result{
			Content:     hit.Content,
			CourseTitle: hit.Metadata[metaCourseTitle],
			Similarity:  hit.Similarity,
		}
		if raw, ok := hit.Metadata[metaLessonNumber]; ok {
			if n, convErr := strconv.Atoi(raw); convErr == nil {
				r.LessonNumber = &n
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// ResolveCourseName resolves a fuzzy course hint ("MCP", "intro course") to
// the canonical title of the nearest catalog entry. There is no similarity
// cutoff: a non-empty catalog always resolves to its best match.
func (s *Store) ResolveCourseName(ctx context.Context, hint string) (string, error) {
	if strings.TrimSpace(hint) == "" {
		return "", fmt.Errorf("%w: empty hint", ErrCourseNotFound)
	}
	if s.catalog.Count() == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, hint)
	}

	hits, err := s.catalog.Query(ctx, hint, 1, nil, nil)
	if err != nil {
		return "", fmt.Errorf("resolving course %q: %w", hint, err)
	}
	if len(hits) == 0 {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, hint)
	}
	return hits[0].ID, nil
}

// Outline resolves a course hint and returns the full course metadata from
// the catalog entry.
func (s *Store) Outline(ctx context.Context, hint string) (*course.Course, error) {
	title, err := s.ResolveCourseName(ctx, hint)
	if err != nil {
		return nil, err
	}

	doc, err := s.catalog.GetByID(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("loading catalog entry %q: %w", title, err)
	}

	c := &course.Course{
		Title:      title,
		Link:       doc.Metadata[metaCourseLink],
		Instructor: doc.Metadata[metaInstructor],
	}
	if raw := doc.Metadata[metaLessons]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &c.Lessons); err != nil {
			return nil, fmt.Errorf("decoding lessons for %q: %w", title, err)
		}
	}
	return c, nil
}

// LessonLink returns the link of one lesson. The title must be canonical
// (as returned in search results); hints are not resolved here.
func (s *Store) LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error) {
	doc, err := s.catalog.GetByID(ctx, courseTitle)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, courseTitle)
	}

	var lessons []course.Lesson
	if raw := doc.Metadata[metaLessons]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
			return "", fmt.Errorf("decoding lessons for %q: %w", courseTitle, err)
		}
	}
	for _, l := range lessons {
		if l.Number == lesson {
			return l.Link, nil
		}
	}
	return "", fmt.Errorf("%w: lesson %d of %q", ErrLessonNotFound, lesson, courseTitle)
}

// CourseLink returns the course-level link for a canonical title.
func (s *Store) CourseLink(ctx context.Context, courseTitle string) (string, error) {
	doc, err := s.catalog.GetByID(ctx, courseTitle)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, courseTitle)
	}
	return doc.Metadata[metaCourseLink], nil
}

// CourseCount returns the number of courses ingested in this process.
func (s *Store) CourseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

// CourseTitles returns all ingested course titles in sorted order.
func (s *Store) CourseTitles() []string {
	s.mu.RLock()
	titles := make([]string, 0, len(s.courses))
	for t := range s.courses {
		titles = append(titles, t)
	}
	s.mu.RUnlock()

	sort.Strings(titles)
	return titles
}

// ChunkCount returns the number of content chunks in the index.
func (s *Store) ChunkCount() int {
	return s.content.Count()
}
