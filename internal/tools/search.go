package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
)

// SearchToolName is the Genkit tool name for content search.
const SearchToolName = "search_course_content"

const searchDescription = "Search course materials with smart course name matching and optional lesson filtering. " +
	"Use only for questions about specific course content or detailed educational materials. " +
	"The course_name accepts partial titles ('MCP' matches 'MCP: Build Rich-Context AI Apps')."

// SearchInput defines input for the search_course_content tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title or partial title to restrict the search to"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Specific lesson number to search within (e.g. 1, 3)"`
}

// Searcher is the slice of the knowledge store the search tool consumes.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	LessonLink(ctx context.Context, courseTitle string, lesson int) (string, error)
	CourseLink(ctx context.Context, courseTitle string) (string, error)
}

// CourseSearchTool performs semantic search over course content and records
// one source per returned chunk.
//
// Safe for concurrent use.
type CourseSearchTool struct {
	store  Searcher
	logger log.Logger
	schema *jsonschema.Schema

	mu      sync.Mutex
	sources []Source
}

// NewCourseSearchTool creates the search tool.
func NewCourseSearchTool(store Searcher, logger log.Logger) (*CourseSearchTool, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", SearchToolName, err)
	}
	return &CourseSearchTool{store: store, logger: logger, schema: schema}, nil
}

// Definition returns the tool's model-facing metadata.
func (t *CourseSearchTool) Definition() Definition {
	return Definition{
		Name:        SearchToolName,
		Description: searchDescription,
		InputSchema: t.schema,
	}
}

// Attach registers the tool with Genkit.
func (t *CourseSearchTool) Attach(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, SearchToolName, searchDescription,
		func(ctx *ai.ToolContext, in SearchInput) (string, error) {
			return t.search(ctx, in)
		})
}

// Execute runs the tool against decoded JSON arguments.
func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[SearchInput](args)
	if err != nil {
		return "", err
	}
	return t.search(ctx, in)
}

func (t *CourseSearchTool) search(ctx context.Context, in SearchInput) (string, error) {
	var opts []knowledge.SearchOption
	if in.CourseName != "" {
		opts = append(opts, knowledge.WithCourse(in.CourseName))
	}
	if in.LessonNumber != nil {
		opts = append(opts, knowledge.WithLesson(*in.LessonNumber))
	}

	results, err := t.store.Search(ctx, in.Query, opts...)
	switch {
	case errors.Is(err, knowledge.ErrCourseNotFound):
		t.setSources(nil)
		return fmt.Sprintf("No course found matching '%s'", in.CourseName), nil
	case errors.Is(err, knowledge.ErrEmptyQuery):
		t.setSources(nil)
		return "Search query must not be empty.", nil
	case err != nil:
		return "", fmt.Errorf("searching course content: %w", err)
	}

	if len(results) == 0 {
		t.setSources(nil)
		var filter strings.Builder
		if in.CourseName != "" {
			fmt.Fprintf(&filter, " in course '%s'", in.CourseName)
		}
		if in.LessonNumber != nil {
			fmt.Fprintf(&filter, " in lesson %d", *in.LessonNumber)
		}
		return fmt.Sprintf("No relevant content found%s.", filter.String()), nil
	}

	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		label := r.CourseTitle
		if r.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", r.CourseTitle, *r.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, r.Content))

		// Link resolution is best-effort; a source without a link still
		// tells the user where the text came from.
		src := Source{Text: label}
		if r.LessonNumber != nil {
			if link, linkErr := t.store.LessonLink(ctx, r.CourseTitle, *r.LessonNumber); linkErr == nil {
				src.Link = link
			}
		} else if link, linkErr := t.store.CourseLink(ctx, r.CourseTitle); linkErr == nil {
			src.Link = link
		}
		sources = append(sources, src)
	}
	t.setSources(sources)

	t.logger.Debug("course search executed",
		"query", in.Query, "course", in.CourseName, "results", len(results))
	return strings.Join(blocks, "\n\n"), nil
}

func (t *CourseSearchTool) setSources(sources []Source) {
	t.mu.Lock()
	t.sources = sources
	t.mu.Unlock()
}

// Sources returns the provenance of the most recent execution.
func (t *CourseSearchTool) Sources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]Source, len(t.sources))
	copy(cp, t.sources)
	return cp
}

// ClearSources drops the recorded provenance.
func (t *CourseSearchTool) ClearSources() {
	t.setSources(nil)
}
