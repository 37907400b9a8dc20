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

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
)

// OutlineToolName is the Genkit tool name for course outlines.
const OutlineToolName = "get_course_outline"

const outlineDescription = "Get the complete outline of a course: title, link, and the full lesson list. " +
	"Use for questions about a course's structure or what lessons it contains. " +
	"The course_title accepts partial titles."

// OutlineInput defines input for the get_course_outline tool.
type OutlineInput struct {
	CourseTitle string `json:"course_title" jsonschema_description:"Course title or partial title (e.g. 'MCP', 'Introduction')"`
}

// Outliner is the slice of the knowledge store the outline tool consumes.
type Outliner interface {
	Outline(ctx context.Context, hint string) (*course.Course, error)
}

// CourseOutlineTool resolves a course hint and renders its lesson list.
//
// Safe for concurrent use.
type CourseOutlineTool struct {
	store  Outliner
	logger log.Logger
	schema *jsonschema.Schema

	mu      sync.Mutex
	sources []Source
}

// NewCourseOutlineTool creates the outline tool.
func NewCourseOutlineTool(store Outliner, logger log.Logger) (*CourseOutlineTool, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	schema, err := jsonschema.For[OutlineInput](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", OutlineToolName, err)
	}
	return &CourseOutlineTool{store: store, logger: logger, schema: schema}, nil
}

// Definition returns the tool's model-facing metadata.
func (t *CourseOutlineTool) Definition() Definition {
	return Definition{
		Name:        OutlineToolName,
		Description: outlineDescription,
		InputSchema: t.schema,
	}
}

// Attach registers the tool with Genkit.
func (t *CourseOutlineTool) Attach(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(g, OutlineToolName, outlineDescription,
		func(ctx *ai.ToolContext, in OutlineInput) (string, error) {
			return t.outline(ctx, in)
		})
}

// Execute runs the tool against decoded JSON arguments.
func (t *CourseOutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[OutlineInput](args)
	if err != nil {
		return "", err
	}
	return t.outline(ctx, in)
}

func (t *CourseOutlineTool) outline(ctx context.Context, in OutlineInput) (string, error) {
	c, err := t.store.Outline(ctx, in.CourseTitle)
	switch {
	case errors.Is(err, knowledge.ErrCourseNotFound):
		t.mu.Lock()
		t.sources = nil
		t.mu.Unlock()
		return fmt.Sprintf("No course found matching '%s'", in.CourseTitle), nil
	case err != nil:
		return "", fmt.Errorf("building course outline: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Course: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&sb, "Course Link: %s\n", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&sb, "Instructor: %s\n", c.Instructor)
	}
	fmt.Fprintf(&sb, "Lessons (%d):\n", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&sb, "- Lesson %d: %s\n", l.Number, l.Title)
	}

	t.mu.Lock()
	t.sources = []Source{{Text: c.Title, Link: c.Link}}
	t.mu.Unlock()

	t.logger.Debug("course outline executed", "hint", in.CourseTitle, "resolved", c.Title)
	return sb.String(), nil
}

// Sources returns the provenance of the most recent execution.
func (t *CourseOutlineTool) Sources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]Source, len(t.sources))
	copy(cp, t.sources)
	return cp
}

// ClearSources drops the recorded provenance.
func (t *CourseOutlineTool) ClearSources() {
	t.mu.Lock()
	t.sources = nil
	t.mu.Unlock()
}
