package rag_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/rag"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/testutil"
	"github.com/lectern/lectern/internal/tools"
)

const goodDoc = `Course Title: Go Basics
Course Link: https://example.com/go
Course Instructor: Rob

Lesson 1: Hello World
Lesson Link: https://example.com/go/1
The first program prints hello world. Every Go file starts with a package clause.

Lesson 2: Types
Go has static types. The compiler checks them at build time.
`

const badDoc = `Lesson 1: Orphan
This document has no course title header.
`

func newTestSystem(t *testing.T, mock *testutil.MockLLM) *rag.System {
	t.Helper()
	ctx := context.Background()

	g := genkit.Init(ctx)
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}
	mock.RegisterModel(g)
	emb := testutil.NewMockEmbedder(8)

	store, err := knowledge.New(chromem.NewDB(), emb.RegisterEmbedder(g), 5, log.NewNop())
	if err != nil {
		t.Fatalf("knowledge.New() error = %v", err)
	}

	manager := tools.NewManager()
	searchTool, err := tools.NewCourseSearchTool(store, log.NewNop())
	if err != nil {
		t.Fatalf("NewCourseSearchTool() error = %v", err)
	}
	outlineTool, err := tools.NewCourseOutlineTool(store, log.NewNop())
	if err != nil {
		t.Fatalf("NewCourseOutlineTool() error = %v", err)
	}
	for _, tool := range []tools.Tool{searchTool, outlineTool} {
		if err := manager.Register(tool); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	gen, err := chat.New(chat.Config{
		Genkit:    g,
		Tools:     manager,
		Logger:    log.NewNop(),
		ModelName: "mock/test-model",
	})
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}

	sys, err := rag.New(rag.Config{
		Store:     store,
		Manager:   manager,
		Generator: gen,
		Sessions:  session.NewStore(8),
		Indexer:   rag.NewIndexer(store, course.NewChunker(200, 40), log.NewNop()),
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("rag.New() error = %v", err)
	}
	return sys
}

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestSystemIngestReportsFailures(t *testing.T) {
	sys := newTestSystem(t, testutil.NewMockLLM("ok"))
	dir := writeDocs(t, map[string]string{
		"go.txt":     goodDoc,
		"orphan.txt": badDoc,
		"notes.json": `{"ignored": true}`,
	})

	result, err := sys.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if result.Courses != 1 {
		t.Errorf("Courses = %d, want 1", result.Courses)
	}
	if result.Chunks == 0 {
		t.Error("Chunks = 0, want some")
	}
	if len(result.Failures) != 1 {
		t.Fatalf("Failures = %+v, want 1", result.Failures)
	}
	if !errors.Is(result.Failures[0].Err, course.ErrMissingTitle) {
		t.Errorf("failure error = %v, want ErrMissingTitle", result.Failures[0].Err)
	}

	stats := sys.Stats()
	if stats.TotalCourses != 1 || len(stats.CourseTitles) != 1 || stats.CourseTitles[0] != "Go Basics" {
		t.Errorf("Stats() = %+v", stats)
	}

	if _, err := sys.Ingest(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("Ingest(missing dir) error = nil, want error")
	}
}

func TestSystemQueryWithSearch(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddToolResponse("lesson 1",
		[]*ai.ToolRequest{{
			Name:  "search_course_content",
			Ref:   "call-1",
			Input: map[string]any{"query": "hello world", "course_name": "Go Basics"},
		}},
		"Lesson 1 introduces hello world.")
	mock.AddResponse("thanks", "You're welcome.")

	sys := newTestSystem(t, mock)
	dir := writeDocs(t, map[string]string{"go.txt": goodDoc})
	if _, err := sys.Ingest(context.Background(), dir); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	resp, err := sys.Query(context.Background(), "What is in lesson 1?", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if resp.Answer != "Lesson 1 introduces hello world." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.SessionID == "" {
		t.Error("SessionID is empty, want a minted ID")
	}
	if len(resp.Sources) == 0 {
		t.Fatal("Sources are empty, want search provenance")
	}
	var linked bool
	for _, src := range resp.Sources {
		if src.Text == "Go Basics - Lesson 1" && src.Link == "https://example.com/go/1" {
			linked = true
		}
	}
	if !linked {
		t.Errorf("Sources = %+v, want a linked lesson 1 entry", resp.Sources)
	}

	// A follow-up that uses no tool must not inherit the old sources.
	followUp, err := sys.Query(context.Background(), "thanks", resp.SessionID)
	if err != nil {
		t.Fatalf("Query(follow-up) error = %v", err)
	}
	if len(followUp.Sources) != 0 {
		t.Errorf("follow-up Sources = %+v, want none", followUp.Sources)
	}
	if followUp.SessionID != resp.SessionID {
		t.Errorf("SessionID changed: %q -> %q", resp.SessionID, followUp.SessionID)
	}
}

func TestSystemSessionLifecycle(t *testing.T) {
	mock := testutil.NewMockLLM("generic answer")
	sys := newTestSystem(t, mock)

	resp, err := sys.Query(context.Background(), "first question", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if _, err := sys.Query(context.Background(), "second question", resp.SessionID); err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	// Both exchanges are visible to the next model call.
	if _, err := sys.Query(context.Background(), "third question", resp.SessionID); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("model calls = %d, want 3", len(calls))
	}

	sys.ClearSession(resp.SessionID)
	if _, err := sys.Query(context.Background(), "after clear", resp.SessionID); err != nil {
		t.Fatalf("Query() after clear error = %v", err)
	}
}

func TestSystemEmptyQuery(t *testing.T) {
	sys := newTestSystem(t, testutil.NewMockLLM("ok"))

	if _, err := sys.Query(context.Background(), "   ", ""); !errors.Is(err, rag.ErrEmptyQuery) {
		t.Fatalf("Query() error = %v, want ErrEmptyQuery", err)
	}
}
