package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/testutil"
	"github.com/lectern/lectern/internal/tools"
)

// fakeRunner is a hand-rolled ToolRunner stub with call tracking.
type fakeRunner struct {
	output string
	err    error

	mu    sync.Mutex
	calls []fakeCall
}

type fakeCall struct {
	name string
	args map[string]any
}

func (f *fakeRunner) Attach(g *genkit.Genkit) []ai.ToolRef {
	tool := genkit.DefineTool(g, "search_course_content", "Search course materials.",
		func(_ *ai.ToolContext, in struct {
			Query string `json:"query"`
		}) (string, error) {
			return "", nil
		})
	return []ai.ToolRef{tool}
}

func (f *fakeRunner) Execute(_ context.Context, name string, args map[string]any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{name: name, args: args})
	f.mu.Unlock()
	return f.output, f.err
}

func (f *fakeRunner) recorded() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]fakeCall, len(f.calls))
	copy(cp, f.calls)
	return cp
}

func newGenerator(t *testing.T, mock *testutil.MockLLM, runner chat.ToolRunner) *chat.Generator {
	t.Helper()

	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}
	mock.RegisterModel(g)

	gen, err := chat.New(chat.Config{
		Genkit:    g,
		Tools:     runner,
		Logger:    log.NewNop(),
		ModelName: "mock/test-model",
	})
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}
	return gen
}

func TestAnswerWithoutTools(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("capital of france", "Paris.")
	gen := newGenerator(t, mock, &fakeRunner{})

	answer, err := gen.Answer(context.Background(), "What is the capital of France?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer != "Paris." {
		t.Errorf("answer = %q, want %q", answer, "Paris.")
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	if calls[0].ToolsOffered == 0 {
		t.Error("first call offered no tools")
	}
}

func TestAnswerWithToolCall(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddToolResponse("lesson 3",
		[]*ai.ToolRequest{{
			Name:  "search_course_content",
			Ref:   "call-1",
			Input: map[string]any{"query": "lesson 3 topics", "course_name": "MCP"},
		}},
		"Lesson 3 covers tool definitions.")
	runner := &fakeRunner{output: "[MCP - Lesson 3]\nTool definitions."}
	gen := newGenerator(t, mock, runner)

	answer, err := gen.Answer(context.Background(), "What does lesson 3 of MCP cover?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer != "Lesson 3 covers tool definitions." {
		t.Errorf("answer = %q", answer)
	}

	executed := runner.recorded()
	if len(executed) != 1 {
		t.Fatalf("tool executions = %d, want 1", len(executed))
	}
	if executed[0].name != "search_course_content" {
		t.Errorf("executed tool = %q", executed[0].name)
	}
	if executed[0].args["course_name"] != "MCP" {
		t.Errorf("tool args = %v", executed[0].args)
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("model calls = %d, want exactly 2", len(calls))
	}
	if !calls[1].SawToolOutput {
		t.Error("second call carried no tool output")
	}
	if calls[1].ToolsOffered != 0 {
		t.Errorf("second call offered %d tools, want 0", calls[1].ToolsOffered)
	}
}

func TestAnswerUnknownToolFailsRequest(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddToolResponse("weird",
		[]*ai.ToolRequest{{Name: "bogus_tool", Ref: "call-1", Input: map[string]any{}}},
		"Recovered answer.")
	runner := &fakeRunner{err: tools.ErrUnknownTool}
	gen := newGenerator(t, mock, runner)

	_, err := gen.Answer(context.Background(), "Something weird", nil)
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("Answer() error = %v, want ErrUnknownTool", err)
	}
	// The failure happens before the synthesis call.
	if calls := mock.Calls(); len(calls) != 1 {
		t.Errorf("model calls = %d, want 1", len(calls))
	}
}

func TestAnswerEmptyResponseFallback(t *testing.T) {
	mock := testutil.NewMockLLM("")
	gen := newGenerator(t, mock, &fakeRunner{})

	answer, err := gen.Answer(context.Background(), "Anything", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.Contains(answer, "couldn't generate a response") {
		t.Errorf("answer = %q, want fallback message", answer)
	}
}

func TestAnswerCarriesHistory(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("follow-up", "Answer with context.")
	gen := newGenerator(t, mock, &fakeRunner{})

	history := []session.Turn{
		{Role: session.RoleUser, Text: "Earlier question"},
		{Role: session.RoleModel, Text: "Earlier answer"},
	}
	answer, err := gen.Answer(context.Background(), "A follow-up question", history)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer != "Answer with context." {
		t.Errorf("answer = %q", answer)
	}

	// The mock matches the LAST user message, so reaching the registered
	// response proves history did not displace the current query.
	calls := mock.Calls()
	if len(calls) != 1 || calls[0].UserMessage != "A follow-up question" {
		t.Errorf("calls = %+v", calls)
	}
}
