// Package chat runs the two-call generation protocol: one model call that
// may request tools, tool execution through the manager, and at most one
// follow-up call to synthesize the answer from tool output.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// fallbackResponseMessage is returned when the model produces an empty
// response in either phase.
const fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// ToolRunner registers tools with Genkit and executes them by name.
// *tools.Manager satisfies it.
type ToolRunner interface {
	Attach(g *genkit.Genkit) []ai.ToolRef
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Config contains all required parameters for the Generator.
type Config struct {
	Genkit *genkit.Genkit
	Tools  ToolRunner
	Logger log.Logger

	// ModelName is the provider-qualified model name
	// (e.g. "googleai/gemini-2.5-flash").
	ModelName string

	// RateLimiter throttles model calls proactively. Nil uses a default of
	// 10 requests/sec with a burst of 30.
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool runner is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Generator produces answers over conversation history. It is stateless
// across calls and safe for concurrent use.
type Generator struct {
	g         *genkit.Genkit
	runner    ToolRunner
	toolRefs  []ai.ToolRef
	modelName string
	limiter   *rate.Limiter
	logger    log.Logger
}

// New creates a Generator and registers the runner's tools with Genkit.
func New(cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	gen := &Generator{
		g:         cfg.Genkit,
		runner:    cfg.Tools,
		toolRefs:  cfg.Tools.Attach(cfg.Genkit),
		modelName: cfg.ModelName,
		limiter:   limiter,
		logger:    logger,
	}

	logger.Debug("chat generator initialized",
		"model", gen.modelName, "tools", len(gen.toolRefs))
	return gen, nil
}

// Answer runs the two-call protocol for one query. The returned text is the
// model's final answer; tool sources are collected by the runner, not here.
//
// The model is called at most twice: once with tools available, and once
// more (without tools) only if the first call requested any.
func (gen *Generator) Answer(ctx context.Context, query string, history []session.Turn) (string, error) {
	messages := append(historyMessages(history), ai.NewUserMessage(ai.NewTextPart(query)))

	if err := gen.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(gen.toolRefs...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	requests := resp.ToolRequests()
	if len(requests) == 0 {
		return gen.finalText(resp), nil
	}

	parts := make([]*ai.Part, 0, len(requests))
	for _, tr := range requests {
		output, err := gen.runTool(ctx, tr)
		if err != nil {
			return "", err
		}
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   tr.Name,
			Ref:    tr.Ref,
			Output: output,
		}))
	}

	// Second call sees the full first-phase conversation plus tool output,
	// and deliberately gets no tools: the protocol ends here.
	followUp := append(resp.History(), ai.NewMessage(ai.RoleTool, nil, parts...))

	if err := gen.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	final, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(followUp...),
	)
	if err != nil {
		return "", fmt.Errorf("synthesizing answer from tool output: %w", err)
	}
	return gen.finalText(final), nil
}

// runTool executes one tool request through the runner. A name the manager
// does not know is a programming error (the model can only request tools it
// was offered) and fails the request.
func (gen *Generator) runTool(ctx context.Context, tr *ai.ToolRequest) (string, error) {
	args, _ := tr.Input.(map[string]any)

	output, err := gen.runner.Execute(ctx, tr.Name, args)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			gen.logger.Error("model requested unknown tool", "tool", tr.Name)
		}
		return "", fmt.Errorf("executing tool %q: %w", tr.Name, err)
	}

	gen.logger.Debug("tool executed", "tool", tr.Name, "output_length", len(output))
	return output, nil
}

func (gen *Generator) finalText(resp *ai.ModelResponse) string {
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		gen.logger.Warn("model returned empty response")
		return fallbackResponseMessage
	}
	return text
}

// historyMessages converts stored turns into model messages, oldest first.
func historyMessages(turns []session.Turn) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(turns)+1)
	for _, t := range turns {
		role := ai.RoleUser
		if t.Role == session.RoleModel {
			role = ai.RoleModel
		}
		msgs = append(msgs, ai.NewMessage(role, nil, ai.NewTextPart(t.Text)))
	}
	return msgs
}
