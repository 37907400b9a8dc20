package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Sentinel errors, checkable with errors.Is.
var (
	// ErrDuplicateTool indicates a second registration under the same name.
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrUnknownTool indicates dispatch to a name nobody registered. The
	// model only sees registered tools, so this is a programming error.
	ErrUnknownTool = errors.New("unknown tool")
)

// Manager registers tools, dispatches execution by name, and aggregates the
// sources recorded by the last executed tool.
//
// Safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewManager creates an empty tool manager.
func NewManager() *Manager {
	return &Manager{tools: make(map[string]Tool)}
}

// Register adds a tool under its definition name.
func (m *Manager) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return fmt.Errorf("registering tool: empty name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tools[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}
	m.tools[name] = t
	m.order = append(m.order, name)
	return nil
}

// Definitions returns all tool definitions in registration order.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs := make([]Definition, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Attach registers every tool with Genkit and returns the references to pass
// to generation.
func (m *Manager) Attach(g *genkit.Genkit) []ai.ToolRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make([]ai.ToolRef, 0, len(m.order))
	for _, name := range m.order {
		refs = append(refs, m.tools[name].Attach(g))
	}
	return refs
}

// Execute dispatches one tool call by name.
func (m *Manager) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	t, ok := m.tools[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t.Execute(ctx, args)
}

// LastSources returns the sources of the most recently executed tool: the
// first tool, in registration order, holding a non-empty source list.
func (m *Manager) LastSources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		if sources := m.tools[name].Sources(); len(sources) > 0 {
			return sources
		}
	}
	return nil
}

// ResetSources clears the recorded sources of every tool. Called after each
// answer so sources never leak into the next query.
func (m *Manager) ResetSources() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tools {
		t.ClearSources()
	}
}
