// Package tools provides the retrieval tools exposed to the model and the
// manager that registers, dispatches, and tracks them.
//
// Tools report domain-level failures (no matching course, nothing found) as
// output strings for the model to read; Go errors are reserved for
// infrastructure failures.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

// Source is one provenance entry collected during tool execution, surfaced
// to the user alongside the answer.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Tool is a retrieval tool the model can invoke. Implementations track the
// sources of their last execution until ClearSources is called.
type Tool interface {
	// Definition returns the tool's model-facing metadata.
	Definition() Definition

	// Execute runs the tool against decoded JSON arguments. The returned
	// string is fed back to the model verbatim.
	Execute(ctx context.Context, args map[string]any) (string, error)

	// Attach registers the tool with Genkit so the model sees its
	// definition. Execution still flows through the Manager.
	Attach(g *genkit.Genkit) ai.Tool

	// Sources returns the provenance of the most recent execution.
	Sources() []Source

	// ClearSources drops the recorded provenance.
	ClearSources()
}

// decodeArgs converts the model's map arguments into a typed input via a
// JSON round trip, the same erasure Genkit applies to typed tool handlers.
func decodeArgs[In any](args map[string]any) (In, error) {
	var in In
	raw, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("encoding tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("invalid tool arguments: expected %T: %w", in, err)
	}
	return in, nil
}
