// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: Genkit, the
// vector index, the tool manager, the chat generator, and the
// question-answering system built from them. Setup constructs it in
// dependency order; Close releases what needs releasing.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/philippgille/chromem-go"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/rag"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Index     *chromem.DB
	Store     *knowledge.Store
	Manager   *tools.Manager
	Generator *chat.Generator
	Sessions  *session.Store
	System    *rag.System
}

// Close releases application resources. The vector index writes through to
// disk on every mutation, so there is nothing to flush; Close exists so the
// shutdown path stays uniform if a component with real teardown is added.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}
	return nil
}
