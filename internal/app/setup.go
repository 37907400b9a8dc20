package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/philippgille/chromem-go"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/rag"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// Setup creates and initializes the application in dependency order.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	db, err := provideIndex(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Index = db

	store, err := knowledge.New(db, embedder, cfg.MaxResults, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Store = store

	manager, err := provideTools(store, logger)
	if err != nil {
		return nil, err
	}
	a.Manager = manager

	gen, err := chat.New(chat.Config{
		Genkit:    g,
		Tools:     manager,
		Logger:    logger,
		ModelName: cfg.FullModelName(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat generator: %w", err)
	}
	a.Generator = gen

	// One conversation turn is a user message plus a model reply.
	a.Sessions = session.NewStore(cfg.MaxHistory * 2)

	indexer := rag.NewIndexer(store, course.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), logger)

	sys, err := rag.New(rag.Config{
		Store:     store,
		Manager:   manager,
		Generator: gen,
		Sessions:  a.Sessions,
		Indexer:   indexer,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rag system: %w", err)
	}
	a.System = sys

	logger.Info("application initialized",
		"model", cfg.FullModelName(),
		"embedder", cfg.EmbedderModel,
		"persistent_index", cfg.IndexDir != "",
	)
	return a, nil
}

// provideGenkit initializes Genkit with the Gemini plugin. The plugin reads
// GEMINI_API_KEY from the environment on its own.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideEmbedder looks up the embedder registered by the Gemini plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideIndex opens the vector index. With IndexDir set the index persists
// across restarts; otherwise it lives in memory and startup ingestion
// rebuilds it.
func provideIndex(cfg *config.Config, logger log.Logger) (*chromem.DB, error) {
	if cfg.IndexDir == "" {
		logger.Debug("using in-memory vector index")
		return chromem.NewDB(), nil
	}

	db, err := chromem.NewPersistentDB(cfg.IndexDir, true)
	if err != nil {
		return nil, fmt.Errorf("opening vector index at %s: %w", cfg.IndexDir, err)
	}
	logger.Debug("using persistent vector index", "dir", cfg.IndexDir)
	return db, nil
}

// provideTools creates the course tools and registers them with the manager.
func provideTools(store *knowledge.Store, logger log.Logger) (*tools.Manager, error) {
	manager := tools.NewManager()

	search, err := tools.NewCourseSearchTool(store, logger)
	if err != nil {
		return nil, fmt.Errorf("creating search tool: %w", err)
	}
	if err := manager.Register(search); err != nil {
		return nil, fmt.Errorf("registering search tool: %w", err)
	}

	outline, err := tools.NewCourseOutlineTool(store, logger)
	if err != nil {
		return nil, fmt.Errorf("creating outline tool: %w", err)
	}
	if err := manager.Register(outline); err != nil {
		return nil, fmt.Errorf("registering outline tool: %w", err)
	}

	return manager, nil
}
