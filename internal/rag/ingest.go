package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
)

// Document extensions the ingester accepts.
var ingestExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// FileFailure records one document that could not be ingested.
type FileFailure struct {
	Path string
	Err  error
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	Courses  int
	Chunks   int
	Failures []FileFailure
}

// Indexer turns course documents into indexed chunks.
type Indexer struct {
	store   *knowledge.Store
	chunker *course.Chunker
	logger  log.Logger
}

// NewIndexer creates an Indexer writing into store.
func NewIndexer(store *knowledge.Store, chunker *course.Chunker, logger log.Logger) *Indexer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{store: store, chunker: chunker, logger: logger}
}

// IngestFile parses and indexes a single course document.
func (ix *Indexer) IngestFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := course.ParseDocument(filepath.Base(path), f)
	if err != nil {
		return 0, err
	}

	chunks := ix.chunker.BuildChunks(doc)
	if err := ix.store.AddCourse(ctx, doc.Course, chunks); err != nil {
		return 0, err
	}

	ix.logger.Info("ingested course",
		"file", filepath.Base(path), "title", doc.Course.Title, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestDirectory ingests every recognized document in dir, in name order.
// A document that fails to parse or index is reported in the result and
// skipped; only a missing or unreadable directory fails the whole run.
func (ix *Indexer) IngestDirectory(ctx context.Context, dir string) (*IngestResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading documents directory: %w", err)
	}

	result := &IngestResult{}
	for _, entry := range entries {
		if entry.IsDir() || !ingestExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		chunks, err := ix.IngestFile(ctx, path)
		if err != nil {
			ix.logger.Warn("skipping document", "file", entry.Name(), "error", err)
			result.Failures = append(result.Failures, FileFailure{Path: path, Err: err})
			continue
		}
		result.Courses++
		result.Chunks += chunks
	}

	ix.logger.Info("ingest complete",
		"dir", dir, "courses", result.Courses, "chunks", result.Chunks, "failures", len(result.Failures))
	return result, nil
}
