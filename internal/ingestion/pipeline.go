// Package ingestion implements the document ingestion pipeline.
// It scans an intake directory for source documents, extracts their text,
// chunks it into fixed-size word windows, embeds each chunk, and commits all
// of a document's chunks to the vector store as one atomic batch. Documents
// that commit successfully are moved to a processed directory, so re-running
// the pipeline is idempotent; documents that fail stay in the intake
// directory for a later retry. The pipeline is invoked by `medrag ingest`.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/medrag-io/medrag-go/internal/logging"
	"github.com/medrag-io/medrag-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// IntakeDir is the directory scanned for source documents.
	IntakeDir string

	// ProcessedDir is where successfully ingested documents are moved.
	// Defaults to <IntakeDir>/processed.
	ProcessedDir string

	// ChunkWords is the number of words per chunk. Defaults to
	// DefaultChunkWords if zero.
	ChunkWords int

	// Category overrides the inferred document category for every document
	// in this batch. Empty means infer per file name.
	Category string
}

// Report summarises one ingestion pass.
type Report struct {
	// Ingested lists the file names that were committed and archived.
	Ingested []string

	// Failed maps file names that could not be ingested to their errors.
	// Failed documents remain in the intake directory.
	Failed map[string]error

	// Chunks is the total number of chunks committed across all documents.
	Chunks int
}

// Pipeline orchestrates the extract → chunk → embed → commit → archive flow
// over one intake directory.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil || cfg.IntakeDir == "" {
		return nil, fmt.Errorf("ingestion: intake directory must be configured")
	}
	resolved := *cfg
	if resolved.ProcessedDir == "" {
		resolved.ProcessedDir = filepath.Join(resolved.IntakeDir, "processed")
	}
	if resolved.ChunkWords <= 0 {
		resolved.ChunkWords = DefaultChunkWords
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      &resolved,
	}, nil
}

// Ingest processes every supported document currently in the intake
// directory. A failure in one document is recorded in the report and the
// batch continues; the failed document stays in place for retry. The
// returned error covers only batch-level problems (unreadable intake
// directory), never per-document ones.
func (p *Pipeline) Ingest(ctx context.Context) (*Report, error) {
	log := logging.FromContext(ctx)

	entries, err := os.ReadDir(p.cfg.IntakeDir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read intake directory %s: %w", p.cfg.IntakeDir, err)
	}

	if err := os.MkdirAll(p.cfg.ProcessedDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingestion: create processed directory: %w", err)
	}

	report := &Report{Failed: make(map[string]error)}

	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingestion: cancelled: %w", err)
		}

		name := entry.Name()
		chunks, err := p.ingestOne(ctx, name)
		if err != nil {
			log.Warn("ingestion: document failed, leaving in intake for retry",
				slog.String("file", name),
				slog.Any("error", err),
			)
			report.Failed[name] = err
			continue
		}

		report.Ingested = append(report.Ingested, name)
		report.Chunks += chunks
		log.Info("ingestion: document committed",
			slog.String("file", name),
			slog.Int("chunks", chunks),
		)
	}

	return report, nil
}

// ingestOne runs the full pipeline for a single source document and returns
// the number of chunks committed. Nothing is written to the store unless
// every chunk of the document embedded successfully, and the source file is
// moved only after the store commit succeeds.
func (p *Pipeline) ingestOne(ctx context.Context, name string) (int, error) {
	path := filepath.Join(p.cfg.IntakeDir, name)

	text, err := ExtractText(path)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	var texts []string
	for chunk := range Chunks(text, p.cfg.ChunkWords) {
		texts = append(texts, chunk)
	}
	if len(texts) == 0 {
		// No extractable text. Archive the document so it is not re-scanned
		// forever, but commit nothing.
		if err := p.archive(name); err != nil {
			return 0, err
		}
		return 0, nil
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("embed: expected %d vectors, got %d", len(texts), len(embeddings))
	}

	category := p.cfg.Category
	if category == "" {
		category = InferCategory(name)
	}

	docs := make([]rag.Document, 0, len(texts))
	for i, chunk := range texts {
		docs = append(docs, rag.Document{
			ID:      chunkID(name, i),
			Content: chunk,
			Source:  name,
			Metadata: map[string]string{
				"category":    category,
				"chunk_index": fmt.Sprintf("%d", i),
			},
		})
	}

	// One Upsert per document keeps the commit atomic: either every chunk of
	// this document lands, or none do.
	if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	if err := p.archive(name); err != nil {
		return 0, err
	}

	return len(docs), nil
}

// archive moves a source document from the intake to the processed directory.
func (p *Pipeline) archive(name string) error {
	src := filepath.Join(p.cfg.IntakeDir, name)
	dst := filepath.Join(p.cfg.ProcessedDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive: move %s: %w", name, err)
	}
	return nil
}

// chunkID generates a deterministic UUID for a document chunk from its source
// file name and chunk index, so re-ingesting an identical document overwrites
// its previous points instead of duplicating them.
func chunkID(fileName string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "medrag:%s#%d", fileName, index)).String()
}
