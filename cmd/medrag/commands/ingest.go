package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/medrag-io/medrag-go/internal/embedder"
	"github.com/medrag-io/medrag-go/internal/ingestion"
	"github.com/medrag-io/medrag-go/internal/logging"
)

// NewIngestCmd constructs the `medrag ingest` command, which runs the
// document ingestion pipeline over the intake directory.
func NewIngestCmd() *cobra.Command {
	var dir string
	var category string
	var chunkWords int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents from the intake directory into the vector store",
		Long: `Scan the intake directory for documents, chunk and embed their text, and
commit them to the Qdrant vector store.

Each document is committed atomically: either every chunk of the document is
indexed and the file is moved to the processed/ subdirectory, or the file
stays in the intake directory for a later retry. Re-running ingest is safe.

Supported formats: .pdf, .txt, .md

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: medrag-docs)
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  medrag ingest
  medrag ingest --dir ./corpus --category guidelines
  medrag ingest --chunk-words 300`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("backend", embedder.ResolveBackend()))

			store, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			if dir == "" {
				dir = getEnvOrDefault("MEDRAG_INTAKE_DIR", "./intake")
			}
			if chunkWords == 0 {
				chunkWords = getEnvInt("MEDRAG_CHUNK_WORDS", 0)
			}

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				IntakeDir:  dir,
				ChunkWords: chunkWords,
				Category:   category,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.String("intake_dir", dir))

			report, err := pipeline.Ingest(ctx)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ingested %d document(s), %d chunk(s)\n",
				len(report.Ingested), report.Chunks)
			for _, name := range report.Ingested {
				fmt.Fprintf(out, "  ok      %s\n", name)
			}
			if len(report.Failed) > 0 {
				names := make([]string, 0, len(report.Failed))
				for name := range report.Failed {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  failed  %s: %v\n", name, report.Failed[name])
				}
				return fmt.Errorf("ingest: %d document(s) failed and remain in %s", len(report.Failed), dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Intake directory to scan (default: $MEDRAG_INTAKE_DIR or ./intake)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category label applied to every document (default: inferred per file)")
	cmd.Flags().IntVarP(&chunkWords, "chunk-words", "w", 0, "Words per chunk (default: 500)")

	return cmd
}
