package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medrag-io/medrag-go/internal/embedder"
	"github.com/medrag-io/medrag-go/internal/evaluation"
	"github.com/medrag-io/medrag-go/internal/logging"
	"github.com/medrag-io/medrag-go/internal/rag"
)

// NewEvalCmd constructs the `medrag eval` command, which measures retrieval
// quality (hit rate at k) against a labelled question set.
func NewEvalCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "eval [dataset.json]",
		Short: "Evaluate retrieval quality against a labelled question set",
		Long: `Run a retrieval evaluation pass over a JSON dataset of labelled questions.

The dataset is a JSON array of objects with two fields:

  [
    {"question": "first-line treatment for hypertension?",
     "expected_doc_filename": "htn-guideline-2024.pdf"}
  ]

For each question the evaluator retrieves the top-k chunks and scores a hit
when any retrieved chunk originates from the expected document. The aggregate
hit rate is printed and, when MLFLOW_TRACKING_URI is set, logged as a
telemetry run for comparison across index or embedding changes.

Examples:
  medrag eval testdata/eval-questions.json
  medrag eval --top-k 5 clinical-qa.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			samples, err := evaluation.LoadSamples(args[0])
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("eval: failed to initialise embedder: %w", err)
			}

			store, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			defer store.Close()

			retriever, err := rag.NewSessionRetriever(emb, store, topK)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			sink, err := buildSink(log)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			harness, err := evaluation.NewHarness(retriever, sink, topK)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			result, err := harness.Evaluate(ctx, samples)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hit rate @ %d: %.3f (%d/%d)\n",
				result.TopK, result.HitRate, result.Hits, result.Total)
			for _, miss := range result.Misses {
				fmt.Fprintf(out, "  miss  %q expected %s\n", miss.Question, miss.ExpectedDocFilename)
			}
			for question, evalErr := range result.Errors {
				fmt.Fprintf(out, "  error %q: %v\n", question, evalErr)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "Retrieval depth to evaluate at")

	return cmd
}
