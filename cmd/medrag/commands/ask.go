package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/medrag-io/medrag-go/internal/agent"
	"github.com/medrag-io/medrag-go/internal/embedder"
	"github.com/medrag-io/medrag-go/internal/logging"
	"github.com/medrag-io/medrag-go/internal/provider"
)

// NewAskCmd constructs the `medrag ask` command, which sends a single natural
// language question through the full agent loop and prints the answer.
func NewAskCmd() *cobra.Command {
	var topK int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the medical document assistant a question",
		Long: `Ask MedRAG a natural language question about the ingested document corpus.

The agent searches the vector store for relevant passages and produces an
answer grounded in the retrieved documents, citing their source file names.

Examples:
  medrag ask "what is the first-line treatment for type 2 diabetes?"
  medrag ask --top-k 5 "contraindications for ibuprofen in renal impairment"
  MODEL_PROVIDER=openai medrag ask "summarise the sepsis management bundle"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			store, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			sink, err := buildSink(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			history, closeHistory := openHistory(log)
			defer closeHistory()

			medAgent, err := agent.New(&agent.Config{
				ChatModel:   chatModel,
				Embedder:    emb,
				VectorStore: store,
				Sink:        sink,
				History:     history,
				ModelName:   providerCfg.ModelName(),
				Temperature: float64(providerCfg.Tuning.Temperature),
				TopK:        topK,
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			run := medAgent.Answer(ctx, args[0])

			fmt.Fprintln(cmd.OutOrStdout(), run.Answer)
			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(),
					"\n--\nretrievals: %d  tokens: %d in / %d out  cost: $%.6f  latency: %s\n",
					run.RetrievalCount, run.InputTokens, run.OutputTokens,
					run.CostUSD, run.Latency.Round(time.Millisecond))
			}
			if run.Err != nil {
				return fmt.Errorf("ask: %w", run.Err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks per retrieval (default from agent)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print run statistics after the answer")

	return cmd
}
