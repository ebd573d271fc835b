package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/medrag-io/medrag-go/internal/agent"
	"github.com/medrag-io/medrag-go/internal/embedder"
	"github.com/medrag-io/medrag-go/internal/logging"
	"github.com/medrag-io/medrag-go/internal/provider"
	"github.com/medrag-io/medrag-go/internal/rag"
	"github.com/medrag-io/medrag-go/internal/server"
	"github.com/medrag-io/medrag-go/internal/telemetry"
	"github.com/medrag-io/medrag-go/internal/tracing"
)

// NewServeCmd constructs the `medrag serve` command, which starts the HTTP
// server exposing the agent's JSON API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MedRAG HTTP server",
		Long: `Start the MedRAG HTTP server on localhost.

The server exposes POST /api/ask for grounded question answering, liveness
and readiness probes, and Prometheus metrics on /metrics.

Examples:
  medrag serve
  medrag serve --port 9090
  MODEL_PROVIDER=openai medrag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup(log)
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			vectorStore, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vectorStore.Close()

			sink, err := buildSink(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			history, closeHistory := openHistory(log)
			defer closeHistory()

			medAgent, err := agent.New(&agent.Config{
				ChatModel:   chatModel,
				Embedder:    emb,
				VectorStore: vectorStore,
				Sink:        sink,
				History:     history,
				ModelName:   providerCfg.ModelName(),
				Temperature: float64(providerCfg.Tuning.Temperature),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise agent: %w", err)
			}

			pingers := buildPingers(vectorStore, providerCfg, sink)

			srv, err := server.New(medAgent, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("MEDRAG_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers assembles the readiness probes for the dependencies the
// server actually uses: Qdrant always, the Ollama server when it is the
// model backend, and MLflow when telemetry is enabled.
func buildPingers(vectorStore *rag.QdrantStore, providerCfg *provider.Config, sink telemetry.Sink) []server.Pinger {
	pingers := []server.Pinger{
		server.NewQdrantPinger(vectorStore.Client()),
	}

	if providerCfg.Backend == provider.BackendOllama {
		pingers = append(pingers,
			server.NewHTTPPinger("ollama", providerCfg.Ollama.Host))
	}

	if mlflow, ok := sink.(*telemetry.MLflowSink); ok {
		pingers = append(pingers, mlflow)
	}

	return pingers
}
