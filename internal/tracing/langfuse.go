// Package tracing wires the optional Langfuse trace exporter into the Eino
// callback chain. Tracing is enabled only when Langfuse credentials are
// present in the environment; without them the assistant runs untraced.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Setup initialises the Langfuse callback handler from LANGFUSE_PUBLIC_KEY,
// LANGFUSE_SECRET_KEY and LANGFUSE_HOST. It returns the handler, a flush
// function that must be called before process exit so buffered traces are
// sent, and whether tracing is enabled. When credentials are missing the
// handler and flusher are nil and tracing is silently disabled.
func Setup(log *slog.Logger) (callbacks.Handler, func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		log.Debug("tracing: Langfuse credentials not set, tracing disabled")
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
	})

	log.Info("tracing: Langfuse enabled", slog.String("host", host))
	return handler, flusher, true
}
