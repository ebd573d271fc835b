package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/medrag-io/medrag-go/internal/rag"
)

// NoResultsMessage is returned verbatim to the model when a search matches
// nothing, so the agent can reason about an empty corpus instead of failing.
const NoResultsMessage = "no relevant documents found"

// SearchTool is an Eino tool that retrieves document chunks semantically
// related to a query and returns them as a formatted observation.
type SearchTool struct {
	// retriever performs the embed-and-search round trip.
	retriever rag.Retriever

	// topK is the fixed number of chunks requested per call.
	topK int
}

// searchInput is the JSON-serialisable input schema for SearchTool.
type searchInput struct {
	// Query is the natural-language search query.
	Query string `json:"query"`
}

// NewSearchTool constructs a SearchTool over the given retriever. topK values
// below 1 fall back to 10.
func NewSearchTool(retriever rag.Retriever, topK int) *SearchTool {
	if topK < 1 {
		topK = 10
	}
	return &SearchTool{retriever: retriever, topK: topK}
}

// Name returns the tool name registered with the agent.
func (t *SearchTool) Name() string { return "search_documents" }

// Description returns the LLM-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Searches the medical document corpus for passages relevant to a query. " +
		"Use this to ground answers in clinical guidelines, research papers and reference material " +
		"before responding."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Natural-language query describing the information needed.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes a retrieval given a JSON-encoded input string and
// returns the matched chunks as a single observation string.
func (t *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_documents: invalid input: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("search_documents: query is required")
	}

	docs, err := t.retriever.Retrieve(ctx, input.Query, t.topK)
	if err != nil {
		return "", fmt.Errorf("search_documents: retrieval failed: %w", err)
	}
	if len(docs) == 0 {
		return NoResultsMessage, nil
	}

	return renderObservation(docs), nil
}

// renderObservation formats retrieved chunks in their ranked order, nearest
// first, with enough provenance for the model to cite sources.
func renderObservation(docs []rag.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] source=%s distance=%s", i+1, doc.Source, rag.FormatDistance(doc.Distance))
		if idx, ok := doc.Metadata["chunk_index"]; ok {
			fmt.Fprintf(&b, " chunk=%s", idx)
		}
		b.WriteString("\n")
		b.WriteString(doc.Content)
	}
	return b.String()
}
