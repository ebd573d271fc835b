package ingestion

import (
	"path/filepath"
	"strings"
)

// Document categories stored in the vector payload so retrieval results can
// be filtered or weighted downstream. CLI flags take precedence over inferred
// values — this is the best-effort fallback when the operator doesn't specify
// explicit metadata.
const (
	CategoryGuideline = "guideline"
	CategoryResearch  = "research"
	CategoryReference = "reference"
)

// categoryFragments maps file-name fragments to a document category.
// First match wins; order groups the stronger signals first.
var categoryFragments = []struct {
	fragment string
	category string
}{
	{"guideline", CategoryGuideline},
	{"protocol", CategoryGuideline},
	{"pathway", CategoryGuideline},
	{"consensus", CategoryGuideline},
	{"trial", CategoryResearch},
	{"study", CategoryResearch},
	{"cohort", CategoryResearch},
	{"meta-analysis", CategoryResearch},
	{"review", CategoryResearch},
}

// InferCategory inspects a source document's file name and returns a
// best-effort category label. Unrecognised names default to "reference".
func InferCategory(fileName string) string {
	base := strings.ToLower(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	for _, entry := range categoryFragments {
		if strings.Contains(base, entry.fragment) {
			return entry.category
		}
	}
	return CategoryReference
}
