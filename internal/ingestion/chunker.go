package ingestion

import (
	"iter"
	"strings"
)

// DefaultChunkWords is the number of whitespace-delimited words per chunk
// when no explicit window size is configured.
const DefaultChunkWords = 500

// Chunks splits text into consecutive windows of up to window
// whitespace-delimited words, preserving original word order with no overlap
// and no gaps. The final window may be shorter; no window is ever empty.
// Text with zero words yields an empty sequence, as does a non-positive
// window. The returned sequence is lazy and can be ranged over repeatedly.
func Chunks(text string, window int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if window <= 0 {
			return
		}
		words := strings.Fields(text)
		for start := 0; start < len(words); start += window {
			end := min(start+window, len(words))
			if !yield(strings.Join(words[start:end], " ")) {
				return
			}
		}
	}
}
