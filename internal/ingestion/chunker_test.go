package ingestion

import (
	"slices"
	"strings"
	"testing"
)

func collect(text string, window int) []string {
	var out []string
	for c := range Chunks(text, window) {
		out = append(out, c)
	}
	return out
}

func Test_Chunks_ExactCoverage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		words  int
		window int
		want   []int // expected chunk lengths in words
	}{
		{name: "even split", words: 10, window: 5, want: []int{5, 5}},
		{name: "short tail", words: 11, window: 5, want: []int{5, 5, 1}},
		{name: "window larger than text", words: 3, window: 500, want: []int{3}},
		{name: "window of one", words: 4, window: 1, want: []int{1, 1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			words := make([]string, tt.words)
			for i := range words {
				words[i] = "w" + string(rune('a'+i%26))
			}
			text := strings.Join(words, " ")

			chunks := collect(text, tt.window)
			if len(chunks) != len(tt.want) {
				t.Fatalf("want %d chunks, got %d", len(tt.want), len(chunks))
			}
			var rebuilt []string
			for i, c := range chunks {
				got := strings.Fields(c)
				if len(got) != tt.want[i] {
					t.Errorf("chunk %d: want %d words, got %d", i, tt.want[i], len(got))
				}
				rebuilt = append(rebuilt, got...)
			}
			// Concatenating chunks in order must reconstruct the original words.
			if !slices.Equal(rebuilt, words) {
				t.Errorf("chunks do not reconstruct the original word sequence")
			}
		})
	}
}

func Test_Chunks_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	if got := collect("", 5); got != nil {
		t.Errorf("empty text: want no chunks, got %v", got)
	}
	if got := collect("   \n\t  ", 5); got != nil {
		t.Errorf("whitespace-only text: want no chunks, got %v", got)
	}
	if got := collect("some words here", 0); got != nil {
		t.Errorf("zero window: want no chunks, got %v", got)
	}
	for _, c := range collect("a b c", 2) {
		if c == "" {
			t.Error("produced an empty chunk")
		}
	}
}

func Test_Chunks_Restartable(t *testing.T) {
	t.Parallel()

	seq := Chunks("one two three four", 2)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Errorf("re-ranging the sequence gave different results: %v vs %v", first, second)
	}
}

func Test_Chunks_NormalisesWhitespace(t *testing.T) {
	t.Parallel()

	got := collect("fever\nand   cough\t symptoms", 10)
	if len(got) != 1 || got[0] != "fever and cough symptoms" {
		t.Errorf("want single normalised chunk, got %v", got)
	}
}
