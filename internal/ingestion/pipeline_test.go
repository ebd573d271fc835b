package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/medrag-io/medrag-go/internal/rag"
)

// scriptedEmbedder fails on texts containing a trigger word, otherwise
// returns unit vectors.
type scriptedEmbedder struct {
	failOn string
}

func (s *scriptedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if s.failOn != "" && containsWord(text, s.failOn) {
			return nil, fmt.Errorf("embedding rejected")
		}
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func containsWord(text, word string) bool {
	for chunk := range Chunks(text, 1) {
		if chunk == word {
			return true
		}
	}
	return false
}

// recordingStore captures upsert batches and can be made to fail.
type recordingStore struct {
	batches [][]rag.Document
	failing bool
}

func (r *recordingStore) Upsert(_ context.Context, docs []rag.Document, embeddings [][]float32) error {
	if r.failing {
		return fmt.Errorf("store unavailable")
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("docs/embeddings mismatch")
	}
	r.batches = append(r.batches, docs)
	return nil
}

func (r *recordingStore) Search(context.Context, []float32, int) ([]rag.Document, error) {
	return nil, nil
}
func (r *recordingStore) Delete(context.Context, []string) error { return nil }
func (r *recordingStore) Close() error                           { return nil }

// writeIntake creates an intake dir containing the given text files and
// returns its path.
func writeIntake(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newTestPipeline(t *testing.T, dir string, emb rag.Embedder, store rag.VectorStore) *Pipeline {
	t.Helper()
	p, err := NewPipeline(emb, store, &Config{IntakeDir: dir, ChunkWords: 3})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func Test_Ingest_CommitsAndArchives(t *testing.T) {
	t.Parallel()

	dir := writeIntake(t, map[string]string{
		"sepsis-guideline.txt": "early antibiotics reduce mortality in sepsis patients",
	})
	store := &recordingStore{}
	p := newTestPipeline(t, dir, &scriptedEmbedder{}, store)

	report, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(report.Ingested) != 1 || len(report.Failed) != 0 {
		t.Fatalf("want 1 ingested / 0 failed, got %d / %d", len(report.Ingested), len(report.Failed))
	}
	// 7 words at 3 words/chunk = 3 chunks, committed as one batch.
	if len(store.batches) != 1 {
		t.Fatalf("want one atomic batch, got %d", len(store.batches))
	}
	if got := len(store.batches[0]); got != 3 {
		t.Errorf("want 3 chunks in batch, got %d", got)
	}
	for _, doc := range store.batches[0] {
		if doc.Source != "sepsis-guideline.txt" {
			t.Errorf("chunk source = %q, want source file name", doc.Source)
		}
		if doc.Metadata["category"] != CategoryGuideline {
			t.Errorf("category = %q, want %q", doc.Metadata["category"], CategoryGuideline)
		}
	}

	// Source file moved out of intake into processed.
	if _, err := os.Stat(filepath.Join(dir, "sepsis-guideline.txt")); !os.IsNotExist(err) {
		t.Error("source file still in intake after successful ingest")
	}
	if _, err := os.Stat(filepath.Join(dir, "processed", "sepsis-guideline.txt")); err != nil {
		t.Errorf("source file not archived: %v", err)
	}
}

func Test_Ingest_EmbeddingFailureLeavesDocumentForRetry(t *testing.T) {
	t.Parallel()

	dir := writeIntake(t, map[string]string{
		"bad.txt":  "this document mentions POISONPILL somewhere inside",
		"good.txt": "aspirin thins the blood",
	})
	store := &recordingStore{}
	p := newTestPipeline(t, dir, &scriptedEmbedder{failOn: "POISONPILL"}, store)

	report, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(report.Ingested) != 1 || report.Ingested[0] != "good.txt" {
		t.Errorf("want only good.txt ingested, got %v", report.Ingested)
	}
	if _, ok := report.Failed["bad.txt"]; !ok {
		t.Error("want bad.txt recorded as failed")
	}

	// Atomicity: no rows from the failed document were committed.
	for _, batch := range store.batches {
		for _, doc := range batch {
			if doc.Source == "bad.txt" {
				t.Error("failed document has committed chunks")
			}
		}
	}

	// Failed document stays in intake for the next attempt.
	if _, err := os.Stat(filepath.Join(dir, "bad.txt")); err != nil {
		t.Errorf("failed document missing from intake: %v", err)
	}

	// A retry with a working embedder picks it up.
	retry := newTestPipeline(t, dir, &scriptedEmbedder{}, store)
	report, err = retry.Ingest(context.Background())
	if err != nil {
		t.Fatalf("retry ingest: %v", err)
	}
	if len(report.Ingested) != 1 || report.Ingested[0] != "bad.txt" {
		t.Errorf("retry: want bad.txt ingested, got %v", report.Ingested)
	}
}

func Test_Ingest_StoreFailureIsContained(t *testing.T) {
	t.Parallel()

	dir := writeIntake(t, map[string]string{"doc.txt": "content words here"})
	p := newTestPipeline(t, dir, &scriptedEmbedder{}, &recordingStore{failing: true})

	report, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("want 1 failed document, got %d", len(report.Failed))
	}
	if _, err := os.Stat(filepath.Join(dir, "doc.txt")); err != nil {
		t.Errorf("document should remain in intake after commit failure: %v", err)
	}
}

func Test_Ingest_EmptyDocumentYieldsNoChunks(t *testing.T) {
	t.Parallel()

	dir := writeIntake(t, map[string]string{"empty.txt": "   \n  "})
	store := &recordingStore{}
	p := newTestPipeline(t, dir, &scriptedEmbedder{}, store)

	report, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Chunks != 0 || len(store.batches) != 0 {
		t.Errorf("empty document committed chunks: %d batches", len(store.batches))
	}
	// Still archived so it is not rescanned on every pass.
	if _, err := os.Stat(filepath.Join(dir, "processed", "empty.txt")); err != nil {
		t.Errorf("empty document not archived: %v", err)
	}
}

func Test_Ingest_SkipsUnsupportedFiles(t *testing.T) {
	t.Parallel()

	dir := writeIntake(t, map[string]string{
		"notes.docx": "binary-ish",
		"real.txt":   "actual corpus text",
	})
	store := &recordingStore{}
	p := newTestPipeline(t, dir, &scriptedEmbedder{}, store)

	report, err := p.Ingest(context.Background())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(report.Ingested) != 1 || report.Ingested[0] != "real.txt" {
		t.Errorf("want only real.txt ingested, got %v", report.Ingested)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.docx")); err != nil {
		t.Errorf("unsupported file should be left untouched: %v", err)
	}
}

func Test_ChunkID_Deterministic(t *testing.T) {
	t.Parallel()

	a := chunkID("doc.pdf", 0)
	b := chunkID("doc.pdf", 0)
	c := chunkID("doc.pdf", 1)
	if a != b {
		t.Error("same file/index produced different IDs")
	}
	if a == c {
		t.Error("different indices produced the same ID")
	}
}

func Test_InferCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file string
		want string
	}{
		{"who-sepsis-guideline.pdf", CategoryGuideline},
		{"randomised-trial-2023.pdf", CategoryResearch},
		{"cardiology-handbook.pdf", CategoryReference},
		{"Hypertension-Protocol.txt", CategoryGuideline},
	}
	for _, tt := range tests {
		if got := InferCategory(tt.file); got != tt.want {
			t.Errorf("InferCategory(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
