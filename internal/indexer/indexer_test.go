package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bloomwatch/chatbot/internal/embedding"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/bloomwatch/chatbot/internal/vector"
)

const testDims = 64

// blockingEmbedder holds EmbedBatch until release is closed.
type blockingEmbedder struct {
	*embedding.HashEmbedder
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.HashEmbedder.EmbedBatch(ctx, texts)
}

func testIndexer(t *testing.T, root string, emb embedding.Embedder, opts ...IndexerOption) (*Indexer, *vector.Index) {
	t.Helper()
	chunker, err := NewChunker(200, 40)
	if err != nil {
		t.Fatal(err)
	}
	index, err := vector.NewIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	if emb == nil {
		emb = embedding.NewHashEmbedder(testDims)
	}
	return NewIndexer(root, "test_collection", NewLoader(nil, []string{".txt", ".md"}), chunker, emb, index, opts...), index
}

func TestRebuild_emptyCorpus(t *testing.T) {
	idx, index := testIndexer(t, t.TempDir(), nil)
	report, err := idx.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Documents != 0 || report.Chunks != 0 || report.BuildID == "" {
		t.Errorf("unexpected report: %+v", report)
	}
	if index.State() != vector.StateEmpty {
		t.Errorf("state = %v, want empty", index.State())
	}
	results, err := index.Search(context.Background(), make([]float32, testDims), 4)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", results)
	}
}

func TestRebuild_indexesCorpus(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ndvi.txt"), strings.Repeat("NDVI measures vegetation health from satellite imagery. ", 12))
	writeFile(t, filepath.Join(root, "rice.md"), "Rice needs standing water during tillering.")

	idx, index := testIndexer(t, root, nil, WithBatchSize(2), WithEmbedWorkers(3))
	report, err := idx.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if report.Documents != 2 {
		t.Errorf("documents = %d, want 2", report.Documents)
	}
	if report.Chunks < 3 || index.Size() != report.Chunks {
		t.Errorf("chunks = %d, index size = %d", report.Chunks, index.Size())
	}
	if index.BuildID() != report.BuildID {
		t.Errorf("index build %q, report build %q", index.BuildID(), report.BuildID)
	}

	q, err := embedding.NewHashEmbedder(testDims).Embed(context.Background(), "rice standing water")
	if err != nil {
		t.Fatal(err)
	}
	results, err := index.Search(context.Background(), q, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Origin != "rice.md" {
		t.Errorf("expected rice.md first, got %+v", results)
	}
}

func TestRebuild_persistsAndLoads(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "soil.txt"), "Loamy soil holds moisture well.")
	store := vector.NewFileStore(filepath.Join(t.TempDir(), "db"))

	idx, _ := testIndexer(t, root, nil, WithStore(store))
	report, err := idx.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	fresh, index := testIndexer(t, root, nil, WithStore(store))
	ok, err := fresh.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if index.BuildID() != report.BuildID || index.Size() != report.Chunks {
		t.Errorf("restored build %q size %d, want %q size %d", index.BuildID(), index.Size(), report.BuildID, report.Chunks)
	}
}

// renamedEmbedder produces hash vectors under another model name, like swapping models of equal width.
type renamedEmbedder struct {
	*embedding.HashEmbedder
	name string
}

func (r renamedEmbedder) Name() string { return r.name }

func TestLoad_rejectsOtherEmbedder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "soil.txt"), "Loamy soil holds moisture well.")
	store := vector.NewFileStore(filepath.Join(t.TempDir(), "db"))

	idx, _ := testIndexer(t, root, nil, WithStore(store))
	if _, err := idx.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap, err := store.Load(context.Background(), "test_collection")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Embedder != "hash/64" {
		t.Errorf("snapshot embedder = %q, want hash/64", snap.Embedder)
	}

	other := renamedEmbedder{HashEmbedder: embedding.NewHashEmbedder(testDims), name: "onnx:model.onnx"}
	fresh, index := testIndexer(t, root, other, WithStore(store))
	ok, err := fresh.Load(context.Background())
	if ok || !errors.Is(err, vector.ErrEmbedderMismatch) {
		t.Fatalf("Load = %v, %v; want false, ErrEmbedderMismatch", ok, err)
	}
	if index.Initialized() {
		t.Error("mismatched snapshot must not be restored")
	}

	report, err := fresh.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := fresh.Load(context.Background()); !ok || err != nil {
		t.Errorf("Load after rebuild = %v, %v", ok, err)
	}
	if index.BuildID() != report.BuildID {
		t.Errorf("build %q, want %q", index.BuildID(), report.BuildID)
	}
}

func TestLoad_nothingPersisted(t *testing.T) {
	store := vector.NewFileStore(t.TempDir())
	idx, index := testIndexer(t, t.TempDir(), nil, WithStore(store))
	ok, err := idx.Load(context.Background())
	if err != nil || ok {
		t.Fatalf("Load = %v, %v; want false, nil", ok, err)
	}
	if index.Initialized() {
		t.Error("index should stay uninitialized")
	}

	noStore, _ := testIndexer(t, t.TempDir(), nil)
	if ok, err := noStore.Load(context.Background()); ok || err != nil {
		t.Errorf("Load without store = %v, %v", ok, err)
	}
}

func TestRebuild_missingRoot(t *testing.T) {
	idx, index := testIndexer(t, filepath.Join(t.TempDir(), "missing"), nil)
	if _, err := idx.Rebuild(context.Background()); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if index.Initialized() {
		t.Error("failed rebuild should not initialize the index")
	}
}

func TestRebuild_concurrentRejected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "Maize tolerates heat.")
	emb := &blockingEmbedder{
		HashEmbedder: embedding.NewHashEmbedder(testDims),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	idx, _ := testIndexer(t, root, emb)

	done := make(chan error, 1)
	go func() {
		_, err := idx.Rebuild(context.Background())
		done <- err
	}()
	<-emb.entered
	if !idx.Rebuilding() {
		t.Error("Rebuilding should report true")
	}
	if _, err := idx.Rebuild(context.Background()); !errors.Is(err, models.ErrRebuildInProgress) {
		t.Errorf("second rebuild err = %v, want ErrRebuildInProgress", err)
	}
	close(emb.release)
	if err := <-done; err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	if idx.Rebuilding() {
		t.Error("Rebuilding should be false after completion")
	}
}

func TestRebuild_failureKeepsPreviousBuild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "Drip irrigation saves water.")
	idx, index := testIndexer(t, root, nil)
	first, err := idx.Rebuild(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Rebuild(context.Background()); err == nil {
		t.Fatal("expected error after removing corpus root")
	}
	if index.BuildID() != first.BuildID {
		t.Errorf("build id changed to %q after failed rebuild", index.BuildID())
	}
}
