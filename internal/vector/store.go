package vector

import (
	"context"
	"errors"
	"time"

	"github.com/bloomwatch/chatbot/internal/models"
)

// ErrCollectionNotFound is returned by Store.Load when the collection was never saved.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrEmbedderMismatch is returned when a persisted snapshot was built by a different embedder.
var ErrEmbedderMismatch = errors.New("snapshot built with a different embedder")

// Snapshot is the persisted form of a built index.
type Snapshot struct {
	Collection string
	BuildID    string
	Embedder   string
	Dimensions int
	BuiltAt    time.Time
	Entries    []models.EmbeddedChunk
}

// Store persists snapshots keyed by collection name. Save replaces the collection atomically.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, collection string) (*Snapshot, error)
	Close() error
}
