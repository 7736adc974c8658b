// Package vector provides the in-memory similarity index and its persisted snapshot format.
package vector

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bloomwatch/chatbot/internal/models"
)

// State describes whether an index can serve searches.
type State int

const (
	// StateUninitialized means neither Build nor Restore has run; Search fails.
	StateUninitialized State = iota
	// StateEmpty means the index was built from zero chunks; Search returns no results.
	StateEmpty
	// StateReady means the index holds at least one chunk.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Result is a single search hit.
type Result struct {
	Chunk models.Chunk
	Score float64 // inner product of unit vectors, i.e. cosine similarity
}

type snapshot struct {
	entries []models.EmbeddedChunk
	buildID string
	builtAt time.Time
}

// Index is a brute-force inner-product index over immutable snapshots.
// Build swaps in a complete new snapshot; readers see either the old or the new one.
type Index struct {
	dimensions int
	current    atomic.Pointer[snapshot]
}

// NewIndex creates an uninitialized index for vectors of the given dimension.
func NewIndex(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Index{dimensions: dimensions}, nil
}

// Build replaces the index contents. Entries are copied, insertion order is kept for tie-breaking.
// Building from zero entries leaves the index in StateEmpty.
func (x *Index) Build(entries []models.EmbeddedChunk, buildID string) error {
	return x.swap(entries, buildID, time.Now().UTC())
}

func (x *Index) swap(entries []models.EmbeddedChunk, buildID string, builtAt time.Time) error {
	next := &snapshot{
		entries: make([]models.EmbeddedChunk, len(entries)),
		buildID: buildID,
		builtAt: builtAt,
	}
	for i, e := range entries {
		if len(e.Vector) != x.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", e.Chunk.ID, len(e.Vector), x.dimensions)
		}
		vec := make([]float32, x.dimensions)
		copy(vec, e.Vector)
		next.entries[i] = models.EmbeddedChunk{Chunk: e.Chunk, Vector: vec}
	}
	x.current.Store(next)
	return nil
}

// Restore makes a persisted snapshot current.
func (x *Index) Restore(snap *Snapshot) error {
	if snap.Dimensions != 0 && snap.Dimensions != x.dimensions {
		return fmt.Errorf("dimension mismatch: snapshot has %d, index expects %d", snap.Dimensions, x.dimensions)
	}
	return x.swap(snap.Entries, snap.BuildID, snap.BuiltAt)
}

// Search returns up to k chunks by descending cosine similarity. Equal scores keep insertion order.
// k larger than the index returns every chunk. Fails with models.ErrNotInitialized before the
// first Build or Restore. An empty index returns no results for any query.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	snap := x.current.Load()
	if snap == nil {
		return nil, models.ErrNotInitialized
	}
	if len(snap.entries) == 0 {
		return []Result{}, nil
	}
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Result{}, nil
	}
	scores := make([]Result, len(snap.entries))
	for i, e := range snap.entries {
		scores[i] = Result{Chunk: e.Chunk, Score: Cosine(query, e.Vector)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// State reports the current lifecycle state.
func (x *Index) State() State {
	snap := x.current.Load()
	switch {
	case snap == nil:
		return StateUninitialized
	case len(snap.entries) == 0:
		return StateEmpty
	default:
		return StateReady
	}
}

// Initialized reports whether the index has been built or restored.
func (x *Index) Initialized() bool {
	return x.current.Load() != nil
}

// Size returns the number of chunks in the current snapshot.
func (x *Index) Size() int {
	if snap := x.current.Load(); snap != nil {
		return len(snap.entries)
	}
	return 0
}

// BuildID returns the identifier of the current snapshot, or "" when uninitialized.
func (x *Index) BuildID() string {
	if snap := x.current.Load(); snap != nil {
		return snap.buildID
	}
	return ""
}

// BuiltAt returns when the current snapshot was built.
func (x *Index) BuiltAt() time.Time {
	if snap := x.current.Load(); snap != nil {
		return snap.builtAt
	}
	return time.Time{}
}

// Dimensions returns the vector dimension.
func (x *Index) Dimensions() int {
	return x.dimensions
}
