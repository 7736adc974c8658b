package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/bloomwatch/chatbot/internal/models"
)

var fileMagic = [4]byte{'B', 'W', 'V', '2'}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileStore keeps one binary snapshot file per collection under a directory.
// Format (little endian): magic "BWV2", dimension u32, count u32, build id, embedder,
// built-at unix nanos i64,
// then per entry: id, origin, format, text (u32 length + bytes each), sequence index,
// char start, char end (u32 each), vector (dimension*4 bytes).
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(collection string) (string, error) {
	if !collectionName.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return filepath.Join(s.dir, collection+".bwv"), nil
}

// Save writes snap to a temporary file and renames it over the collection file.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	path, err := s.path(snap.Collection)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, snap.Collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := writeSnapshot(ctx, w, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

// Load reads the collection file. Returns ErrCollectionNotFound when it does not exist.
func (s *FileStore) Load(ctx context.Context, collection string) (*Snapshot, error) {
	path, err := s.path(collection)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	snap, err := readSnapshot(ctx, bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	snap.Collection = collection
	return snap, nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}

func writeSnapshot(ctx context.Context, w io.Writer, snap *Snapshot) error {
	if _, err := w.Write(fileMagic[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	header := []any{uint32(snap.Dimensions), uint32(len(snap.Entries))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, str := range []string{snap.BuildID, snap.Embedder} {
		if err := writeString(w, str); err != nil {
			return err
		}
	}
	var builtAt int64
	if !snap.BuiltAt.IsZero() {
		builtAt = snap.BuiltAt.UnixNano()
	}
	if err := binary.Write(w, binary.LittleEndian, builtAt); err != nil {
		return fmt.Errorf("write built at: %w", err)
	}
	for i, e := range snap.Entries {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(e.Vector) != snap.Dimensions {
			return fmt.Errorf("entry %s has dimension %d, expected %d", e.Chunk.ID, len(e.Vector), snap.Dimensions)
		}
		for _, str := range []string{e.Chunk.ID, e.Chunk.Origin, string(e.Chunk.Format), e.Chunk.Text} {
			if err := writeString(w, str); err != nil {
				return err
			}
		}
		for _, n := range []int{e.Chunk.SequenceIndex, e.Chunk.CharStart, e.Chunk.CharEnd} {
			if err := binary.Write(w, binary.LittleEndian, uint32(n)); err != nil {
				return fmt.Errorf("write offsets: %w", err)
			}
		}
		if _, err := w.Write(float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

func readSnapshot(ctx context.Context, r io.Reader) (*Snapshot, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("not a snapshot file")
	}
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	buildID, err := readString(r)
	if err != nil {
		return nil, err
	}
	embedder, err := readString(r)
	if err != nil {
		return nil, err
	}
	var builtAt int64
	if err := binary.Read(r, binary.LittleEndian, &builtAt); err != nil {
		return nil, fmt.Errorf("read built at: %w", err)
	}
	snap := &Snapshot{
		BuildID:    buildID,
		Embedder:   embedder,
		Dimensions: int(dim),
		Entries:    make([]models.EmbeddedChunk, 0, n),
	}
	if builtAt != 0 {
		snap.BuiltAt = time.Unix(0, builtAt).UTC()
	}
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var strs [4]string
		for j := range strs {
			if strs[j], err = readString(r); err != nil {
				return nil, err
			}
		}
		var offsets [3]uint32
		if err := binary.Read(r, binary.LittleEndian, &offsets); err != nil {
			return nil, fmt.Errorf("read offsets: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		snap.Entries = append(snap.Entries, models.EmbeddedChunk{
			Chunk: models.Chunk{
				ID:            strs[0],
				Origin:        strs[1],
				Format:        models.DocumentFormat(strs[2]),
				Text:          strs[3],
				SequenceIndex: int(offsets[0]),
				CharStart:     int(offsets[1]),
				CharEnd:       int(offsets[2]),
			},
			Vector: bytesToFloat32Slice(buf),
		})
	}
	return snap, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("write string length: %w", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// EncodeVector returns the little-endian byte form of v, shared with the SQLite store.
func EncodeVector(v []float32) []byte { return float32SliceToBytes(v) }

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	return bytesToFloat32Slice(b), nil
}
