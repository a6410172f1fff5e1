package memory

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is the portable form of a teaching store.
type Snapshot struct {
	Records []Record          `msgpack:"records"`
	Fixes   map[string]string `msgpack:"fixes"`
}

// Export writes every record and fix in s to w as zstd-compressed msgpack.
func Export(ctx context.Context, s Store, w io.Writer) (Snapshot, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list records: %w", err)
	}
	fixes, err := s.Fixes(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list fixes: %w", err)
	}
	snap := Snapshot{Records: records, Fixes: fixes}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(snap); err != nil {
		_ = zw.Close()
		return Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Snapshot{}, fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return snap, nil
}

// ReadSnapshot decodes a snapshot written by Export.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var snap Snapshot
	if err := msgpack.NewDecoder(zr).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Import reads a snapshot from r and upserts its contents into s. Existing
// entries with other keys are left alone.
func Import(ctx context.Context, s Store, r io.Reader) (Snapshot, error) {
	snap, err := ReadSnapshot(r)
	if err != nil {
		return Snapshot{}, err
	}
	for _, rec := range snap.Records {
		if err := s.Upsert(ctx, rec); err != nil {
			return Snapshot{}, err
		}
	}
	for bad, good := range snap.Fixes {
		if err := s.SaveFix(ctx, bad, good); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}
