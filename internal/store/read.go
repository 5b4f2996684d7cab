package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/VaninJoel/angiorun/internal/field"
)

// ListSteps returns the sorted step keys currently visible in the store.
//
// The enumeration is lazy and idempotent: it reflects whatever has been
// committed at call time and is safe to call repeatedly while a writer is
// still appending. Successive calls never lose a previously returned key.
func (s *Store) ListSteps(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT step FROM steps ORDER BY step ASC`)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []int
	for rows.Next() {
		var step int
		if err := rows.Scan(&step); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	// Return empty slice instead of nil
	if steps == nil {
		steps = []int{}
	}

	return steps, nil
}

// LatestStep returns the highest committed step key, or 0 if no step has
// been written yet.
func (s *Store) LatestStep(ctx context.Context) (int, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(step) FROM steps`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest step: %w", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	return int(latest.Int64), nil
}

// ReadStep reassembles the frame stored under a step key.
// Returns ErrStepNotFound if the key has not been committed.
func (s *Store) ReadStep(ctx context.Context, step int) (*field.Frame, error) {
	var nx, ny, nz, channels, chunkNX int
	var codec string
	err := s.db.QueryRowContext(ctx, `
		SELECT nx, ny, nz, channels, chunk_nx, codec
		FROM steps
		WHERE step = ?
	`, step).Scan(&nx, &ny, &nz, &channels, &chunkNX, &codec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read step %d: %w", step, ErrStepNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read step %d: %w", step, err)
	}
	if channels != field.NumChannels {
		return nil, fmt.Errorf("read step %d: stored channel count %d, expected %d", step, channels, field.NumChannels)
	}
	if codec != codecZstd {
		return nil, fmt.Errorf("read step %d: unknown chunk codec %q", step, codec)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, data FROM chunks WHERE step = ? ORDER BY seq ASC
	`, step)
	if err != nil {
		return nil, fmt.Errorf("read step %d: query chunks: %w", step, err)
	}
	defer rows.Close()

	frame := field.New(nx, ny, nz)
	next := 0
	for rows.Next() {
		var seq int
		var blob []byte
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, fmt.Errorf("read step %d: scan chunk: %w", step, err)
		}
		if seq != next {
			return nil, fmt.Errorf("read step %d: missing chunk %d", step, next)
		}

		x0 := seq * chunkNX
		n := chunkNX
		if x0+n > nx {
			n = nx - x0
		}
		raw, err := zstdDecoder.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("read step %d: decompress chunk %d: %w", step, seq, err)
		}
		if err := field.DecodeSlab(raw, frame.Slab(x0, n)); err != nil {
			return nil, fmt.Errorf("read step %d: chunk %d: %w", step, seq, err)
		}
		next++
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read step %d: iterate chunks: %w", step, err)
	}

	want := (nx + chunkNX - 1) / chunkNX
	if next != want {
		return nil, fmt.Errorf("read step %d: have %d chunks, expected %d", step, next, want)
	}

	return frame, nil
}

// Attrs returns the root attribute map with values decoded from JSON.
// Returns an empty map (not nil) if no attributes have been written.
func (s *Store) Attrs(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM attrs ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("read attrs: %w", err)
	}
	defer rows.Close()

	attrs := make(map[string]any)
	for rows.Next() {
		var name, encoded string
		if err := rows.Scan(&name, &encoded); err != nil {
			return nil, fmt.Errorf("scan attr: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, fmt.Errorf("decode attr %q: %w", name, err)
		}
		attrs[name] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attrs: %w", err)
	}

	return attrs, nil
}
