package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/mattn/go-sqlite3"

	"github.com/VaninJoel/angiorun/internal/field"
)

// codecZstd is the only chunk codec currently written. Reads accept only
// codecs they know; an unknown codec is a format error, not a fallback.
const codecZstd = "zstd"

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// WriteStep appends one snapshot under the given step key and optionally
// merges attrs into the root attribute map, all in a single transaction.
//
// Returns ErrDuplicateStep if the step key already exists; steps are
// append-only and never rewritten. On any other error nothing becomes
// visible: the transaction rolls back, so prior steps remain valid and
// readers never observe the in-progress step.
func (s *Store) WriteStep(ctx context.Context, step int, frame *field.Frame, attrs map[string]any) error {
	if s.readOnly {
		return fmt.Errorf("write step %d: store is read-only", step)
	}
	if frame == nil {
		return fmt.Errorf("write step %d: nil frame", step)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write step %d: begin tx: %w", step, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO steps (step, nx, ny, nz, channels, chunk_nx, codec)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, step, frame.NX, frame.NY, frame.NZ, field.NumChannels, s.chunkNX, codecZstd)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("write step %d: %w", step, ErrDuplicateStep)
		}
		return fmt.Errorf("write step %d: insert step: %w", step, err)
	}

	for seq, x0 := 0, 0; x0 < frame.NX; seq, x0 = seq+1, x0+s.chunkNX {
		nx := s.chunkNX
		if x0+nx > frame.NX {
			nx = frame.NX - x0
		}
		raw := field.EncodeSlab(frame.Slab(x0, nx))
		blob := zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (step, seq, data) VALUES (?, ?, ?)
		`, step, seq, blob); err != nil {
			return fmt.Errorf("write step %d: insert chunk %d: %w", step, seq, err)
		}
	}

	if err := mergeAttrsTx(ctx, tx, attrs); err != nil {
		return fmt.Errorf("write step %d: %w", step, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write step %d: commit: %w", step, err)
	}

	return nil
}

// MergeAttrs merges the given attributes into the root attribute map,
// overwriting existing keys. Used once at run start for resolved parameters
// and once at run end for terminal metadata.
func (s *Store) MergeAttrs(ctx context.Context, attrs map[string]any) error {
	if s.readOnly {
		return errors.New("merge attrs: store is read-only")
	}
	if len(attrs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge attrs: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := mergeAttrsTx(ctx, tx, attrs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merge attrs: commit: %w", err)
	}

	return nil
}

// mergeAttrsTx upserts JSON-encoded attribute values inside an open
// transaction.
func mergeAttrsTx(ctx context.Context, tx execerContext, attrs map[string]any) error {
	for name, value := range attrs {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("merge attr %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attrs (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value
		`, name, string(encoded)); err != nil {
			return fmt.Errorf("merge attr %q: %w", name, err)
		}
	}
	return nil
}

// execerContext is satisfied by both *sql.Tx and *sql.DB.
type execerContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// isConstraintErr reports whether err is a SQLite constraint violation
// (primary key conflict on the steps table).
func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
