package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/VaninJoel/angiorun/internal/field"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testFrame builds a frame with distinct values at every site so round
// trips catch any layout mix-up.
func testFrame(nx, ny int) *field.Frame {
	f := field.New(nx, ny, 1)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			f.Set(x, y, 0, field.ChannelType, float64(x%3))
			f.Set(x, y, 0, field.ChannelCellID, float64(x*ny+y))
			f.Set(x, y, 0, field.ChannelValue, float64(x)/float64(nx))
		}
	}
	return f
}

func TestWriteStep_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := testFrame(10, 7)
	if err := s.WriteStep(ctx, 5, want, nil); err != nil {
		t.Fatalf("WriteStep() failed: %v", err)
	}

	got, err := s.ReadStep(ctx, 5)
	if err != nil {
		t.Fatalf("ReadStep() failed: %v", err)
	}
	if got.NX != want.NX || got.NY != want.NY || got.NZ != want.NZ {
		t.Fatalf("shape = %dx%dx%d, want %dx%dx%d", got.NX, got.NY, got.NZ, want.NX, want.NY, want.NZ)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("Data[%d] = %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
}

func TestWriteStep_MultipleChunks(t *testing.T) {
	s := openTestStore(t)
	s.SetChunkNX(4)
	ctx := context.Background()

	// 10 x planes with chunk size 4 means 3 chunks, the last partial.
	want := testFrame(10, 3)
	if err := s.WriteStep(ctx, 1, want, nil); err != nil {
		t.Fatalf("WriteStep() failed: %v", err)
	}

	var chunks int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks WHERE step = 1").Scan(&chunks); err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	if chunks != 3 {
		t.Errorf("chunk count = %d, want 3", chunks)
	}

	got, err := s.ReadStep(ctx, 1)
	if err != nil {
		t.Fatalf("ReadStep() failed: %v", err)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("Data[%d] = %v, want %v", i, got.Data[i], want.Data[i])
		}
	}
}

func TestWriteStep_DuplicateStep(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	frame := testFrame(4, 4)
	if err := s.WriteStep(ctx, 1, frame, nil); err != nil {
		t.Fatalf("first WriteStep() failed: %v", err)
	}

	err := s.WriteStep(ctx, 1, frame, nil)
	if !errors.Is(err, ErrDuplicateStep) {
		t.Errorf("second WriteStep() = %v, want ErrDuplicateStep", err)
	}

	// The original frame must survive the rejected rewrite.
	if _, err := s.ReadStep(ctx, 1); err != nil {
		t.Errorf("ReadStep() after duplicate rejection failed: %v", err)
	}
}

func TestWriteStep_MergesAttrsAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	frame := testFrame(4, 4)
	if err := s.WriteStep(ctx, 1, frame, map[string]any{"step_note": "first"}); err != nil {
		t.Fatalf("WriteStep() failed: %v", err)
	}

	attrs, err := s.Attrs(ctx)
	if err != nil {
		t.Fatalf("Attrs() failed: %v", err)
	}
	if attrs["step_note"] != "first" {
		t.Errorf("step_note = %v, want %q", attrs["step_note"], "first")
	}
}

func TestMergeAttrs_Overwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.MergeAttrs(ctx, map[string]any{"lchem": 0.5, "label": "a"}); err != nil {
		t.Fatalf("MergeAttrs() failed: %v", err)
	}
	if err := s.MergeAttrs(ctx, map[string]any{"lchem": 1.5}); err != nil {
		t.Fatalf("second MergeAttrs() failed: %v", err)
	}

	attrs, err := s.Attrs(ctx)
	if err != nil {
		t.Fatalf("Attrs() failed: %v", err)
	}
	if attrs["lchem"] != 1.5 {
		t.Errorf("lchem = %v, want 1.5", attrs["lchem"])
	}
	if attrs["label"] != "a" {
		t.Errorf("label = %v, want %q (merge must not drop other keys)", attrs["label"], "a")
	}
}

func TestWriteStep_ReadOnlyStoreRefuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := w.WriteStep(context.Background(), 1, testFrame(4, 4), nil); err != nil {
		t.Fatalf("WriteStep() failed: %v", err)
	}
	w.Close()

	r, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly() failed: %v", err)
	}
	defer r.Close()

	if err := r.WriteStep(context.Background(), 2, testFrame(4, 4), nil); err == nil {
		t.Error("expected write to read-only store to fail")
	}
	if err := r.MergeAttrs(context.Background(), map[string]any{"x": 1}); err == nil {
		t.Error("expected attr merge on read-only store to fail")
	}
}
