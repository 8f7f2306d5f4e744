package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nao1215/relcrawl/internal/frontier"
	"github.com/nao1215/relcrawl/internal/model"
	"github.com/nao1215/relcrawl/internal/store"
)

// memSnapshotter keeps the last snapshot in memory.
type memSnapshotter struct {
	snap  *Snapshot
	saves int
	err   error
}

func (m *memSnapshotter) Save(_ context.Context, snap Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.snap = &snap
	return nil
}

func (m *memSnapshotter) Load(_ context.Context) (Snapshot, error) {
	if m.err != nil {
		return Snapshot{}, m.err
	}
	if m.snap == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return *m.snap, nil
}

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID()
	}
	return out
}

func seeded(t *testing.T) *store.ItemStore {
	t.Helper()

	s := store.New()
	if _, err := s.Merge(model.Primary, model.Item{"id": "9"}, model.Item{"id": "3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Merge(model.Related, model.Item{"id": "b"}, model.Item{"id": "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// TestWriterCheckpoint tests snapshotting the live store.
func TestWriterCheckpoint(t *testing.T) {
	t.Parallel()

	t.Run("keeps each partition in discovery order", func(t *testing.T) {
		t.Parallel()

		taken := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		mem := &memSnapshotter{}
		w := NewWriter(mem, WithClock(func() time.Time { return taken }))

		if err := w.Checkpoint(context.Background(), seeded(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ids(mem.snap.Primary); !reflect.DeepEqual(got, []string{"9", "3"}) {
			t.Errorf("unexpected primary order: %v", got)
		}
		if got := ids(mem.snap.Related); !reflect.DeepEqual(got, []string{"b", "a"}) {
			t.Errorf("unexpected related order: %v", got)
		}
		if !mem.snap.TakenAt.Equal(taken) {
			t.Errorf("expected TakenAt %v, got %v", taken, mem.snap.TakenAt)
		}
		if mem.saves != 1 {
			t.Errorf("expected 1 save, got %d", mem.saves)
		}
	})

	t.Run("wraps save failures", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk full")
		w := NewWriter(&memSnapshotter{err: cause})

		err := w.Checkpoint(context.Background(), seeded(t))
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be wrapped, got %v", err)
		}
		var pe *PersistenceError
		if !errors.As(err, &pe) || pe.Op != "save" {
			t.Errorf("expected save PersistenceError, got %v", err)
		}
	})
}

// TestRestore tests loading a snapshot into a fresh store.
func TestRestore(t *testing.T) {
	t.Parallel()

	t.Run("missing snapshot is an empty start", func(t *testing.T) {
		t.Parallel()

		s := store.New()
		snap, err := Restore(context.Background(), &memSnapshotter{}, s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap.Primary) != 0 || s.Len(model.Primary) != 0 {
			t.Error("expected empty restore")
		}
	})

	t.Run("evicts primary ids from related", func(t *testing.T) {
		t.Parallel()

		mem := &memSnapshotter{snap: &Snapshot{
			Primary: []model.Item{{"id": "1"}},
			Related: []model.Item{{"id": "1"}, {"id": "2"}},
		}}
		s := store.New()
		if _, err := Restore(context.Background(), mem, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Contains(model.Related, "1") {
			t.Error("expected disjoint partitions after restore")
		}
		if got := s.IDs(model.Related); !reflect.DeepEqual(got, []string{"2"}) {
			t.Errorf("unexpected related ids: %v", got)
		}
	})

	t.Run("load failure is a persistence error", func(t *testing.T) {
		t.Parallel()

		_, err := Restore(context.Background(), &memSnapshotter{err: errors.New("corrupt")}, store.New())
		if !errors.Is(err, ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
	})
}

// keepAll accepts every item.
type keepAll struct{}

func (keepAll) Keep(model.Item) bool { return true }

// TestRestartKeepsFrontierOrder tests that a resumed frontier pops keys in
// the order the live one would have.
func TestRestartKeepsFrontierOrder(t *testing.T) {
	t.Parallel()

	live := store.New()
	if _, err := live.Merge(model.Related,
		model.Item{"id": "v9", "author_id": "u9"},
		model.Item{"id": "v3", "author_id": "u3"},
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := frontier.New()
	before.Rebuild(live, keepAll{}, nil)

	fs := NewFileSnapshotter(t.TempDir())
	if err := NewWriter(fs).Checkpoint(context.Background(), live); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := store.New()
	if _, err := Restore(context.Background(), fs, restored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := frontier.New()
	after.Rebuild(restored, keepAll{}, nil)

	if !reflect.DeepEqual(after.Keys(), before.Keys()) {
		t.Errorf("expected resumed frontier %v, got %v", before.Keys(), after.Keys())
	}
}

// TestFileSnapshotter tests the manifest based file backend.
func TestFileSnapshotter(t *testing.T) {
	t.Parallel()

	t.Run("load before save reports no snapshot", func(t *testing.T) {
		t.Parallel()

		fs := NewFileSnapshotter(filepath.Join(t.TempDir(), "state"))
		_, err := fs.Load(context.Background())
		if !errors.Is(err, ErrNoSnapshot) {
			t.Errorf("expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		fs := NewFileSnapshotter(t.TempDir())
		taken := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		in := Snapshot{
			Primary: []model.Item{{"id": "7311852627276287264", "desc": "#ai demo"}},
			Related: []model.Item{{"id": "r1"}, {"id": "r2"}},
			TakenAt: taken,
		}
		if err := fs.Save(context.Background(), in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out, err := fs.Load(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ids(out.Primary); !reflect.DeepEqual(got, []string{"7311852627276287264"}) {
			t.Errorf("unexpected primary ids: %v", got)
		}
		if out.Primary[0].String("desc") != "#ai demo" {
			t.Errorf("unexpected desc: %q", out.Primary[0].String("desc"))
		}
		if got := ids(out.Related); !reflect.DeepEqual(got, []string{"r1", "r2"}) {
			t.Errorf("unexpected related ids: %v", got)
		}
		if !out.TakenAt.Equal(taken) {
			t.Errorf("expected TakenAt %v, got %v", taken, out.TakenAt)
		}
	})

	t.Run("later save replaces earlier generation", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		fs := NewFileSnapshotter(dir)
		ctx := context.Background()

		if err := fs.Save(ctx, Snapshot{Primary: []model.Item{{"id": "1"}}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := fs.Save(ctx, Snapshot{Primary: []model.Item{{"id": "1"}, {"id": "2"}}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out, err := fs.Load(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.Primary) != 2 {
			t.Errorf("expected 2 primary items, got %d", len(out.Primary))
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		gens := map[uint64]bool{}
		for _, e := range entries {
			if gen, ok := generationOf(e.Name()); ok {
				gens[gen] = true
			}
		}
		if len(gens) != 1 || !gens[2] {
			t.Errorf("expected only generation 2 on disk, got %v", gens)
		}
	})

	t.Run("missing partition file fails load", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		fs := NewFileSnapshotter(dir)
		if err := fs.Save(context.Background(), Snapshot{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := os.Remove(filepath.Join(dir, partitionFile(model.Related, 1))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := fs.Load(context.Background()); err == nil {
			t.Error("expected error for missing partition file")
		}
	})
}

// TestGenerationOf tests partition file name parsing.
func TestGenerationOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		gen  uint64
		ok   bool
	}{
		{name: "primary", file: "primary_items.3.jsonl.zst", gen: 3, ok: true},
		{name: "related", file: "related_items.12.jsonl.zst", gen: 12, ok: true},
		{name: "manifest", file: "manifest.json", ok: false},
		{name: "bad number", file: "primary_items.x.jsonl.zst", ok: false},
		{name: "plain jsonl", file: "primary_items.1.jsonl", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen, ok := generationOf(tt.file)
			if ok != tt.ok || gen != tt.gen {
				t.Errorf("generationOf(%q) = %d, %v; want %d, %v", tt.file, gen, ok, tt.gen, tt.ok)
			}
		})
	}
}
