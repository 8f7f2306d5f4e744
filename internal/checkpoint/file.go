package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/relcrawl/internal/codec"
	"github.com/nao1215/relcrawl/internal/model"
)

// ManifestName is the file that names the current generation.
const ManifestName = "manifest.json"

// manifest records which generation files form the current snapshot.
type manifest struct {
	Generation   uint64    `json:"generation"`
	TakenAt      time.Time `json:"taken_at"`
	PrimaryFile  string    `json:"primary_file"`
	RelatedFile  string    `json:"related_file"`
	PrimaryCount int       `json:"primary_count"`
	RelatedCount int       `json:"related_count"`
}

// FileSnapshotter stores snapshots as zstd-compressed NDJSON files in a
// directory. Each save writes a new generation of partition files and then
// switches manifest.json to it with an atomic rename; older generations are
// removed afterwards.
type FileSnapshotter struct {
	dir string
}

// NewFileSnapshotter returns a FileSnapshotter rooted at dir.
// The directory is created on first save.
func NewFileSnapshotter(dir string) *FileSnapshotter {
	return &FileSnapshotter{dir: dir}
}

// Dir returns the snapshot directory.
func (f *FileSnapshotter) Dir() string {
	return f.dir
}

func partitionFile(p model.Partition, gen uint64) string {
	return fmt.Sprintf("%s_items.%d%s%s", p, gen, codec.ExtJSONL, codec.ExtZstd)
}

// Save implements Snapshotter.
func (f *FileSnapshotter) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	prev, err := f.readManifest()
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return err
	}

	m := manifest{
		Generation:   prev.Generation + 1,
		TakenAt:      snap.TakenAt,
		PrimaryCount: len(snap.Primary),
		RelatedCount: len(snap.Related),
	}
	m.PrimaryFile = partitionFile(model.Primary, m.Generation)
	m.RelatedFile = partitionFile(model.Related, m.Generation)

	if err := f.writeItems(m.PrimaryFile, snap.Primary); err != nil {
		return err
	}
	if err := f.writeItems(m.RelatedFile, snap.Related); err != nil {
		f.remove(m.PrimaryFile)
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := f.writeAtomic(ManifestName, data); err != nil {
		f.remove(m.PrimaryFile)
		f.remove(m.RelatedFile)
		return err
	}

	f.prune(m)
	return nil
}

// Load implements Snapshotter.
func (f *FileSnapshotter) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	m, err := f.readManifest()
	if err != nil {
		return Snapshot{}, err
	}

	primary, err := codec.ReadFile(filepath.Join(f.dir, m.PrimaryFile))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read primary items: %w", err)
	}
	related, err := codec.ReadFile(filepath.Join(f.dir, m.RelatedFile))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read related items: %w", err)
	}

	return Snapshot{
		Primary: primary,
		Related: related,
		TakenAt: m.TakenAt,
	}, nil
}

func (f *FileSnapshotter) readManifest() (manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, ManifestName)) //nolint:gosec // fixed name under configured dir
	if errors.Is(err, os.ErrNotExist) {
		return manifest{}, ErrNoSnapshot
	}
	if err != nil {
		return manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.PrimaryFile == "" || m.RelatedFile == "" {
		return manifest{}, fmt.Errorf("manifest generation %d names no partition files", m.Generation)
	}
	return m, nil
}

func (f *FileSnapshotter) writeItems(name string, items []model.Item) error {
	path := filepath.Join(f.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // generated name
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	if err := codec.Encode(file, items, true); err != nil {
		_ = file.Close() //nolint:errcheck // reporting the encode error
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close() //nolint:errcheck // reporting the sync error
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the same directory and renames
// it over name.
func (f *FileSnapshotter) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // reporting the write error
		_ = os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()        //nolint:errcheck // reporting the sync error
		_ = os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(f.dir, name)); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (f *FileSnapshotter) remove(name string) {
	_ = os.Remove(filepath.Join(f.dir, name)) //nolint:errcheck // best effort
}

// prune deletes partition files that belong to any generation other than cur.
func (f *FileSnapshotter) prune(cur manifest) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == cur.PrimaryFile || name == cur.RelatedFile {
			continue
		}
		if _, ok := generationOf(name); ok {
			f.remove(name)
		}
	}
}

// generationOf parses the generation from a partition file name.
func generationOf(name string) (uint64, bool) {
	const suffix = codec.ExtJSONL + codec.ExtZstd
	if !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	base := strings.TrimSuffix(name, suffix)
	for _, p := range model.Partitions {
		prefix := string(p) + "_items."
		if !strings.HasPrefix(base, prefix) {
			continue
		}
		gen, err := strconv.ParseUint(strings.TrimPrefix(base, prefix), 10, 64)
		if err != nil {
			return 0, false
		}
		return gen, true
	}
	return 0, false
}
