package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/relcrawl/internal/codec"
	"github.com/nao1215/relcrawl/internal/model"
)

// DefaultPrefix is the file name prefix of seed dumps.
const DefaultPrefix = "hashtag_"

// Files returns the seed files in dir, sorted by name. A file qualifies when
// its name starts with prefix and ends with .jsonl or .jsonl.zst.
func Files(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasSuffix(name, codec.ExtJSONL) || strings.HasSuffix(name, codec.ExtJSONL+codec.ExtZstd) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every seed file in dir and unions the records by id; a later
// file wins over an earlier one. Each record gets author_id filled from
// author.uniqueId when it does not carry one. Records without an id are
// dropped.
func Load(dir, prefix string) ([]model.Item, error) {
	files, err := Files(dir, prefix)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int)
	var items []model.Item
	for _, path := range files {
		batch, err := codec.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file %s: %w", filepath.Base(path), err)
		}
		for _, it := range batch {
			id := it.ID()
			if id == "" {
				continue
			}
			if _, ok := it[model.FieldAuthorID]; !ok {
				if author := it.AuthorID(); author != "" {
					it[model.FieldAuthorID] = author
				}
			}
			if i, ok := byID[id]; ok {
				items[i] = it
				continue
			}
			byID[id] = len(items)
			items = append(items, it)
		}
	}
	return items, nil
}
