package codec

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/nao1215/relcrawl/internal/model"
)

// Extensions recognised by ReadFile.
const (
	ExtJSONL = ".jsonl"
	ExtZstd  = ".zst"
)

// Compressed reports whether path names a zstd file.
func Compressed(path string) bool {
	return strings.HasSuffix(path, ExtZstd)
}

// Encode writes items to w, one JSON object per line.
func Encode(w io.Writer, items []model.Item, compressed bool) error {
	if !compressed {
		return encodeLines(w, items)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := encodeLines(zw, items); err != nil {
		_ = zw.Close() //nolint:errcheck // the encode error is more useful
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

func encodeLines(w io.Writer, items []model.Item) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return fmt.Errorf("failed to encode item %q: %w", it.ID(), err)
		}
	}
	return bw.Flush()
}

// Decode reads every item from r.
func Decode(r io.Reader, compressed bool) ([]model.Item, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	var items []model.Item
	for {
		var it model.Item
		err := dec.Decode(&it)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return items, fmt.Errorf("failed to decode item %d: %w", len(items)+1, err)
		}
		if it != nil {
			items = append(items, it)
		}
	}
}

// ReadFile decodes the file at path, choosing compression by extension.
func ReadFile(path string) ([]model.Item, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from configuration
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, Compressed(path))
}
