package codec

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/relcrawl/internal/model"
)

// TestEncodeDecode tests both plain and compressed streams.
func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	items := []model.Item{
		{"id": json.Number("7311852627276287264"), "desc": "georgescu <b>"},
		{"id": "v2", "author": map[string]any{"uniqueId": "u2"}},
	}

	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := Encode(&buf, items, compressed); err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if !compressed && !strings.Contains(buf.String(), "<b>") {
				t.Error("expected HTML not to be escaped")
			}

			got, err := Decode(&buf, compressed)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 items, got %d", len(got))
			}
			if got[0].ID() != "7311852627276287264" {
				t.Errorf("large numeric id not preserved: %q", got[0].ID())
			}
			if got[1].AuthorID() != "u2" {
				t.Errorf("nested author not preserved: %q", got[1].AuthorID())
			}
		})
	}
}

// TestDecodeMalformed tests that items before a bad line are returned.
func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	got, err := Decode(strings.NewReader("{\"id\":\"a\"}\n{broken\n"), false)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if len(got) != 1 || got[0].ID() != "a" {
		t.Errorf("expected the first item to be kept, got %v", got)
	}
}

// TestReadFile tests extension-based compression detection.
func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "hashtag_romania.jsonl.zst")

	var buf bytes.Buffer
	if err := Encode(&buf, []model.Item{{"id": "a"}}, true); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 item, got %d", len(got))
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.jsonl")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
