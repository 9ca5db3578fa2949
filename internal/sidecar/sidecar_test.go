package sidecar

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"github.com/keenmouse/mht2pdf/internal/metadata"
)

// ---------------------------------------------------------------------------
// TestMarshal - Layout and key order
// ---------------------------------------------------------------------------

func TestMarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values map[metadata.Field]string
		want   string
	}{
		{
			name:   "empty record",
			values: nil,
			want:   "{}\n",
		},
		{
			name: "record field order and info keys",
			values: map[metadata.Field]string{
				metadata.SourceFile:   "dir/a.mht",
				metadata.Title:        "Title",
				metadata.CreationDate: "2024-01-02T03:04:05Z",
			},
			want: "{\n" +
				"  \"Title\": \"Title\",\n" +
				"  \"CreationDate\": \"2024-01-02T03:04:05Z\",\n" +
				"  \"SourceFile\": \"dir/a.mht\"\n" +
				"}\n",
		},
		{
			name: "no html escaping",
			values: map[metadata.Field]string{
				metadata.SourceURL: "https://example.com/?a=1&b=<2>",
			},
			want: "{\n  \"SourceURL\": \"https://example.com/?a=1&b=<2>\"\n}\n",
		},
		{
			name: "quotes and non-ascii",
			values: map[metadata.Field]string{
				metadata.Title: `Ünïcode "quoted"`,
			},
			want: "{\n  \"Title\": \"Ünïcode \\\"quoted\\\"\"\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Marshal(metadata.NewRecord(tt.values))
			if err != nil {
				t.Fatalf("Marshal() unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteRead - Files on disk
// ---------------------------------------------------------------------------

func TestWriteRead(t *testing.T) {
	t.Parallel()

	rec := metadata.NewRecord(map[metadata.Field]string{
		metadata.Title:      "A Title",
		metadata.Author:     "Jane Doe",
		metadata.Keywords:   "a, b",
		metadata.SourceFile: "x/y.mht",
	})
	path := filepath.Join(t.TempDir(), "nested", "a.metadata.json")

	if err := Write(path, rec); err != nil {
		t.Fatalf("Write() unexpected error: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() unexpected error: %v", err)
	}
	if !maps.Equal(got.Fields(), rec.Fields()) {
		t.Errorf("Read() = %v, want %v", got.Fields(), rec.Fields())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the sidecar", len(entries))
	}
}

func TestUnmarshal_IgnoresUnknownKeys(t *testing.T) {
	t.Parallel()

	rec, err := Unmarshal([]byte(`{"Title": "T", "Extra": "x"}`))
	if err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if want := map[string]string{"title": "T"}; !maps.Equal(rec.Fields(), want) {
		t.Errorf("Unmarshal() = %v, want %v", rec.Fields(), want)
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "[]", `{"Title": 1}`} {
		if _, err := Unmarshal([]byte(input)); !errors.Is(err, ErrInvalidSidecar) {
			t.Errorf("Unmarshal(%q) error = %v, want ErrInvalidSidecar", input, err)
		}
	}
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read() error = %v, want not-exist", err)
	}
}
