package yamlutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/keenmouse/mht2pdf/internal/yamlutil"
)

type section struct {
	Root    string `yaml:"root"`
	Enabled bool   `yaml:"enabled"`
}

type document struct {
	Output section `yaml:"output"`
}

// ---------------------------------------------------------------------------
// TestUnmarshalStrict - Strict decoding
// ---------------------------------------------------------------------------

func TestUnmarshalStrict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		dest    any
		wantErr error
	}{
		{"valid", []byte("output:\n  root: out\n  enabled: true\n"), &document{}, nil},
		{"nil data", nil, &document{}, yamlutil.ErrNilData},
		{"empty data", []byte{}, &document{}, yamlutil.ErrNilData},
		{"nil destination", []byte("output: {}"), nil, yamlutil.ErrNilDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := yamlutil.UnmarshalStrict(tt.data, tt.dest)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			doc := tt.dest.(*document)
			if doc.Output.Root != "out" || !doc.Output.Enabled {
				t.Errorf("decoded = %+v", doc.Output)
			}
		})
	}
}

func TestUnmarshalStrict_RejectsUnknownAndBrokenInput(t *testing.T) {
	t.Parallel()

	for name, input := range map[string]string{
		"unknown field": "output:\n  root: out\n  colour: red\n",
		"syntax error":  "output: [unclosed",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := yamlutil.UnmarshalStrict([]byte(input), &document{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.HasPrefix(err.Error(), "yamlutil:") {
				t.Errorf("error = %q, want prefix 'yamlutil:'", err)
			}
		})
	}
}

// Note: modifies the global MaxInputSize, so it does not run in parallel.
func TestUnmarshalStrict_InputSizeLimit(t *testing.T) {
	originalMax := yamlutil.MaxInputSize
	t.Cleanup(func() { yamlutil.MaxInputSize = originalMax })

	yamlutil.MaxInputSize = 50
	err := yamlutil.UnmarshalStrict(make([]byte, 100), &document{})
	if !errors.Is(err, yamlutil.ErrInputTooLarge) {
		t.Fatalf("error = %v, want ErrInputTooLarge", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "100 bytes") || !strings.Contains(msg, "max 50") {
		t.Errorf("error %q should name both sizes", msg)
	}
}

// ---------------------------------------------------------------------------
// TestMarshal - Encoding
// ---------------------------------------------------------------------------

func TestMarshal(t *testing.T) {
	t.Parallel()

	data, err := yamlutil.Marshal(map[string]map[string]string{
		"info": {"Title": "日本語 title"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "info:\n  Title: 日本語 title\n"
	if string(data) != want {
		t.Errorf("Marshal() = %q, want %q", data, want)
	}

	var back map[string]map[string]string
	if err := yamlutil.UnmarshalStrict(data, &back); err != nil {
		t.Fatalf("UnmarshalStrict() of marshaled output: %v", err)
	}
	if back["info"]["Title"] != "日本語 title" {
		t.Errorf("decoded = %v", back)
	}
}
