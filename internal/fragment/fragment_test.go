package fragment

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/cratenav/cratenav/internal/index"
)

func TestDecode_Valid(t *testing.T) {
	t.Parallel()

	src := `{
		"producer": "serde",
		"implementors": {
			"core::fmt::Debug": [
				{"signature": "impl Debug for Value", "synthetic": false, "types": ["serde_json::Value"]}
			]
		},
		"sidebar": {
			"serde::de": [
				{"kind": "trait", "name": "Deserialize", "summary": "Deserializable data structure."}
			]
		}
	}`

	f, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Producer != "serde" {
		t.Errorf("producer = %q, want serde", f.Producer)
	}
	impls := f.Implementors["core::fmt::Debug"]
	if len(impls) != 1 || impls[0].Signature != "impl Debug for Value" {
		t.Errorf("implementors = %v", impls)
	}
	items := f.Sidebar["serde::de"]
	want := []index.SidebarItem{{Kind: index.KindTrait, Name: "Deserialize", Summary: "Deserializable data structure."}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("sidebar = %v, want %v", items, want)
	}
}

func TestDecode_EmptyEntriesAreLegal(t *testing.T) {
	t.Parallel()

	f, err := Decode(strings.NewReader(`{"producer": "emptycrate"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Implementors) != 0 || len(f.Sidebar) != 0 {
		t.Errorf("expected empty entry maps, got %v / %v", f.Implementors, f.Sidebar)
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
	}{
		{"truncated json", `{"producer": "x", "implement`},
		{"missing producer", `{"implementors": {}}`},
		{"non-string producer", `{"producer": 7}`},
		{"unknown field", `{"producer": "x", "implementers": {}}`},
		{"nameless sidebar entry", `{"producer": "x", "sidebar": {"m": [{"kind": "struct"}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(strings.NewReader(tc.src)); err == nil {
				t.Errorf("Decode(%s): expected error", tc.name)
			}
		})
	}
}

func TestReadWriteFile_Zstd(t *testing.T) {
	t.Parallel()

	f := &File{
		Producer: "tokio",
		Implementors: map[string][]index.Implementor{
			"core::future::Future": {
				{Signature: "impl<T> Future for JoinHandle<T>", TypePaths: []string{"tokio::task::JoinHandle"}},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "tokio.json.zst")
	if err := WriteFile(path, f); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, f)
	}
}

func TestReadFile_Missing(t *testing.T) {
	t.Parallel()

	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
