package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"
)

func TestArchiveAssets(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := ArchiveAssets([]Asset{
		{Filename: "narrative.txt", MIME: "text/plain", Data: []byte("story")},
		{Filename: "image.png", MIME: "image/png", Data: nil},
		{Filename: "../narrative.txt", MIME: "text/plain", Data: []byte("again")},
	}, modified)
	if err != nil {
		t.Fatalf("ArchiveAssets returned error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("files = %d, want 2", len(zr.File))
	}
	want := map[string]string{"narrative.txt": "story", "narrative-2.txt": "again"}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, _ := io.ReadAll(rc)
		_ = rc.Close()
		if want[f.Name] != string(body) {
			t.Fatalf("%s = %q", f.Name, body)
		}
		if !f.Modified.Equal(modified) {
			t.Fatalf("%s modified = %v", f.Name, f.Modified)
		}
	}
}

func TestArchiveAssetsNamesNeverCollide(t *testing.T) {
	for _, names := range [][]string{
		{"a.txt", "a.txt", "a-2.txt"},
		{"a-2.txt", "a.txt", "a.txt"},
		{"a.txt", "a.txt", "a.txt", "a-3.txt", "a-2.txt"},
	} {
		assets := make([]Asset, len(names))
		for i, name := range names {
			assets[i] = Asset{Filename: name, MIME: "text/plain", Data: []byte(name)}
		}
		data, err := ArchiveAssets(assets, time.Time{})
		if err != nil {
			t.Fatalf("ArchiveAssets(%v) returned error: %v", names, err)
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			t.Fatalf("open archive: %v", err)
		}
		seen := map[string]bool{}
		for _, f := range zr.File {
			if seen[f.Name] {
				t.Fatalf("duplicate entry %q for inputs %v", f.Name, names)
			}
			seen[f.Name] = true
		}
		if len(seen) != len(names) {
			t.Fatalf("entries = %d, want %d for inputs %v", len(seen), len(names), names)
		}
	}
}
