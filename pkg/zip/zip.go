package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"
)

// Asset is one file placed in an archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs assets into a deflated zip. Empty assets are skipped
// and repeated filenames get a numeric suffix.
func ArchiveAssets(assets []Asset, modified time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	used := make(map[string]int)
	for _, asset := range assets {
		if len(asset.Data) == 0 {
			continue
		}
		name := uniqueName(path.Base(strings.ReplaceAll(asset.Filename, "\\", "/")), used)
		header := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
			Comment:  asset.MIME,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(name string, used map[string]int) string {
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	if used[name] == 0 {
		used[name] = 1
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := used[name] + 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if used[candidate] == 0 {
			used[name] = n
			used[candidate] = 1
			return candidate
		}
	}
}
