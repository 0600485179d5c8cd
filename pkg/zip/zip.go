package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// WriteArchive streams assets into a zip archive on w. Images are already
// compressed, so entries are stored rather than deflated.
func WriteArchive(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	now := time.Now()
	for _, asset := range assets {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	return zw.Close()
}
