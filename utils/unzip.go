// utils/unzip.go
package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// ArchiveEntry is one file pulled out of an uploaded archive.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// maxArchiveEntries bounds how many files one archive may carry.
const maxArchiveEntries = 500

// ExtractAudioArchive reads a zip held in memory and returns its audio files
// flattened to their base names. Directories, hidden files and non-audio
// entries are skipped. Entries with path traversal are rejected outright.
func ExtractAudioArchive(data []byte) ([]ArchiveEntry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip archive: %w", err)
	}

	var entries []ArchiveEntry
	for _, f := range r.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")

		// ✅ Security: prevent zip slip (path traversal)
		clean := path.Clean(name)
		if path.IsAbs(name) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, fmt.Errorf("illegal file path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			continue
		}
		base := path.Base(name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}
		if _, ok := audioContentTypes[strings.ToLower(path.Ext(base))]; !ok {
			continue
		}
		if len(entries) >= maxArchiveEntries {
			return nil, fmt.Errorf("archive has more than %d audio files", maxArchiveEntries)
		}

		if f.UncompressedSize64 > MaxAudioFileSize {
			return nil, fmt.Errorf("%s: file too large (%d bytes, max %d)", base, f.UncompressedSize64, MaxAudioFileSize)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		// Read one byte past the cap so a lying header cannot slip through.
		buf, err := io.ReadAll(io.LimitReader(rc, MaxAudioFileSize+1))
		rc.Close()
		if err != nil {
			return nil, err
		}
		if len(buf) > MaxAudioFileSize {
			return nil, fmt.Errorf("%s: file too large (max %d bytes)", base, MaxAudioFileSize)
		}

		entries = append(entries, ArchiveEntry{Name: base, Data: buf})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("archive contains no audio files (allowed: %s)", strings.Join(AllowedAudioExtensions(), ", "))
	}
	return entries, nil
}
