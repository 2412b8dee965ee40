package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxAudioFileSize caps a single uploaded reference recording.
const MaxAudioFileSize = 10 * 1024 * 1024

var audioContentTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

// AllowedAudioExtensions lists the accepted extensions, lower-case.
func AllowedAudioExtensions() []string {
	return []string{".mp3", ".wav", ".m4a"}
}

// ValidateAudioFile checks the extension allow-list and the size cap.
func ValidateAudioFile(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := audioContentTypes[ext]; !ok {
		return fmt.Errorf("%s: unsupported file type %q (allowed: %s)",
			filename, ext, strings.Join(AllowedAudioExtensions(), ", "))
	}
	if size > MaxAudioFileSize {
		return fmt.Errorf("%s: file too large (%d bytes, max %d)", filename, size, MaxAudioFileSize)
	}
	if size == 0 {
		return fmt.Errorf("%s: file is empty", filename)
	}
	return nil
}

// AudioContentType guesses the MIME type from the extension, defaulting to
// audio/mpeg.
func AudioContentType(filename string) string {
	if ct, ok := audioContentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "audio/mpeg"
}
