package utils

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestValidateAudioFile(t *testing.T) {
	assert.NoError(t, ValidateAudioFile("hello.MP3", 1024))
	assert.NoError(t, ValidateAudioFile("a.m4a", MaxAudioFileSize))

	err := ValidateAudioFile("notes.txt", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	err = ValidateAudioFile("big.wav", MaxAudioFileSize+1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")

	assert.Error(t, ValidateAudioFile("empty.wav", 0))
}

func TestAudioContentType(t *testing.T) {
	assert.Equal(t, "audio/wav", AudioContentType("x.WAV"))
	assert.Equal(t, "audio/mp4", AudioContentType("x.m4a"))
	assert.Equal(t, "audio/mpeg", AudioContentType("x.unknown"))
}

func TestExtractAudioArchive(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"set1/hello.mp3":       []byte("ID3a"),
		"set1/nested/bye.wav":  []byte("RIFFb"),
		"readme.txt":           []byte("skip me"),
		"__MACOSX/._hello.mp3": []byte("junk"),
		".hidden.mp3":          []byte("junk"),
	})

	entries, err := ExtractAudioArchive(data)
	require.NoError(t, err)

	names := map[string]string{}
	for _, e := range entries {
		names[e.Name] = string(e.Data)
	}
	assert.Equal(t, map[string]string{"hello.mp3": "ID3a", "bye.wav": "RIFFb"}, names)
}

func TestExtractAudioArchive_RejectsTraversal(t *testing.T) {
	data := buildZip(t, map[string][]byte{"../../etc/evil.mp3": []byte("x")})
	_, err := ExtractAudioArchive(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal file path")
}

func TestExtractAudioArchive_NoAudio(t *testing.T) {
	data := buildZip(t, map[string][]byte{"a.txt": []byte("x")})
	_, err := ExtractAudioArchive(data)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no audio files"))
}

func TestExtractAudioArchive_NotAZip(t *testing.T) {
	_, err := ExtractAudioArchive([]byte("definitely not a zip"))
	assert.Error(t, err)
}
