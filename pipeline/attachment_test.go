package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSniffAttachment(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "photo.png")
	// Minimal PNG signature is enough for detection.
	req.NoError(os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	att, err := SniffAttachment(path)

	req.NoError(err)
	req.Equal("photo.png", att.Name)
	req.Equal("image/png", att.MimeType)
	req.Empty(att.URL, "upload collaborator fills the URL later")
}

func TestSniffAttachment_MissingFile(t *testing.T) {
	_, err := SniffAttachment(filepath.Join(t.TempDir(), "absent.bin"))
	require.Error(t, err)
}
