package pipeline

import (
	"path/filepath"

	"chat-sync/domain/chat"

	"github.com/gabriel-vasile/mimetype"
)

// SniffAttachment inspects a local file before it is handed to the
// external upload collaborator, so the eventual attachment reference
// carries an accurate MIME type. The URL stays empty until the upload
// returns one.
func SniffAttachment(path string) (chat.Attachment, error) {
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return chat.Attachment{}, err
	}
	return chat.Attachment{
		Name:     filepath.Base(path),
		MimeType: detected.String(),
	}, nil
}
