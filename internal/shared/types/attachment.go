package types

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxAttachmentSize is the largest image accepted for upload (5 MiB)
const MaxAttachmentSize = 5 * 1024 * 1024

var (
	ErrAttachmentEmpty    = errors.New("attachment is empty")
	ErrAttachmentTooLarge = errors.New("attachment exceeds 5 MiB")
	ErrAttachmentType     = errors.New("attachment must be a JPEG or PNG image")
)

// allowedImageTypes lists MIME types the server accepts
var allowedImageTypes = []string{"image/jpeg", "image/png"}

// ImageAttachment is an image carried inline as base64
type ImageAttachment struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	Base64Data string `json:"base64Data"`
	Size       int    `json:"size"`
}

// NewImageAttachment builds an attachment from raw bytes.
// The MIME type is sniffed from the content, the filename is only a label.
func NewImageAttachment(id, filename string, data []byte) (ImageAttachment, error) {
	if len(data) == 0 {
		return ImageAttachment{}, ErrAttachmentEmpty
	}
	if len(data) > MaxAttachmentSize {
		return ImageAttachment{}, fmt.Errorf("%s: %w", filename, ErrAttachmentTooLarge)
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), allowedImageTypes...) {
		return ImageAttachment{}, fmt.Errorf("%s is %s: %w", filename, mime.String(), ErrAttachmentType)
	}

	return ImageAttachment{
		ID:         id,
		Filename:   filename,
		MimeType:   mime.String(),
		Base64Data: base64.StdEncoding.EncodeToString(data),
		Size:       len(data),
	}, nil
}
