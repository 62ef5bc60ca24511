package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hireline/supportchat-cli/internal/api"
)

// ErrEmptyMessage is returned by Send when the compose buffer holds
// neither text nor an attachment.
var ErrEmptyMessage = errors.New("message is empty")

// ErrAttachmentTooLarge is returned before any network call when a staged
// file exceeds the upload ceiling.
var ErrAttachmentTooLarge = fmt.Errorf("attachment exceeds %dMB limit", api.MaxAttachmentSize/(1024*1024))

// Attachment is a validated file staged in the compose buffer until send.
type Attachment struct {
	Name      string
	MediaType string
	Size      int64
	Data      []byte
	IsImage   bool
}

// Compose is the widget's compose buffer: optional text plus an optional
// staged attachment. Send transmits both as one atomic request; on failure
// both are restored together so no draft is ever lost.
type Compose struct {
	Text       string
	Attachment *Attachment
}

// Empty reports whether there is nothing to send.
func (c Compose) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && c.Attachment == nil
}

// NewAttachment validates a file and stages it for send. Oversized files
// are rejected locally, immediately, with no network round trip.
func NewAttachment(name, mediaType string, data []byte) (*Attachment, error) {
	if err := ValidateAttachment(name, int64(len(data))); err != nil {
		return nil, err
	}
	return &Attachment{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Data:      data,
		IsImage:   strings.HasPrefix(mediaType, "image/"),
	}, nil
}

// ValidateAttachment checks a file against the upload ceiling.
func ValidateAttachment(name string, size int64) error {
	if name == "" {
		return errors.New("attachment has no name")
	}
	if size > api.MaxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	return nil
}
