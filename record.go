package discordb

import "io"

// MaxUploadSize is the attachment size discord rejects for regular uploads.
// The limit is enforced remotely; it is reported on PayloadTooLargeError.
const MaxUploadSize = 8 << 20

// Record is one stored message. ID is assigned by discord and never changes.
type Record struct {
	ID         string      `json:"id"`
	Body       string      `json:"body,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	// Timestamp is epoch milliseconds of the last edit, or of creation when
	// the message was never edited.
	Timestamp int64 `json:"timestamp"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxy_url"`
	ContentType string `json:"content_type,omitempty"`
}

// Upload describes a file to store as a message attachment.
// Content is optional text stored as the record body.
type Upload struct {
	File     io.Reader
	Filename string
	Content  string
}
