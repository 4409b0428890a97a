package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content part type constants.
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
	ContentTypeFile     = "file"
)

// ContentPart is one element of a multimodal message body. Exactly one of
// the payload fields is populated, selected by Type.
type ContentPart struct {
	// Type is the part discriminator: text, image_url, or file.
	Type string `json:"type"`

	// Text is the text payload for text parts.
	Text string `json:"text,omitempty"`

	// ImageURL carries the image payload (URL or base64 data URI).
	ImageURL *ImageURL `json:"image_url,omitempty"`

	// File carries an attached file payload.
	File *FileData `json:"file,omitempty"`
}

// ImageURL is the image payload of an image_url content part.
type ImageURL struct {
	// URL is either an HTTP(S) URL or a base64 data URI.
	URL string `json:"url"`
}

// FileData is the payload of a file content part.
type FileData struct {
	// Filename is the original file name.
	Filename string `json:"filename,omitempty"`

	// FileData is the base64-encoded file body.
	FileData string `json:"file_data,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

// ImagePart builds an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: ContentTypeImageURL, ImageURL: &ImageURL{URL: url}}
}

// MessageContent is the canonical message body: either a plain string or an
// ordered list of content parts. The two forms mirror the OpenAI wire format,
// where "content" is a JSON string or a JSON array.
//
// The zero value is empty string content.
type MessageContent struct {
	text  string
	parts []ContentPart
}

// Text builds plain string content.
func Text(s string) MessageContent {
	return MessageContent{text: s}
}

// Parts builds multimodal content from the given parts, preserving order.
func Parts(parts ...ContentPart) MessageContent {
	return MessageContent{parts: parts}
}

// Multipart reports whether the content is a list of parts rather than a
// plain string.
func (c MessageContent) Multipart() bool {
	return c.parts != nil
}

// PartList returns the content parts, or nil for plain string content.
func (c MessageContent) PartList() []ContentPart {
	return c.parts
}

// Text returns the textual content. For multipart content it concatenates
// the text parts in order.
func (c MessageContent) Text() string {
	if !c.Multipart() {
		return c.text
	}
	var b strings.Builder
	for _, p := range c.parts {
		if p.Type == ContentTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Empty reports whether the content carries no payload at all.
func (c MessageContent) Empty() bool {
	return c.text == "" && len(c.parts) == 0
}

// HasImages reports whether any part is an image.
func (c MessageContent) HasImages() bool {
	for _, p := range c.parts {
		if p.Type == ContentTypeImageURL {
			return true
		}
	}
	return false
}

// AppendText appends a text fragment in place. Plain content grows its
// string; multipart content grows its last text part, adding one if needed.
// Streaming accumulators use this to merge content deltas.
func (c *MessageContent) AppendText(s string) {
	if s == "" {
		return
	}
	if !c.Multipart() {
		c.text += s
		return
	}
	for i := len(c.parts) - 1; i >= 0; i-- {
		if c.parts[i].Type == ContentTypeText {
			c.parts[i].Text += s
			return
		}
	}
	c.parts = append(c.parts, TextPart(s))
}

// MarshalJSON encodes plain content as a JSON string and multipart content
// as a JSON array, matching the OpenAI wire format.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Multipart() {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts a JSON string, a JSON array of content parts, or
// null (treated as empty string content).
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = MessageContent{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("failed to decode content parts: %w", err)
		}
		*c = MessageContent{parts: parts}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode content: %w", err)
	}
	*c = MessageContent{text: s}
	return nil
}
