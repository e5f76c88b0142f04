package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxImageBytes bounds uploaded source images.
	MaxImageBytes = 5 * 1024 * 1024

	// GeneratedMIMEType tags every image returned by the model.
	GeneratedMIMEType = "image/png"

	// FallbackMIMEType is assumed when a source image's type cannot be detected.
	FallbackMIMEType = "image/jpeg"
)

// EncodedImage is image bytes plus a declared mime type, usable both for
// display (as a data URL) and for transmission.
type EncodedImage struct {
	MIMEType string
	Data     []byte
}

// IsZero reports whether the image carries no payload.
func (img EncodedImage) IsZero() bool {
	return len(img.Data) == 0
}

// DataURL renders the image as a data:<mime>;base64,<payload> envelope.
func (img EncodedImage) DataURL() string {
	if img.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(img.MIMEType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(img.Data))
	return b.String()
}

// ParseDataURL strips a base64 data URL envelope. Input without an envelope
// is treated as a bare base64 payload with an empty mime type.
func ParseDataURL(s string) (EncodedImage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EncodedImage{}, fmt.Errorf("data url: empty input")
	}
	payload := s
	mime := ""
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s, ",")
		if !ok {
			return EncodedImage{}, fmt.Errorf("data url: missing payload separator")
		}
		meta := strings.TrimPrefix(header, "data:")
		params := strings.Split(meta, ";")
		if params[len(params)-1] != "base64" {
			return EncodedImage{}, fmt.Errorf("data url: only base64 payloads are supported")
		}
		mime = strings.ToLower(strings.TrimSpace(params[0]))
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("data url: decode payload: %w", err)
	}
	return EncodedImage{MIMEType: mime, Data: data}, nil
}

// TransformationResult pairs the source image with the model output. It is
// created once per successful generation and never mutated.
type TransformationResult struct {
	Original  EncodedImage
	Generated EncodedImage
	Prompt    string
	CreatedAt time.Time
}

// DownloadName is the attachment filename for a generated image.
func DownloadName(at time.Time) string {
	return fmt.Sprintf("generated-%d.png", at.UnixMilli())
}
