// Package imagefile validates user-selected files and turns them into
// in-memory encoded images.
package imagefile

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"mohaweel/internal/domain"
)

// File is a user-chosen file as declared by the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FromMultipart adapts an uploaded form file. The body is opened lazily by
// Acquire so that rejected files are never read.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        &lazyPart{fh: fh},
	}
}

// Acquire validates f and reads it into an EncodedImage tagged with the
// declared mime type.
func Acquire(ctx context.Context, f File) (domain.EncodedImage, error) {
	mimeType, err := checkType(f.ContentType)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	if f.Size > domain.MaxImageBytes {
		return domain.EncodedImage{}, domain.Validation(domain.CodeTooLarge)
	}
	if err := ctx.Err(); err != nil {
		return domain.EncodedImage{}, err
	}
	if f.Body == nil {
		return domain.EncodedImage{}, domain.Validation(domain.CodeEmptyFile)
	}
	if c, ok := f.Body.(io.Closer); ok {
		defer c.Close()
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, domain.MaxImageBytes+1))
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("imagefile: read %q: %w", f.Name, err)
	}
	if len(data) > domain.MaxImageBytes {
		return domain.EncodedImage{}, domain.Validation(domain.CodeTooLarge)
	}
	if len(data) == 0 {
		return domain.EncodedImage{}, domain.Validation(domain.CodeEmptyFile)
	}
	return domain.EncodedImage{MIMEType: mimeType, Data: data}, nil
}

// FromDataURL accepts an image that the client already encoded, applying the
// same type and size rules as Acquire.
func FromDataURL(s string) (domain.EncodedImage, error) {
	img, err := domain.ParseDataURL(s)
	if err != nil {
		return domain.EncodedImage{}, &domain.Error{Kind: domain.KindValidation, Code: domain.CodeInvalidDataURL, Err: err}
	}
	mimeType, err := checkType(img.MIMEType)
	if err != nil {
		return domain.EncodedImage{}, err
	}
	if len(img.Data) > domain.MaxImageBytes {
		return domain.EncodedImage{}, domain.Validation(domain.CodeTooLarge)
	}
	if len(img.Data) == 0 {
		return domain.EncodedImage{}, domain.Validation(domain.CodeEmptyFile)
	}
	img.MIMEType = mimeType
	return img, nil
}

func checkType(contentType string) (string, error) {
	mediaType := strings.TrimSpace(contentType)
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(mediaType)
	if !strings.HasPrefix(mediaType, "image/") || len(mediaType) == len("image/") {
		return "", domain.Validation(domain.CodeInvalidType)
	}
	return mediaType, nil
}

type lazyPart struct {
	fh   *multipart.FileHeader
	file multipart.File
}

func (p *lazyPart) Read(b []byte) (int, error) {
	if p.file == nil {
		f, err := p.fh.Open()
		if err != nil {
			return 0, err
		}
		p.file = f
	}
	return p.file.Read(b)
}

func (p *lazyPart) Close() error {
	if p.file == nil {
		return nil
	}
	return p.file.Close()
}
