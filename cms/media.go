package cms

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jrsteele09/go-cms-admin/transport"
)

// maxUploadSize mirrors the API's request size limit.
const maxUploadSize = 64 << 20

type Media struct {
	ID        string    `json:"id" yaml:"id"`
	Filename  string    `json:"filename" yaml:"filename"`
	MimeType  string    `json:"mime_type" yaml:"mime_type"`
	Size      int64     `json:"size" yaml:"size"`
	URL       string    `json:"url" yaml:"url"`
	Alt       string    `json:"alt,omitempty" yaml:"alt,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

type MediaUpload struct {
	Filename string `validate:"required,max=255"`
	Alt      string `validate:"max=512"`
	Data     []byte `validate:"required,min=1"`
}

type MediaService struct {
	c *Client
}

func (s *MediaService) List(ctx context.Context, opts ListOptions) (*Page[Media], error) {
	return list[Media](ctx, s.c, "/media", opts, nil)
}

func (s *MediaService) Get(ctx context.Context, id string) (*Media, error) {
	if err := requireID("media", id); err != nil {
		return nil, err
	}
	return send[Media](ctx, s.c, http.MethodGet, resourcePath("media", id), nil)
}

// Upload sends a file as multipart/form-data. The MIME type is sniffed from
// the content rather than trusted from the file extension.
func (s *MediaService) Upload(ctx context.Context, in MediaUpload) (*Media, error) {
	if err := s.c.check(in); err != nil {
		return nil, err
	}
	if len(in.Data) > maxUploadSize {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d", ErrInvalidRequest, len(in.Data), maxUploadSize)
	}

	body, contentType, err := multipartBody(in)
	if err != nil {
		return nil, err
	}
	return call[Media](ctx, s.c, transport.Request{
		Method:      http.MethodPost,
		Path:        "/media",
		Body:        body,
		ContentType: contentType,
	})
}

func (s *MediaService) Delete(ctx context.Context, id string) error {
	if err := requireID("media", id); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("media", id))
}

func multipartBody(in MediaUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	mtype := mimetype.Detect(in.Data)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(in.Filename)))
	header.Set("Content-Type", mtype.String())

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("[cms Upload] create part: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return nil, "", fmt.Errorf("[cms Upload] write part: %w", err)
	}
	if in.Alt != "" {
		if err := w.WriteField("alt", in.Alt); err != nil {
			return nil, "", fmt.Errorf("[cms Upload] write alt: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("[cms Upload] close writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
