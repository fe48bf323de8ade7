package simplestore

import (
	"context"
	"io"
	"time"
)

func (s *service) ListFiles(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.Limit <= 0 || opts.Limit > DefaultListLimit {
		opts.Limit = DefaultListLimit
	}

	result, err := s.objects.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if result.Objects == nil {
		result.Objects = []ObjectInfo{}
	}
	if !result.Truncated {
		result.Cursor = ""
	}
	return result, nil
}

func (s *service) DownloadFile(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, NewValidationError("key", "Missing required parameter: key")
	}
	return s.objects.Get(ctx, key)
}

// UploadFile resolves the destination key and content type from either
// upload shape, then stores the payload.
func (s *service) UploadFile(ctx context.Context, input UploadInput) (*UploadResult, error) {
	now := s.now()

	var (
		key         string
		contentType string
		body        io.Reader
	)

	switch in := input.(type) {
	case FormUpload:
		if in.Body == nil {
			return nil, NewValidationError("file", `No file provided. Use "file" field in form data.`)
		}
		key = in.Key
		if key == "" {
			key = s.keys.GenerateKey(in.FileName, now)
		}
		contentType, body = in.ContentType, in.Body
	case *FormUpload:
		if in == nil {
			return nil, NewValidationError("file", `No file provided. Use "file" field in form data.`)
		}
		return s.UploadFile(ctx, *in)
	case RawUpload:
		if in.Key == "" {
			return nil, NewValidationError("key", "Missing X-File-Key header for direct upload")
		}
		if in.Body == nil {
			in.Body = eofReader{}
		}
		key, contentType, body = in.Key, in.ContentType, in.Body
	case *RawUpload:
		if in == nil {
			return nil, NewValidationError("key", "Missing X-File-Key header for direct upload")
		}
		return s.UploadFile(ctx, *in)
	default:
		return nil, NewValidationError("", "Unsupported upload")
	}

	return s.storeObject(ctx, key, body, contentType, now)
}

// storeObject is the single write path shared by both upload shapes.
func (s *service) storeObject(ctx context.Context, key string, body io.Reader, contentType string, now time.Time) (*UploadResult, error) {
	if contentType == "" {
		contentType = DefaultContentType
	}

	info, err := s.objects.Put(ctx, key, body, PutOptions{
		ContentType: contentType,
		CustomMetadata: map[string]string{
			MetadataUploadedAt: now.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Key:  info.Key,
		Size: info.Size,
		ETag: info.ETag,
	}
	if result.Key == "" {
		result.Key = key
	}
	return result, nil
}

func (s *service) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return NewValidationError("key", "Missing required parameter: key")
	}

	// Head keeps the existence probe from reading the body
	if _, err := s.objects.Head(ctx, key); err != nil {
		return err
	}

	return s.objects.Delete(ctx, key)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
