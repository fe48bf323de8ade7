package simplestore_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-store/pkg/simplestore"
	memorystorage "github.com/tendant/simple-store/pkg/simplestore/storage/memory"
)

func readObject(t *testing.T, obj *simplestore.Object) string {
	t.Helper()
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	return string(data)
}

func TestUploadFile_Raw(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := setupService(t, simplestore.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	result, err := svc.UploadFile(ctx, simplestore.RawUpload{
		Key:         "docs/a.txt",
		ContentType: "text/plain",
		Body:        strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", result.Key)
	assert.Equal(t, int64(5), result.Size)
	assert.NotEmpty(t, result.ETag)

	obj, err := svc.DownloadFile(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, "2024-05-01T12:00:00Z", obj.CustomMetadata[simplestore.MetadataUploadedAt])
	assert.Equal(t, "hello", readObject(t, obj))
}

func TestUploadFile_RawRequiresKey(t *testing.T) {
	svc := setupService(t)

	_, err := svc.UploadFile(context.Background(), simplestore.RawUpload{Body: strings.NewReader("x")})
	requireValidation(t, err, "Missing X-File-Key header for direct upload")

	_, err = svc.UploadFile(context.Background(), &simplestore.RawUpload{Body: strings.NewReader("x")})
	requireValidation(t, err, "Missing X-File-Key header for direct upload")
}

func TestUploadFile_RawEmptyBody(t *testing.T) {
	svc := setupService(t)

	result, err := svc.UploadFile(context.Background(), simplestore.RawUpload{Key: "empty"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Size)

	obj, err := svc.DownloadFile(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, simplestore.DefaultContentType, obj.ContentType)
	assert.Empty(t, readObject(t, obj))
}

func TestUploadFile_Form(t *testing.T) {
	fixed := time.UnixMilli(1700000000000).UTC()
	svc := setupService(t, simplestore.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	t.Run("synthesized key", func(t *testing.T) {
		result, err := svc.UploadFile(ctx, simplestore.FormUpload{
			FileName:    "report.pdf",
			ContentType: "application/pdf",
			Body:        strings.NewReader("%PDF"),
		})
		require.NoError(t, err)
		assert.Equal(t, "uploads/1700000000000-report.pdf", result.Key)
		assert.Equal(t, int64(4), result.Size)
	})

	t.Run("explicit path", func(t *testing.T) {
		result, err := svc.UploadFile(ctx, &simplestore.FormUpload{
			Key:      "docs/x.bin",
			FileName: "ignored.bin",
			Body:     strings.NewReader("abc"),
		})
		require.NoError(t, err)
		assert.Equal(t, "docs/x.bin", result.Key)

		info, err := svc.DownloadFile(ctx, "docs/x.bin")
		require.NoError(t, err)
		assert.Equal(t, simplestore.DefaultContentType, info.ContentType)
		readObject(t, info)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, simplestore.FormUpload{Key: "docs/y"})
		requireValidation(t, err, `No file provided. Use "file" field in form data.`)
	})
}

func TestUploadFile_Overwrite(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.UploadFile(ctx, simplestore.RawUpload{Key: "k", Body: strings.NewReader("first")})
	require.NoError(t, err)
	_, err = svc.UploadFile(ctx, simplestore.RawUpload{Key: "k", Body: strings.NewReader("second")})
	require.NoError(t, err)

	obj, err := svc.DownloadFile(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", readObject(t, obj))

	list, err := svc.ListFiles(ctx, simplestore.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list.Objects, 1)
}

func TestDownloadFile(t *testing.T) {
	svc := setupService(t)

	_, err := svc.DownloadFile(context.Background(), "missing")
	assert.ErrorIs(t, err, simplestore.ErrObjectNotFound)

	_, err = svc.DownloadFile(context.Background(), "")
	assert.ErrorIs(t, err, simplestore.ErrInvalidInput)
}

func TestListFiles(t *testing.T) {
	store := memorystorage.New()
	svc := setupService(t, simplestore.WithObjectStore(store))
	ctx := context.Background()

	list, err := svc.ListFiles(ctx, simplestore.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, list.Objects)
	assert.Empty(t, list.Objects)
	assert.False(t, list.Truncated)

	for i := 0; i < 105; i++ {
		_, err := svc.UploadFile(ctx, simplestore.RawUpload{
			Key:  fmt.Sprintf("bulk/%03d", i),
			Body: strings.NewReader("x"),
		})
		require.NoError(t, err)
	}
	_, err = svc.UploadFile(ctx, simplestore.RawUpload{Key: "other/a", Body: strings.NewReader("x")})
	require.NoError(t, err)

	t.Run("page capped at default limit", func(t *testing.T) {
		page, err := svc.ListFiles(ctx, simplestore.ListOptions{Prefix: "bulk/", Limit: 500})
		require.NoError(t, err)
		assert.Len(t, page.Objects, simplestore.DefaultListLimit)
		assert.True(t, page.Truncated)
		assert.NotEmpty(t, page.Cursor)

		rest, err := svc.ListFiles(ctx, simplestore.ListOptions{Prefix: "bulk/", Cursor: page.Cursor})
		require.NoError(t, err)
		assert.Len(t, rest.Objects, 5)
		assert.False(t, rest.Truncated)
		assert.Empty(t, rest.Cursor)
	})

	t.Run("prefix filter", func(t *testing.T) {
		page, err := svc.ListFiles(ctx, simplestore.ListOptions{Prefix: "other/"})
		require.NoError(t, err)
		require.Len(t, page.Objects, 1)
		assert.Equal(t, "other/a", page.Objects[0].Key)
		assert.Contains(t, page.Objects[0].CustomMetadata, simplestore.MetadataUploadedAt)
	})
}

func TestDeleteFile(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.UploadFile(ctx, simplestore.RawUpload{Key: "docs/a.txt", Body: strings.NewReader("x")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFile(ctx, "docs/a.txt"))

	_, err = svc.DownloadFile(ctx, "docs/a.txt")
	assert.ErrorIs(t, err, simplestore.ErrObjectNotFound)

	assert.ErrorIs(t, svc.DeleteFile(ctx, "docs/a.txt"), simplestore.ErrObjectNotFound)
	assert.ErrorIs(t, svc.DeleteFile(ctx, ""), simplestore.ErrInvalidInput)
}

// recordingStore logs the object store calls made through it
type recordingStore struct {
	*memorystorage.Backend
	calls []string
}

func (s *recordingStore) Get(ctx context.Context, key string) (*simplestore.Object, error) {
	s.calls = append(s.calls, "get")
	return s.Backend.Get(ctx, key)
}

func (s *recordingStore) Head(ctx context.Context, key string) (*simplestore.ObjectInfo, error) {
	s.calls = append(s.calls, "head")
	return s.Backend.Head(ctx, key)
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.calls = append(s.calls, "delete")
	return s.Backend.Delete(ctx, key)
}

func TestDeleteFile_ChecksMetadataOnly(t *testing.T) {
	store := &recordingStore{Backend: memorystorage.New()}
	svc := setupService(t, simplestore.WithObjectStore(store))
	ctx := context.Background()

	_, err := svc.UploadFile(ctx, simplestore.RawUpload{Key: "big.bin", Body: strings.NewReader("payload")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFile(ctx, "big.bin"))
	assert.Equal(t, []string{"head", "delete"}, store.calls)

	store.calls = nil
	assert.ErrorIs(t, svc.DeleteFile(ctx, "big.bin"), simplestore.ErrObjectNotFound)
	assert.Equal(t, []string{"head"}, store.calls)
}
