package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func storeWith(w *recordingWriter, gotContentType *string) *BlobStore {
	return &BlobStore{
		bucket: "listings-bucket",
		newWriter: func(_ context.Context, _, _ string, contentType string) io.WriteCloser {
			*gotContentType = contentType
			return w
		},
	}
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	var contentType string
	uri, err := storeWith(w, &contentType).PutObject(context.Background(), "listings/kingston-ny/1.json", "application/json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "gs://listings-bucket/listings/kingston-ny/1.json", uri)
	assert.Equal(t, "{}", w.String())
	assert.Equal(t, "application/json", contentType)
	assert.True(t, w.closed)
}

func TestPutObjectCloseError(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{closeErr: errors.New("quota exceeded")}
	var contentType string
	_, err := storeWith(w, &contentType).PutObject(context.Background(), "a.json", "", []byte(`{}`))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestPutObjectValidation(t *testing.T) {
	t.Parallel()

	var contentType string
	_, err := storeWith(&recordingWriter{}, &contentType).PutObject(context.Background(), "", "", nil)
	assert.Error(t, err)

	_, err = New(nil, Config{Bucket: "b"})
	assert.Error(t, err)
}
