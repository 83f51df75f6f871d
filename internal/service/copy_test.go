package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"beatstore-media-service/internal/errdefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestCopyBuffer(t *testing.T) {
	src := strings.Repeat("x", 10000)
	var dst bytes.Buffer

	n, err := CopyBuffer(context.Background(), &dst, strings.NewReader(src), make([]byte, 333))
	require.NoError(t, err)
	assert.EqualValues(t, len(src), n)
	assert.Equal(t, src, dst.String())
}

func TestCopyBufferErrors(t *testing.T) {
	t.Run("write", func(t *testing.T) {
		_, err := CopyBuffer(context.Background(), &failingWriter{limit: 0}, strings.NewReader("abc"), make([]byte, 8))
		var ce *CopyError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "write", ce.Op)
		assert.True(t, IsClientGone(err))
		assert.False(t, errdefs.Is(err, errdefs.ErrInternal))
	})

	t.Run("read", func(t *testing.T) {
		_, err := CopyBuffer(context.Background(), io.Discard, errReader{}, make([]byte, 8))
		var ce *CopyError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "read", ce.Op)
		assert.False(t, IsClientGone(err))
		assert.True(t, errdefs.Is(err, errdefs.ErrInternal))
		assert.Equal(t, 500, errdefs.HTTPStatus(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n, err := CopyBuffer(ctx, io.Discard, strings.NewReader("abc"), make([]byte, 8))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
