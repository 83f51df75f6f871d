package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", FallbackContentType("a/b/track.MP3"))
	assert.Equal(t, "audio/wav", FallbackContentType("track.wav"))
	assert.Equal(t, "audio/aiff", FallbackContentType("track.aiff"))
	assert.Equal(t, "audio/flac", FallbackContentType("track.flac"))
	assert.Equal(t, "application/zip", FallbackContentType("stems.zip"))
	assert.Equal(t, "application/octet-stream", FallbackContentType("notes.bin"))
	assert.Equal(t, "application/octet-stream", FallbackContentType("noext"))
}

func TestResolveContentType(t *testing.T) {
	f := newFixture(t)

	t.Run("sniffed wav", func(t *testing.T) {
		path := f.write(t, "beats/master.dat", wavHeader, 512)
		assert.True(t, IsWavContentType(f.types.Resolve(path)))
	})

	t.Run("empty file falls back to extension", func(t *testing.T) {
		path := f.write(t, "beats/empty.mp3", nil, 0)
		assert.Equal(t, "audio/mpeg", f.types.Resolve(path))
	})

	t.Run("missing file falls back to extension", func(t *testing.T) {
		assert.Equal(t, "audio/wav", f.types.Resolve(f.root+"/nope.wav"))
	})

	t.Run("cached", func(t *testing.T) {
		path := f.write(t, "beats/cached.mp3", mp3Header, 256)
		first := f.types.Resolve(path)
		require.Equal(t, 1, countKeysWithPrefix(f.types, path))
		assert.Equal(t, first, f.types.Resolve(path))
		assert.Equal(t, 1, countKeysWithPrefix(f.types, path))
	})
}

func TestDetectExtension(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ".mp3", f.types.DetectExtension(f.write(t, "beats/noext", mp3Header, 128)))
	assert.Equal(t, "", f.types.DetectExtension(f.root+"/missing"))
}

func TestContentTypePredicates(t *testing.T) {
	assert.True(t, IsWavContentType("audio/x-wav"))
	assert.True(t, IsWavContentType("audio/wav; charset=binary"))
	assert.False(t, IsWavContentType("audio/mpeg"))
	assert.True(t, IsMp3ContentType("audio/mpeg"))
	assert.False(t, IsMp3ContentType("application/octet-stream"))
}

func countKeysWithPrefix(r *ContentTypeResolver, prefix string) int {
	n := 0
	for _, k := range r.cache.Keys() {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
