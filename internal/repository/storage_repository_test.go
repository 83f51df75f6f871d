package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *StorageRepository {
	t.Helper()
	repo, err := NewStorageRepositoryAt(t.TempDir())
	require.NoError(t, err)
	return repo
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		ref  string
		want models.StorageKey
		ok   bool
	}{
		{"", "", false},
		{"   \t", "", false},
		{"https://cdn.example.com/uploads/beats/a.mp3", "beats/a.mp3", true},
		{"http://localhost:8080/files/x.wav?sig=1", "files/x.wav", true},
		{"/uploads/beats/a.mp3", "beats/a.mp3", true},
		{"/var/www/app/uploads/kits/k1/snare.wav", "kits/k1/snare.wav", true},
		{"uploads/beats/a.mp3", "beats/a.mp3", true},
		{"beats\\sub\\a.wav", "beats/sub/a.wav", true},
		{"C:\\data\\uploads\\beats\\a.wav", "beats/a.wav", true},
		{"///beats/a.mp3", "beats/a.mp3", true},
		{"beats/a.mp3", "beats/a.mp3", true},
		{"/uploads/", "", false},
		{"uploads/", "", false},
		{"../../etc/passwd", "../../etc/passwd", true},
	}

	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			got, ok := NormalizeKey(tc.ref)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveStaysInsideRoot(t *testing.T) {
	repo := newTestStorage(t)

	refs := []string{
		"beats/a.mp3",
		"/uploads/beats/a.mp3",
		"https://cdn.example.com/uploads/beats/a.mp3",
		"beats\\a.mp3",
		"beats/./sub/../a.mp3",
	}
	for _, ref := range refs {
		path, err := repo.Resolve(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, filepath.Join(repo.Root(), "beats", "a.mp3"), path, ref)
	}
}

func TestResolveIsStable(t *testing.T) {
	repo := newTestStorage(t)

	for _, ref := range []string{"beats/a.mp3", "/uploads/kits/k/x.wav", "packs\\p\\t.mp3"} {
		key, ok := NormalizeKey(ref)
		require.True(t, ok)

		first, err := repo.Resolve(string(key))
		require.NoError(t, err)
		second, err := repo.Resolve(string(key))
		require.NoError(t, err)
		assert.Equal(t, first, second)

		again, ok := NormalizeKey(string(key))
		require.True(t, ok)
		assert.Equal(t, key, again)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	repo := newTestStorage(t)

	refs := []string{
		"../secret.txt",
		"../../etc/passwd",
		"beats/../../outside.mp3",
		"uploads/../../etc/shadow",
		"/uploads/../../../etc/passwd",
		"https://evil.example.com/uploads/../../etc/passwd",
		"..\\..\\windows\\system.ini",
		"beats/..",
		".",
	}
	for _, ref := range refs {
		_, err := repo.Resolve(ref)
		assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation, ref)
	}
}

func TestResolveRejectsSiblingPrefix(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "uploads")
	require.NoError(t, os.MkdirAll(root, 0o755))
	repo, err := NewStorageRepositoryAt(root)
	require.NoError(t, err)

	_, err = repo.Resolve("../uploads2/a.mp3")
	assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation)
}

func TestResolveBlank(t *testing.T) {
	repo := newTestStorage(t)

	_, err := repo.Resolve("  ")
	assert.ErrorIs(t, err, errdefs.ErrEmptyStorageKey)
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestResolveLegacyAbsolutePath(t *testing.T) {
	repo := newTestStorage(t)
	legacy := filepath.Join(repo.Root(), "legacy", "old.wav")
	writeFile(t, legacy, 10)

	path, err := repo.Resolve(legacy)
	require.NoError(t, err)
	assert.Equal(t, legacy, path)

	// Существующий абсолютный путь вне корня не отдается как есть
	outside := filepath.Join(t.TempDir(), "elsewhere.wav")
	writeFile(t, outside, 10)
	path, err = repo.Resolve(outside)
	require.NoError(t, err)
	assert.NotEqual(t, outside, path)
	assert.True(t, repo.contains(path))
}

func TestResolveExisting(t *testing.T) {
	repo := newTestStorage(t)
	writeFile(t, filepath.Join(repo.Root(), "beats", "a.mp3"), 100)
	require.NoError(t, os.MkdirAll(filepath.Join(repo.Root(), "beats", "dir"), 0o755))

	path, info, err := repo.ResolveExisting("/uploads/beats/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Size())
	assert.Equal(t, filepath.Join(repo.Root(), "beats", "a.mp3"), path)

	_, _, err = repo.ResolveExisting("beats/missing.mp3")
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound)

	_, _, err = repo.ResolveExisting("beats/dir")
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound)

	_, _, err = repo.ResolveExisting("../x")
	assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation)
}

func TestListFilesSorted(t *testing.T) {
	repo := newTestStorage(t)
	dir := filepath.Join(repo.Root(), "stems", "beat1")
	writeFile(t, filepath.Join(dir, "b.wav"), 3)
	writeFile(t, filepath.Join(dir, "a.wav"), 1)
	writeFile(t, filepath.Join(dir, "drums", "kick.wav"), 2)

	resolved, err := repo.ResolveDirectory("stems/beat1")
	require.NoError(t, err)

	entries, err := repo.ListFiles(context.Background(), resolved)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.wav", entries[0].Rel)
	assert.Equal(t, "b.wav", entries[1].Rel)
	assert.Equal(t, "drums/kick.wav", entries[2].Rel)
	assert.Equal(t, int64(2), entries[2].Size)

	_, err = repo.ResolveDirectory("stems/beat1/a.wav")
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound)
}

func TestResolveRejectsSymlinkOutsideRoot(t *testing.T) {
	repo := newTestStorage(t)
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.mp3"), 100)
	require.NoError(t, os.Symlink(outside, filepath.Join(repo.Root(), "beats")))

	_, err := repo.Resolve("/uploads/beats/secret.mp3")
	assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation)

	_, _, err = repo.ResolveExisting("/uploads/beats/secret.mp3")
	assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation)

	// Несуществующий файл за ссылкой тоже отклоняется
	_, err = repo.Resolve("beats/missing.mp3")
	assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation)

	_, err = repo.ResolveDirectory("beats")
	assert.ErrorIs(t, err, errdefs.ErrInvalidStorageLocation)

	// Абсолютный путь из старой записи через ту же ссылку не отдается
	path, _, err := repo.ResolveExisting(filepath.Join(repo.Root(), "beats", "secret.mp3"))
	assert.Error(t, err)
	assert.Empty(t, path)
}

func TestResolveFollowsSymlinkInsideRoot(t *testing.T) {
	repo := newTestStorage(t)
	writeFile(t, filepath.Join(repo.Root(), "masters", "a.mp3"), 100)
	require.NoError(t, os.Symlink(filepath.Join(repo.Root(), "masters"), filepath.Join(repo.Root(), "beats")))

	path, info, err := repo.ResolveExisting("beats/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.Size())
	assert.Equal(t, filepath.Join(repo.Root(), "beats", "a.mp3"), path)
}

func TestStorageRootBehindSymlink(t *testing.T) {
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, os.Symlink(target, link))
	writeFile(t, filepath.Join(target, "beats", "a.mp3"), 10)

	repo, err := NewStorageRepositoryAt(link)
	require.NoError(t, err)

	_, _, err = repo.ResolveExisting("beats/a.mp3")
	assert.NoError(t, err)
}
