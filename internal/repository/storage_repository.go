package repository

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/models"

	"github.com/charlievieth/fastwalk"
)

const uploadsSegment = "/uploads/"

// FileEntry обычный файл, найденный при обходе директории
type FileEntry struct {
	Path string // абсолютный путь
	Rel  string // путь относительно корня обхода, через "/"
	Size int64
}

// StorageRepository разрешает ссылки на файлы в пути внутри корня хранилища.
// Корень задается при старте и дальше не меняется.
type StorageRepository struct {
	root string
}

func NewStorageRepository(cfg *config.Config) (*StorageRepository, error) {
	// Создаем корень хранилища, если его нет
	if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return NewStorageRepositoryAt(cfg.Storage.Root)
}

// NewStorageRepositoryAt создает репозиторий для уже существующего корня
func NewStorageRepositoryAt(root string) (*StorageRepository, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to access storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root is not a directory: %s", abs)
	}
	// Корень храним без символических ссылок, иначе проверка реальных путей не сойдется
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	return &StorageRepository{root: filepath.Clean(target)}, nil
}

// Root возвращает абсолютный путь корня хранилища
func (r *StorageRepository) Root() string {
	return r.root
}

// NormalizeKey приводит произвольную ссылку (URL, /uploads/..., относительный путь,
// путь с обратными слешами) к ключу хранилища. Пустой результат - ok=false.
func NormalizeKey(ref string) (models.StorageKey, bool) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return "", false
	}

	// Полный URL: оставляем только путь
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = u.Path
	}

	s = strings.ReplaceAll(s, "\\", "/")

	if i := strings.Index(s, uploadsSegment); i >= 0 {
		s = s[i+len(uploadsSegment):]
	} else {
		s = strings.TrimPrefix(s, "uploads/")
	}
	s = strings.TrimLeft(s, "/")

	if s == "" {
		return "", false
	}
	return models.StorageKey(s), true
}

// Resolve разрешает ссылку в абсолютный путь внутри корня.
// Абсолютный путь из старых записей возвращается как есть, если файл существует и лежит внутри корня.
// Всё остальное нормализуется и проверяется; выход за корень - ErrInvalidStorageLocation.
func (r *StorageRepository) Resolve(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if filepath.IsAbs(trimmed) {
		legacy := filepath.Clean(trimmed)
		if _, err := os.Stat(legacy); err == nil && r.contains(legacy) && r.confined(legacy) == nil {
			return legacy, nil
		}
	}

	key, ok := NormalizeKey(ref)
	if !ok {
		return "", errdefs.ErrEmptyStorageKey
	}
	return r.validateFilePath(string(key))
}

// validateFilePath проверяет, что путь файла не выходит за пределы корня
func (r *StorageRepository) validateFilePath(key string) (string, error) {
	// Объединяем корневую директорию и ключ, filepath.Join заодно схлопывает . и ..
	resolved := filepath.Join(r.root, filepath.FromSlash(key))

	if !r.contains(resolved) {
		return "", errdefs.Wrapf(errdefs.ErrInvalidStorageLocation, "key %q escapes storage root", key)
	}
	if err := r.confined(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

// confined проверяет путь после раскрытия символических ссылок:
// ссылка внутри корня не должна уводить за его пределы
func (r *StorageRepository) confined(path string) error {
	target, err := realPath(path)
	if err != nil {
		return errdefs.Wrapf(errdefs.ErrInvalidStorageLocation, "resolve %s: %v", path, err)
	}
	if !r.contains(target) {
		return errdefs.Wrapf(errdefs.ErrInvalidStorageLocation, "%s points outside storage root", path)
	}
	return nil
}

// realPath раскрывает символические ссылки в существующей части пути,
// несуществующий хвост присоединяется как есть
func realPath(path string) (string, error) {
	var rest []string
	p := path
	for {
		target, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{target}, rest...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return path, nil
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

// contains - строгий потомок корня
func (r *StorageRepository) contains(path string) bool {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// ResolveExisting разрешает ссылку и проверяет, что это существующий обычный файл
func (r *StorageRepository) ResolveExisting(ref string) (string, os.FileInfo, error) {
	path, err := r.Resolve(ref)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil, errdefs.Wrapf(errdefs.ErrFileNotFound, "stat %s", path)
	} else if err != nil {
		return "", nil, fmt.Errorf("failed to access file: %w", err)
	}

	// Проверяем, что это файл, а не директория
	if !info.IsDir() && info.Mode().IsRegular() {
		return path, info, nil
	}
	return "", nil, errdefs.Wrapf(errdefs.ErrFileNotFound, "not a regular file: %s", path)
}

// ResolveDirectory разрешает ссылку на существующую директорию
func (r *StorageRepository) ResolveDirectory(ref string) (string, error) {
	path, err := r.Resolve(ref)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errdefs.Wrapf(errdefs.ErrFileNotFound, "stat %s", path)
	}
	if !info.IsDir() {
		return "", errdefs.Wrapf(errdefs.ErrFileNotFound, "not a directory: %s", path)
	}
	return path, nil
}

// ListFiles рекурсивно обходит директорию и возвращает обычные файлы в порядке Rel.
// Символические ссылки не разыменовываются.
func (r *StorageRepository) ListFiles(ctx context.Context, dir string) ([]FileEntry, error) {
	var (
		mu      sync.Mutex
		entries []FileEntry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Нечитаемые поддиректории пропускаем
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}

		mu.Lock()
		entries = append(entries, FileEntry{Path: path, Rel: filepath.ToSlash(rel), Size: info.Size()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}
