package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultContentType = "application/octet-stream"

// extensionContentTypes таблица на случай, если определить тип по содержимому не удалось
var extensionContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".aiff": "audio/aiff",
	".flac": "audio/flac",
	".zip":  "application/zip",
}

// ContentTypeResolver определяет MIME тип файла
type ContentTypeResolver struct {
	cache *lru.Cache[string, string]
}

func NewContentTypeResolver(cacheSize int) (*ContentTypeResolver, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create mime cache: %w", err)
	}
	return &ContentTypeResolver{cache: cache}, nil
}

// Resolve пробует определить тип по содержимому, иначе берет его из таблицы расширений
func (r *ContentTypeResolver) Resolve(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return FallbackContentType(path)
	}

	cacheKey := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if ct, ok := r.cache.Get(cacheKey); ok {
		return ct
	}

	ct := sniffContentType(path)
	if ct == "" {
		ct = FallbackContentType(path)
	}
	r.cache.Add(cacheKey, ct)
	return ct
}

// DetectExtension расширение по содержимому файла ("" если не определено)
func (r *ContentTypeResolver) DetectExtension(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt.Is(defaultContentType) {
		return ""
	}
	return mt.Extension()
}

func sniffContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil || mt == nil {
		return ""
	}
	// Неизвестное содержимое и пустые файлы распознаются как text/plain или octet-stream,
	// в этих случаях таблица расширений точнее
	if mt.Is(defaultContentType) || mt.Is("text/plain") {
		return ""
	}
	return mt.String()
}

// FallbackContentType тип по расширению файла
func FallbackContentType(path string) string {
	if ct, ok := extensionContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return defaultContentType
}

// IsWavContentType тип соответствует WAV
func IsWavContentType(ct string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return false
}

// IsMp3ContentType тип соответствует MP3
func IsMp3ContentType(ct string) bool {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	switch base {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg-3":
		return true
	}
	return false
}
