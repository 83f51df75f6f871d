package service

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

const maxNameRunes = 150

// SanitizeFileName убирает из названия символы, недопустимые в именах файлов.
// Юникод сохраняется; пустой результат означает, что от названия ничего не осталось.
func SanitizeFileName(name string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			continue
		case strings.ContainsRune(`/\:*?"<>|`, r):
			r = '_'
		case unicode.IsSpace(r):
			if lastSpace {
				continue
			}
			r = ' '
		}
		lastSpace = r == ' '
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), " .")
	if runes := []rune(out); len(runes) > maxNameRunes {
		out = strings.TrimRight(string(runes[:maxNameRunes]), " .")
	}
	return out
}

// entryName имя файла по названию и расширению. detectExt вызывается, если у файла нет расширения.
// Если ни название, ни расширение получить не удалось, используется исходное имя файла.
func entryName(title, filePath string, detectExt func(string) string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" && detectExt != nil {
		ext = detectExt(filePath)
	}
	base := SanitizeFileName(title)
	if ext == "" || base == "" {
		if leaf := SanitizeFileName(filepath.Base(filePath)); leaf != "" {
			return leaf
		}
		return "file" + ext
	}
	return base + ext
}

// entryNamer выдает уникальные имена записей архива.
// Сравнение без учета регистра: архивы распаковывают и на нечувствительных к регистру ФС.
type entryNamer struct {
	used map[string]struct{}
}

func newEntryNamer() *entryNamer {
	return &entryNamer{used: make(map[string]struct{})}
}

func (n *entryNamer) reserve(name string) {
	n.used[strings.ToLower(name)] = struct{}{}
}

func (n *entryNamer) unique(name string) string {
	if _, taken := n.used[strings.ToLower(name)]; !taken {
		n.reserve(name)
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, taken := n.used[strings.ToLower(candidate)]; !taken {
			n.reserve(candidate)
			return candidate
		}
	}
}
