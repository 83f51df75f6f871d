package service

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var stemExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".aiff": true,
	".flac": true,
}

// Мусор, который оставляют архиваторы macOS
var junkPatterns = []string{
	"**/.DS_Store",
	"**/._*",
}

const macOSXFolder = "__MACOSX"

func isJunkPath(rel string) bool {
	if strings.Contains(rel, macOSXFolder) {
		return true
	}
	for _, p := range junkPatterns {
		if matched, err := doublestar.Match(p, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// isEligibleStem решает, попадет ли файл в папку stems архива.
// Файлы меньше minSize считаются заглушками.
func isEligibleStem(rel string, size, minSize int64, allowZip bool) bool {
	if isJunkPath(rel) {
		return false
	}
	ext := strings.ToLower(path.Ext(rel))
	if !stemExtensions[ext] && !(allowZip && ext == ".zip") {
		return false
	}
	return size >= minSize
}
