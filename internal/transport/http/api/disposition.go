package api

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"
)

// ContentDisposition собирает заголовок с ASCII именем и, для не-ASCII имен, filename* по RFC 5987
func ContentDisposition(disposition, name string) string {
	if disposition != DispositionInline {
		disposition = DispositionAttachment
	}
	if name == "" {
		return disposition
	}

	fallback := asciiFileName(name)
	if fallback == name {
		return fmt.Sprintf(`%s; filename="%s"`, disposition, fallback)
	}
	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`, disposition, fallback, encodeRFC5987(name))
}

// asciiFileName убирает диакритику и заменяет оставшиеся не-ASCII символы на "_"
func asciiFileName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	for _, r := range stripped {
		switch {
		case r == '"' || r == '\\':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f:
			continue
		case r > unicode.MaxASCII:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	return "download"
}

// encodeRFC5987 кодирует значение ext-value: разрешены только attr-char, остальное %XX от UTF-8
func encodeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
