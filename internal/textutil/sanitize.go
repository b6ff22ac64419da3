package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ResourceName converts value into a SageMaker-safe name fragment. Accented
// letters are folded to ASCII, letters and digits are kept, every other run
// of characters becomes a single hyphen, and leading or trailing hyphens are
// dropped. Returns fallback when nothing usable remains.
func ResourceName(value, fallback string) string {
	var b strings.Builder
	b.Grow(len(value))
	pendingHyphen := false
	for _, r := range norm.NFKD.String(strings.TrimSpace(value)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// KeyPrefix trims slashes and whitespace from an S3 key prefix and replaces
// backslashes so Windows-style input does not create odd keys.
func KeyPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.ReplaceAll(prefix, "\\", "/"))
	parts := strings.Split(prefix, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" && part != "." && part != ".." {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "/")
}
