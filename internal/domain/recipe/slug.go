package recipe

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugFallbackBase = "recipe"

// SlugBase lower-cases the title, folds accents and keeps only ASCII
// letters and digits. Whitespace, hyphens and underscores become a single
// hyphen.
func SlugBase(title string) string {
	folded, _, err := transform.String(accentFolder(), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingDash = true
		}
	}
	if b.Len() == 0 {
		return slugFallbackBase
	}
	return b.String()
}

func accentFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NewSlug derives a slug from the title and appends a time based token.
// Two calls with the same title never share a slug.
func NewSlug(title string, now time.Time) string {
	return SlugBase(title) + "-" + slugToken(now)
}

func slugToken(now time.Time) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return strconv.FormatInt(now.UnixNano(), 36)
	}
	return strconv.FormatInt(now.UnixNano(), 36) + hex.EncodeToString(suffix)
}

// FallbackTitle is used when the extracted recipe has no title
func FallbackTitle(now time.Time) string {
	return fallbackTitlePrefix + " " + now.Format("2006-01-02")
}
