package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Slugify lower-cases s and collapses every run of non-alphanumeric ASCII into a single '-'.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r == '\'' || r == '’' {
			continue
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > 80 {
		out = strings.TrimRight(out[:80], "-")
	}
	if out == "" {
		out = "post"
	}
	return out
}

// RandomSuffix returns n characters from [a-z0-9].
func RandomSuffix(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			v = big.NewInt(int64(i*7) % max.Int64())
		}
		out[i] = slugAlphabet[v.Int64()]
	}
	return string(out)
}

// NewSlug derives a post slug from its title plus a 4-char random disambiguator.
func NewSlug(title string) string {
	return Slugify(title) + "-" + RandomSuffix(4)
}
