package utils

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = newSanitizer()

// newSanitizer allows the usual article markup plus images, class attributes and http(s)/mailto links.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("href", "name", "target", "rel").OnElements("a")
	p.AllowAttrs("class").Globally()
	return p
}

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

var profanity = []string{"fuck", "shit", "ass", "bitch", "damn", "hell", "crap"}

var profanityRe = regexp.MustCompile(`(?i)\b(` + strings.Join(profanity, "|") + `)\b`)

// FilterProfanity masks listed words, case-insensitively, with one '*' per letter.
func FilterProfanity(text string) string {
	return profanityRe.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat("*", len(m))
	})
}

// CleanComment applies the profanity mask and then HTML sanitizing.
func CleanComment(text string) string {
	return strings.TrimSpace(Sanitize(FilterProfanity(text)))
}
