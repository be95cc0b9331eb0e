package utils

import (
	rndm "math/rand"
	"strings"

	"github.com/google/uuid"
)

// --- Random String and ID Generators ---

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789_ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// GenerateRandomString creates a random alphanumeric string of length n.
func GenerateRandomString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rndm.Intn(len(letterRunes))]
	}
	return string(b)
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the display form of an identifier, the last six characters.
func ShortID(id string) string {
	trimmed := strings.ReplaceAll(id, "-", "")
	if len(trimmed) <= 6 {
		return trimmed
	}
	return trimmed[len(trimmed)-6:]
}

// Slugify lowercases a label and joins words with underscores, for option row ids.
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// Unslugify reverses Slugify into title case, e.g. "main_course" -> "Main Course".
func Unslugify(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
