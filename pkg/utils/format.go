// Package utils provides shared utility functions.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Title upper-cases the first letter of each underscore or space separated
// word, so "rainbow_bands" becomes "Rainbow Bands".
func Title(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		r, n := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + strings.ToLower(w[n:])
	}
	return strings.Join(words, " ")
}

// Chunk splits s into pieces of at most size runes. It never splits a
// multi-byte character.
func Chunk(s string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(s) <= size {
		return []string{s}
	}

	var chunks []string
	runes := []rune(s)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
