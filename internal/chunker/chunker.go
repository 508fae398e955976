// Package chunker splits free text into pieces small enough for a single
// translation request.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes keeps each chunk under the 10,000 byte request limit of
// Amazon Translate with room to spare.
const DefaultMaxBytes = 9000

// Split cuts text into chunks of at most maxBytes bytes. Cuts prefer line
// breaks, then spaces, and never fall inside a UTF-8 sequence.
// Concatenating the chunks yields text unchanged.
func Split(text string, maxBytes int) []string {
	if text == "" {
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var chunks []string
	for len(text) > maxBytes {
		n := cutPoint(text, maxBytes)
		chunks = append(chunks, text[:n])
		text = text[n:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// cutPoint returns the length of the next chunk of text, which is longer
// than maxBytes.
func cutPoint(text string, maxBytes int) int {
	window := text[:maxBytes]
	if i := strings.LastIndexByte(window, '\n'); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexAny(window, " \t"); i > 0 {
		return i + 1
	}

	n := maxBytes
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	if n == 0 {
		// maxBytes is smaller than the first rune
		_, n = utf8.DecodeRuneInString(text)
	}
	return n
}
