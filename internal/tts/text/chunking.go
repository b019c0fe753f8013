// Package text splits synthesis input into word-bounded chunks.
package text

import "strings"

// DefaultMaxWordsPerChunk is the largest chunk the inference server renders in one call.
const DefaultMaxWordsPerChunk = 40

// Words splits text on runs of whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ChunkWords partitions text into chunks of at most maxWords words. Words keep their
// order and every word lands in exactly one chunk; only the final chunk may be shorter.
// A non-positive maxWords falls back to DefaultMaxWordsPerChunk. Whitespace-only text
// yields no chunks.
func ChunkWords(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWordsPerChunk
	}

	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)

	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	return chunks
}
