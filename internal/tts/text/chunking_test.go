package text_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/book-expert/voice-service/internal/tts/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}

	return strings.Join(words, " ")
}

func TestCountWords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, text.CountWords("   \n\t "))
	assert.Equal(t, 3, text.CountWords("  one\ttwo\n three "))
}

func TestChunkWords_EightyOneWords(t *testing.T) {
	t.Parallel()

	input := makeWords(81)
	chunks := text.ChunkWords(input, text.DefaultMaxWordsPerChunk)

	require.Len(t, chunks, 3)
	assert.Equal(t, 40, text.CountWords(chunks[0]))
	assert.Equal(t, 40, text.CountWords(chunks[1]))
	assert.Equal(t, 1, text.CountWords(chunks[2]))
	assert.Equal(t, input, strings.Join(chunks, " "))
}

func TestChunkWords_CountIsCeiling(t *testing.T) {
	t.Parallel()

	for _, wordCount := range []int{1, 39, 40, 41, 79, 80, 81, 200, 401} {
		t.Run(fmt.Sprintf("%d words", wordCount), func(t *testing.T) {
			t.Parallel()

			input := makeWords(wordCount)
			chunks := text.ChunkWords(input, 40)

			assert.Len(t, chunks, (wordCount+39)/40)

			var rejoined []string
			for _, chunk := range chunks {
				assert.LessOrEqual(t, text.CountWords(chunk), 40)
				rejoined = append(rejoined, text.Words(chunk)...)
			}

			assert.Equal(t, text.Words(input), rejoined)
		})
	}
}

func TestChunkWords_IrregularWhitespace(t *testing.T) {
	t.Parallel()

	chunks := text.ChunkWords("a  b\n\nc\td e", 2)

	assert.Equal(t, []string{"a b", "c d", "e"}, chunks)
}

func TestChunkWords_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, text.ChunkWords("  ", 40))
	assert.Len(t, text.ChunkWords(makeWords(41), 0), 2)
}
