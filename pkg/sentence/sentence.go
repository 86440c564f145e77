// Package sentence implements the byte-level sentence model shared by
// the SS write path: splitting a file into sentences terminated by '.',
// '!', or '?', counting complete vs. incomplete sentences, and
// rebuilding a file's bytes from an edited sentence list.
package sentence

import "strings"

// Split decomposes text into sentences: each run of bytes up to and
// including the first '.', '!', or '?' is one sentence; leading
// whitespace between sentences is dropped. A trailing run without a
// terminator becomes the final, incomplete sentence (its own element).
// An empty result always contains at least one (empty) sentence.
func Split(text string) []string {
	var sents []string
	start := skipWhitespace(text, 0)
	for i := start; i < len(text); i++ {
		ch := text[i]
		if ch == '.' || ch == '!' || ch == '?' {
			sents = append(sents, text[start:i+1])
			start = skipWhitespace(text, i+1)
			i = start - 1
		}
	}
	if start < len(text) {
		tail := strings.TrimRight(text[start:], " \t\n\r")
		if len(tail) > 0 {
			sents = append(sents, tail)
		}
	}
	if len(sents) == 0 {
		sents = append(sents, "")
	}
	return sents
}

func skipWhitespace(s string, from int) int {
	i := from
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// CountComplete returns the number of complete (terminator-ended)
// sentences in text and whether the final byte run is itself complete.
func CountComplete(text string) (count int, lastComplete bool) {
	if len(text) == 0 {
		return 0, true
	}
	inSentence := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch ch {
		case ' ', '\t', '\n', '\r':
			// whitespace does not end an in-progress sentence
		case '.', '!', '?':
			count++
			inSentence = false
			continue
		default:
			inSentence = true
		}
	}
	return count, !inSentence
}

// MaxAllowedIndex is the highest sentence index WRITE_BEGIN may target:
// the count of complete sentences. A complete tail allows appending a
// new sentence at index count, and an incomplete tail allows continuing
// it at the same index. An empty/missing file only ever allows index 0.
func MaxAllowedIndex(text string) int {
	if len(text) == 0 {
		return 0
	}
	count, _ := CountComplete(text)
	return count
}

// Words splits a sentence into whitespace-separated word tokens.
func Words(s string) []string {
	return strings.Fields(s)
}

// InsertWord builds a new sentence by inserting content as a word at
// insertPos (clamped to [0, len(words)]), preserving single-space
// separation.
func InsertWord(s string, insertPos int, content string) string {
	words := Words(s)
	if insertPos > len(words) {
		insertPos = len(words)
	}
	if insertPos < 0 {
		insertPos = 0
	}
	var b strings.Builder
	for i := 0; i < insertPos; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i])
	}
	if insertPos > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(content)
	if len(words) > insertPos {
		b.WriteByte(' ')
	}
	for i := insertPos; i < len(words); i++ {
		b.WriteString(words[i])
		if i < len(words)-1 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// Rebuild concatenates non-empty sentences, inserting a single space
// between adjacent sentences when neither side already has whitespace
// at the seam.
func Rebuild(sents []string) string {
	var b strings.Builder
	for _, s := range sents {
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			prev := b.String()
			last := prev[len(prev)-1]
			if last != ' ' && last != '\t' && s[0] != ' ' && s[0] != '\t' {
				b.WriteByte(' ')
			}
		}
		b.WriteString(s)
	}
	return b.String()
}
