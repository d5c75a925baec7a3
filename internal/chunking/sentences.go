package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open byte range [Start, End) into a document's text.
// Consecutive sentence spans tile the document with no gaps, so any run of
// spans can be mapped back to the exact source bytes.
type Span struct {
	Start int
	End   int
}

// defaultAbbreviations are terminal-period tokens that do not end a sentence.
// Compared lowercase, without the final period.
var defaultAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "no": true, "inc": true, "ltd": true,
	"co": true, "corp": true, "dept": true, "approx": true, "fig": true,
	"sec": true, "ver": true, "u.s": true, "gov": true,
}

// SplitSentences splits text into sentence spans. Splitting is punctuation
// driven and abbreviation aware: a '.', '!' or '?' ends a sentence only when
// followed by whitespace and an upper-case letter, digit or structural marker,
// and the preceding token is not a known abbreviation or single initial.
// Paragraph breaks and heading lines also terminate sentences so that a
// heading never glues onto the body below it.
func SplitSentences(text string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span
	start := 0
	i := 0
	n := len(text)

	for i < n {
		c := text[i]

		switch {
		case c == '.' || c == '!' || c == '?':
			j := i + 1
			// Consume closing quotes and brackets attached to the terminator.
			for j < n && (text[j] == '"' || text[j] == '\'' || text[j] == ')' || text[j] == ']') {
				j++
			}
			if j < n && !isSpaceByte(text[j]) {
				i++
				continue
			}
			if c == '.' && isAbbreviation(text[:i]) {
				i++
				continue
			}
			// Peek past the whitespace run for a sentence-start character.
			k := j
			for k < n && isSpaceByte(text[k]) {
				k++
			}
			if k < n && !startsSentence(text[k:]) {
				i++
				continue
			}
			// Trailing whitespace belongs to the sentence so spans tile.
			spans = append(spans, Span{Start: start, End: k})
			start = k
			i = k

		case c == '\n':
			// Break at paragraph boundaries and before heading lines.
			k := i + 1
			for k < n && isSpaceByte(text[k]) {
				k++
			}
			paragraphBreak := strings.HasPrefix(text[i:], "\n\n") || strings.HasPrefix(text[i:], "\n\r\n")
			headingNext := k < n && text[k] == '#'
			headingCurrent := lineStartsWith(text, start, '#')
			if (paragraphBreak || headingNext || headingCurrent) && k > start {
				spans = append(spans, Span{Start: start, End: k})
				start = k
				i = k
			} else {
				i++
			}

		default:
			i++
		}
	}

	if start < n {
		spans = append(spans, Span{Start: start, End: n})
	}
	return spans
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// startsSentence reports whether the text begins like a new sentence.
func startsSentence(rest string) bool {
	r, _ := utf8.DecodeRuneInString(rest)
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '#', '*', '-', '(', '"', '\'', '`':
		return true
	}
	return false
}

// isAbbreviation inspects the token ending at the period position.
func isAbbreviation(before string) bool {
	end := len(before)
	tokStart := end
	for tokStart > 0 && !isSpaceByte(before[tokStart-1]) {
		tokStart--
	}
	tok := strings.ToLower(before[tokStart:end])
	tok = strings.TrimSuffix(tok, ".")
	if tok == "" {
		return false
	}
	// Single letters read as initials ("A. Smith").
	if len(tok) == 1 && tok[0] >= 'a' && tok[0] <= 'z' {
		return true
	}
	return defaultAbbreviations[tok]
}

// lineStartsWith reports whether the line containing sentence start begins
// with the given byte, ignoring leading spaces.
func lineStartsWith(text string, pos int, b byte) bool {
	lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
	for i := lineStart; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\t' {
			continue
		}
		return text[i] == b
	}
	return false
}
