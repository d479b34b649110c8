package fonts

import (
	"regexp"
	"strings"

	"golang.org/x/image/font"
)

var (
	wordSeparator = regexp.MustCompile(`[ \r\t\v]+|\n`)

	// A lowercase letter followed by an uppercase letter or a digit.
	wordBoundary = regexp.MustCompile(`([a-zäöüß])([A-Z0-9ÄÖÜ])`)
)

const lineBreak = "\n"

// splitWords splits on runs of blanks. Every newline becomes its own
// lineBreak word.
func splitWords(text string) []string {
	var words []string
	for index := 0; index < len(text); {
		loc := wordSeparator.FindStringIndex(text[index:])

		end := len(text)
		if loc != nil {
			end = index + loc[0]
		}
		if end != index {
			words = append(words, text[index:end])
		}
		if loc == nil {
			break
		}
		if text[index+loc[0]:index+loc[1]] == lineBreak {
			words = append(words, lineBreak)
		}
		index += loc[1]
	}
	return words
}

type wrapper struct {
	face  font.Face
	width int
}

func (w *wrapper) fits(s string) bool {
	return measure(w.face, s) <= w.width
}

// wrap fills lines greedily. A word that does not fit on an empty line
// fails the wrap, unless splitLong is set, in which case it is broken up
// by splitWord.
func (w *wrapper) wrap(words []string, splitLong bool) ([]string, bool) {
	var lines []string
	var line string
	empty := true

	for i := 0; i < len(words); {
		word := words[i]
		if word == lineBreak {
			lines = append(lines, line)
			line, empty = "", true
			i++
			continue
		}

		candidate := word
		if !empty {
			candidate = line + " " + word
		}
		if w.fits(candidate) {
			line, empty = candidate, false
			i++
			continue
		}

		if !empty {
			lines = append(lines, line)
			line, empty = "", true
			continue
		}

		if !splitLong {
			return nil, false
		}
		lines = append(lines, w.splitWord(word)...)
		i++
	}
	if !empty {
		lines = append(lines, line)
	}
	return lines, true
}

// splitWord breaks word at the widest prefixes that fit. Each piece holds
// at least one rune.
func (w *wrapper) splitWord(word string) []string {
	runes := []rune(word)
	var pieces []string
	for start := 0; start < len(runes); {
		end := start
		for i := start + 1; i <= len(runes); i++ {
			if !w.fits(string(runes[start:i])) {
				break
			}
			end = i
		}
		if end == start {
			end++
		}
		pieces = append(pieces, string(runes[start:end]))
		start = end
	}
	return pieces
}

// Wrap breaks text into lines no wider than width pixels. Words are
// separated by blanks and a newline forces a break. If some word is wider
// than a line, the text is wrapped again with extra breaks between a
// lowercase letter and a following uppercase letter or digit, and words
// that still do not fit are split between characters.
func Wrap(text string, width int, face font.Face) []string {
	w := &wrapper{face: face, width: width}
	text = strings.Trim(text, "\n\r\t ")

	if lines, ok := w.wrap(splitWords(text), false); ok {
		return lines
	}
	lines, _ := w.wrap(splitWords(wordBoundary.ReplaceAllString(text, "$1 $2")), true)
	return lines
}
