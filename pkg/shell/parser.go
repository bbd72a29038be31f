package shell

import (
	"io"
	"strings"
	"unicode"
)

// DefaultParser splits a line into words separated by runs of whitespace.
// Quotes, backslashes and dollar signs are ordinary characters.
type DefaultParser struct{}

func NewDefaultParser() *DefaultParser {
	return &DefaultParser{}
}

// wordScanner collects words rune by rune from a line.
type wordScanner struct {
	src   io.RuneReader
	word  strings.Builder
	words []string
}

func (w *wordScanner) endWord() {
	if w.word.Len() == 0 {
		return
	}
	w.words = append(w.words, w.word.String())
	w.word.Reset()
}

func (w *wordScanner) scan() ([]string, error) {
	for {
		r, _, err := w.src.ReadRune()
		switch {
		case err == io.EOF:
			w.endWord()
			return w.words, nil
		case err != nil:
			return nil, err
		case unicode.IsSpace(r):
			w.endWord()
		default:
			w.word.WriteRune(r)
		}
	}
}

// Parse never returns a nil slice; a blank line yields no words.
func (*DefaultParser) Parse(line string) ([]string, error) {
	w := &wordScanner{src: strings.NewReader(line), words: []string{}}
	return w.scan()
}
