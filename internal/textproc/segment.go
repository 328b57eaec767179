// Package textproc contiene transformaciones puras de texto usadas al emitir respuestas.
package textproc

import (
	"errors"
	"unicode/utf8"

	"voice-chat/internal/domain"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Segment corta text en fragmentos de size caracteres. El último fragmento
// puede ser más corto; concatenar los fragmentos devuelve text intacto.
func Segment(text string, size int) ([]domain.TextFragment, error) {
	if size <= 0 {
		return nil, ErrInvalidArgument
	}
	if text == "" {
		return []domain.TextFragment{}, nil
	}

	total := (utf8.RuneCountInString(text) + size - 1) / size
	fragments := make([]domain.TextFragment, 0, total)

	start, runes := 0, 0
	for i := range text {
		if runes == size {
			fragments = append(fragments, domain.TextFragment{
				Seq:   len(fragments),
				Text:  text[start:i],
				Start: start,
				End:   i,
			})
			start, runes = i, 0
		}
		runes++
	}
	fragments = append(fragments, domain.TextFragment{
		Seq:    len(fragments),
		Text:   text[start:],
		Start:  start,
		End:    len(text),
		IsLast: true,
	})
	return fragments, nil
}
