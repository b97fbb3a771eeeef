// Package ocr defines the image-to-text capability used to read addresses from photos.
package ocr

import (
	"context"
	"strings"
	"unicode"
)

// Extractor reads an address from an image. An empty string with a nil error means the image
// holds no address-like text.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// CleanText folds raw OCR output into a single-line address. Lines without any letter or digit
// are dropped and whitespace is collapsed.
func CleanText(raw string) string {
	parts := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		line = strings.Trim(line, " ,;|-_")
		if !strings.ContainsFunc(line, isWordRune) {
			continue
		}
		parts = append(parts, line)
	}

	return strings.Join(parts, ", ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
